// Copyright 2025 The flowkv Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd is the flowkv command-line entry point: "serve" runs the
// accept pipeline, "client" runs a single command against a running server.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/flowkv/flowkv/common"
)

var rootCmd = &cobra.Command{
	Use:     "flowkv",
	Short:   "flowkv is a networked key-value store with topic pub/sub",
	Version: common.Version,
}

// defaultConfigPath is used when neither --config nor KV_SERVER_CONFIG is set.
const defaultConfigPath = "flowkv.toml"

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Configuration file path")
}

// resolveConfigPath applies the same precedence as the original server:
// an explicit --config flag wins, otherwise KV_SERVER_CONFIG is consulted,
// otherwise defaultConfigPath is used.
func resolveConfigPath(cmd *cobra.Command) string {
	if cmd.Flags().Changed("config") {
		return configPath
	}
	if env := os.Getenv("KV_SERVER_CONFIG"); env != "" {
		return env
	}
	return configPath
}

// Execute runs the selected subcommand, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
