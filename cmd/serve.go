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

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowkv/flowkv/adminserver"
	"github.com/flowkv/flowkv/broadcaster"
	"github.com/flowkv/flowkv/confengine"
	"github.com/flowkv/flowkv/internal/sigs"
	"github.com/flowkv/flowkv/internal/wait"
	"github.com/flowkv/flowkv/kvserver"
	"github.com/flowkv/flowkv/logger"
	"github.com/flowkv/flowkv/service"
	"github.com/flowkv/flowkv/storage"
	"github.com/flowkv/flowkv/tracing"
)

// serveConfig is the subset of the top-level TOML document serve consumes
// outside of kvserver.Config and storage.Config, which are unpacked
// directly from their own sections.
type serveConfig struct {
	Log     logger.Options `config:"log"`
	Tracing struct {
		Enabled bool `config:"enabled"`
	} `config:"tracing"`
}

var serveStorageFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the flowkv server",
	Run: func(cmd *cobra.Command, args []string) {
		conf, err := confengine.LoadConfigPath(resolveConfigPath(cmd))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		runServe(conf)
	},
	Example: "# flowkv serve --config flowkv.toml --storage bolt",
}

func init() {
	serveCmd.Flags().StringVar(&serveStorageFlag, "storage", "", "Override storage.variant: mem|bolt")
	rootCmd.AddCommand(serveCmd)
}

func runServe(conf *confengine.Config) {
	var sc serveConfig
	if err := conf.Unpack(&sc); err != nil {
		fmt.Fprintf(os.Stderr, "failed to unpack config: %v\n", err)
		os.Exit(1)
	}
	logger.SetOptions(sc.Log)

	provider, err := tracing.New(tracing.Options{Enabled: sc.Tracing.Enabled, Writer: os.Stdout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init tracing: %v\n", err)
		os.Exit(1)
	}
	defer tracing.Shutdown(context.Background(), provider)

	var storageCfg storage.Config
	if conf.Has("storage") {
		if err := conf.UnpackChild("storage", &storageCfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to unpack storage config: %v\n", err)
			os.Exit(1)
		}
	}
	if serveStorageFlag != "" {
		storageCfg.Variant = storageVariantName(serveStorageFlag)
	}

	store, err := storage.Open(storageCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	bus := broadcaster.New()
	dispatcher := service.New(store, bus)

	var kvCfg kvserver.Config
	if err := conf.Unpack(&kvCfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to unpack server config: %v\n", err)
		os.Exit(1)
	}

	srv, err := kvserver.New(kvCfg, dispatcher)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	admin, err := adminserver.New(conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create adminserver: %v\n", err)
		os.Exit(1)
	}
	if admin != nil {
		go func() {
			if err := admin.ListenAndServe(); err != nil {
				logger.Errorf("adminserver: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go wait.Until(ctx, 30*time.Second, func() {
		logger.Infof("flowkv: %d subscriptions across %d topics", bus.NumSubscriptions(), bus.NumTopics())
	})

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "server stopped: %v\n", err)
			os.Exit(1)
		}
	}()

	for {
		select {
		case <-sigs.Terminate():
			cancel()
			return

		case <-sigs.Reload():
			logger.Infof("flowkv: reload received; logging/tracing options are re-read on next restart")
		}
	}
}

func storageVariantName(flag string) string {
	switch flag {
	case "bolt":
		return "Sledb"
	default:
		return "MemTable"
	}
}
