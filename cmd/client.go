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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/flowkv/flowkv/kvclient"
	"github.com/flowkv/flowkv/pb"
)

type clientCmdConfig struct {
	Addr       string
	Security   string
	ServerName string
	CA         string
	Cert       string
	Key        string
}

var clientConfig clientCmdConfig

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Run a single command against a flowkv server",
	Example: "# flowkv client --addr localhost:7890 get table key\n" +
		"# flowkv client --addr localhost:7890 set table key value\n" +
		"# flowkv client --addr localhost:7890 subscribe topic",
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runClient(args); err != nil {
			fmt.Fprintf(os.Stderr, "flowkv client: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientConfig.Addr, "addr", "localhost:7890", "Server address")
	clientCmd.Flags().StringVar(&clientConfig.Security, "security", "tls", "Security variant: tls|noise")
	clientCmd.Flags().StringVar(&clientConfig.ServerName, "server-name", "localhost", "Expected server certificate name (tls only)")
	clientCmd.Flags().StringVar(&clientConfig.CA, "ca", "", "CA certificate bundle (tls only)")
	clientCmd.Flags().StringVar(&clientConfig.Cert, "cert", "", "Client certificate (mTLS only)")
	clientCmd.Flags().StringVar(&clientConfig.Key, "key", "", "Client private key (mTLS only)")
	rootCmd.AddCommand(clientCmd)
}

func runClient(args []string) error {
	security := kvclient.SecurityTLS
	if clientConfig.Security == "noise" {
		security = kvclient.SecurityNoise
	}

	sess, err := kvclient.Connect(context.Background(), kvclient.Config{
		Addr:       clientConfig.Addr,
		Network:    kvclient.NetworkTCP,
		Security:   security,
		ServerName: clientConfig.ServerName,
		CA:         clientConfig.CA,
		Cert:       clientConfig.Cert,
		Key:        clientConfig.Key,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	h, err := sess.OpenStream()
	if err != nil {
		return err
	}
	defer h.Close()

	switch verb := args[0]; verb {
	case "get":
		return runGet(h, args[1:])
	case "set":
		return runSet(h, args[1:])
	case "del":
		return runDel(h, args[1:])
	case "exist":
		return runExist(h, args[1:])
	case "publish":
		return runPublish(h, args[1:])
	case "subscribe":
		return runSubscribe(h, args[1:])
	default:
		return fmt.Errorf("unknown command %q (want get|set|del|exist|publish|subscribe)", verb)
	}
}

func runGet(h *kvclient.Handle, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: get <table> <key>")
	}
	resp, err := h.ExecuteUnary(pb.CommandRequest{Op: pb.OpHget, Table: args[0], Key: args[1]})
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func runSet(h *kvclient.Handle, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: set <table> <key> <value>")
	}
	resp, err := h.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpHset, Table: args[0],
		Pair: pb.Kvpair{Key: args[1], Value: pb.String(args[2])},
	})
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func runDel(h *kvclient.Handle, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: del <table> <key>")
	}
	resp, err := h.ExecuteUnary(pb.CommandRequest{Op: pb.OpHdel, Table: args[0], Key: args[1]})
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func runExist(h *kvclient.Handle, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: exist <table> <key>")
	}
	resp, err := h.ExecuteUnary(pb.CommandRequest{Op: pb.OpHexist, Table: args[0], Key: args[1]})
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func runPublish(h *kvclient.Handle, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: publish <topic> <value>")
	}
	resp, err := h.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpPublish, Topic: args[0], Values: []pb.Value{pb.String(args[1])},
	})
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func runSubscribe(h *kvclient.Handle, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: subscribe <topic>")
	}
	result, err := h.ExecuteStreaming(pb.CommandRequest{Op: pb.OpSubscribe, Topic: args[0]})
	if err != nil {
		return err
	}
	fmt.Printf("subscribed: id=%d\n", result.ID)

	for {
		resp, err := result.Stream.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := printResponse(resp); err != nil {
			return err
		}
	}
}

func printResponse(resp pb.CommandResponse) error {
	fmt.Printf("status=%d", resp.Status)
	if resp.Message != "" {
		fmt.Printf(" message=%q", resp.Message)
	}
	for _, v := range resp.Values {
		fmt.Printf(" %s", v)
	}
	for _, p := range resp.Pairs {
		fmt.Printf(" %s=%s", p.Key, p.Value)
	}
	fmt.Println()
	return nil
}
