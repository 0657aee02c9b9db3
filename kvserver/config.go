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

// Package kvserver is the server accept pipeline (§4.7): for each accepted
// connection it runs the configured secure handshake, then either drives a
// mux.Session (TCP path, mTLS) or loops a QUIC session's native stream
// acceptor, feeding every logical substream to stream.Stream and the
// command dispatcher.
package kvserver

import (
	"crypto/tls"

	"github.com/pkg/errors"

	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/transport/mtls"
)

// Network selects the transport family named by the `general.network` config
// field.
type Network string

const (
	NetworkTCP  Network = "tcp"
	NetworkQUIC Network = "quic"
)

// SecurityVariant selects the secure transport construction named by the
// `security` config variant.
type SecurityVariant string

const (
	SecurityTLS   SecurityVariant = "tls"
	SecurityNoise SecurityVariant = "noise"
)

// GeneralConfig mirrors the `[general]` TOML table.
type GeneralConfig struct {
	Addr    string  `config:"addr"`
	Network Network `config:"network"`
}

// SecurityConfig mirrors the `[security]` TOML table. Noise needs no key
// material: the NN pattern has no static keys on either side.
type SecurityConfig struct {
	Variant  SecurityVariant `config:"variant"`
	Cert     string          `config:"cert"`
	Key      string          `config:"key"`
	CA       string          `config:"ca"`
	ClientCA string          `config:"clientCa"`
}

// Config is the subset of the top-level TOML document kvserver consumes.
type Config struct {
	General    GeneralConfig  `config:"general"`
	Security   SecurityConfig `config:"security"`
	Compressor string         `config:"compressor"` // none|gzip|lz4|zstd, outbound preference
}

func (c Config) compressor() frame.Compressor {
	switch c.Compressor {
	case "gzip":
		return frame.CompressorGZIP
	case "lz4":
		return frame.CompressorLZ4
	case "zstd":
		return frame.CompressorZSTD
	default:
		return frame.CompressorNone
	}
}

// buildTLSConfig constructs the *tls.Config used by both the mTLS transport
// and QUIC (which supplies its own TLS but still needs certificates).
func (c Config) buildTLSConfig() (*tls.Config, error) {
	if c.Security.Cert == "" || c.Security.Key == "" {
		return nil, errors.New("kvserver: security.cert and security.key are required")
	}
	tlsCfg, err := mtls.NewServerTLSConfig(mtls.ServerConfig{
		CertFile:     c.Security.Cert,
		KeyFile:      c.Security.Key,
		ClientCAFile: c.Security.ClientCA,
	})
	if err != nil {
		return nil, errors.Wrap(err, "kvserver: build TLS config")
	}
	return tlsCfg, nil
}
