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

// Package kvclient is the client session of §4.8: establish the configured
// secure transport, wrap it in a multiplex session where one applies, and
// hand out message-stream handles that can run one unary exchange or one
// streaming subscription each.
package kvclient

import (
	"github.com/flowkv/flowkv/frame"
)

// Network selects the transport family, mirroring kvserver's general.network.
type Network string

const (
	NetworkTCP  Network = "tcp"
	NetworkQUIC Network = "quic"
)

// SecurityVariant selects the secure transport construction, mirroring
// kvserver's security variant.
type SecurityVariant string

const (
	SecurityTLS   SecurityVariant = "tls"
	SecurityNoise SecurityVariant = "noise"
)

// Config describes how to reach and authenticate a flowkv server.
type Config struct {
	Addr    string
	Network Network

	Security SecurityVariant

	// ServerName is used for SNI and certificate hostname verification
	// (SecurityTLS only).
	ServerName string
	// CA, if set, supplements the platform root store when verifying the
	// server's certificate (SecurityTLS only).
	CA string
	// Cert/Key, if both set, present a client identity certificate for
	// mutual TLS (SecurityTLS only).
	Cert string
	Key  string

	// Compressor selects the outbound compression preference applied above
	// the MTU-safe threshold; CompressorNone disables it.
	Compressor frame.Compressor
}
