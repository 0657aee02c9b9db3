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

// Package mtls implements the mutual-TLS-over-TCP secure transport (§4.3.1).
// crypto/tls is the standard library's own TLS implementation; no third-party
// wrapper in the pack offers anything over it for this concern, so this
// package builds on crypto/tls directly, with github.com/pkg/errors as its
// only third-party import (see DESIGN.md).
package mtls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"

	"github.com/pkg/errors"
)

// ALPN is the protocol tag advertised by both client and server.
const ALPN = "kv"

// ErrCertificateParse is returned when a private key is neither PKCS#8 nor
// PKCS#1.
var ErrCertificateParse = errors.New("mtls: certificate or key could not be parsed")

// ServerConfig describes how to build a server-side *tls.Config.
type ServerConfig struct {
	CertFile string
	KeyFile  string
	// ClientCAFile, if set, requires and verifies client certificates
	// against this CA, enabling mutual authentication.
	ClientCAFile string
}

// ClientConfig describes how to build a client-side *tls.Config.
type ClientConfig struct {
	// ServerName is used for SNI and certificate hostname verification.
	ServerName string
	// CAFile, if set, supplements (not replaces) the platform root store.
	CAFile string
	// CertFile/KeyFile, if both set, present a client identity certificate.
	CertFile string
	KeyFile  string
}

func loadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "mtls: read cert")
	}
	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return tls.Certificate{}, errors.Wrap(err, "mtls: read key")
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return tls.Certificate{}, err
	}

	var certDER [][]byte
	rest := certPEM
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			certDER = append(certDER, block.Bytes)
		}
	}
	if len(certDER) == 0 {
		return tls.Certificate{}, errors.Wrap(ErrCertificateParse, "mtls: no certificate PEM blocks")
	}

	return tls.Certificate{Certificate: certDER, PrivateKey: key}, nil
}

// parsePrivateKey accepts PKCS#8 first, then PKCS#1 RSA; otherwise fails
// with ErrCertificateParse.
func parsePrivateKey(keyPEM []byte) (any, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, errors.Wrap(ErrCertificateParse, "mtls: no PEM block in key file")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, ErrCertificateParse
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, errors.Wrap(err, "mtls: read CA")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Wrap(ErrCertificateParse, "mtls: invalid CA PEM")
	}
	return pool, nil
}

// NewServerTLSConfig builds the *tls.Config used by Accept.
func NewServerTLSConfig(cfg ServerConfig) (*tls.Config, error) {
	cert, err := loadCertificate(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS12,
	}

	if cfg.ClientCAFile != "" {
		pool, err := loadCAPool(cfg.ClientCAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsCfg, nil
}

// NewClientTLSConfig builds the *tls.Config used by Connect.
func NewClientTLSConfig(cfg ClientConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName: cfg.ServerName,
		NextProtos: []string{ALPN},
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CAFile != "" {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		caPEM, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "mtls: read CA")
		}
		pool.AppendCertsFromPEM(caPEM)
		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := loadCertificate(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// Accept runs the server side of the TLS handshake over an already-accepted
// TCP connection, returning a confidential bidirectional byte stream.
func Accept(conn net.Conn, tlsCfg *tls.Config) (net.Conn, error) {
	tc := tls.Server(conn, tlsCfg)
	if err := tc.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}
	return tc, nil
}

// Connect runs the client side of the TLS handshake over a dialed TCP
// connection.
func Connect(conn net.Conn, tlsCfg *tls.Config) (net.Conn, error) {
	tc := tls.Client(conn, tlsCfg)
	if err := tc.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}
	return tc, nil
}
