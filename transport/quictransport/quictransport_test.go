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

package quictransport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

func TestListenDialStreamRoundTrip(t *testing.T) {
	serverTLS := selfSignedTLSConfig(t)
	ln, err := Listen("127.0.0.1:0", serverTLS)
	require.NoError(t, err)
	defer ln.Close()

	ctx := context.Background()
	acceptDone := make(chan error, 1)
	var serverSession *Session
	go func() {
		var err error
		serverSession, err = ln.Accept(ctx)
		acceptDone <- err
	}()

	clientTLS := &tls.Config{InsecureSkipVerify: true, NextProtos: []string{ALPN}}
	clientSession, err := Dial(ctx, ln.Addr(), clientTLS)
	require.NoError(t, err)
	defer clientSession.Close()
	require.NoError(t, <-acceptDone)
	defer serverSession.Close()

	clientStream, err := clientSession.OpenStream(ctx)
	require.NoError(t, err)

	streamDone := make(chan error, 1)
	var serverStream io.ReadWriteCloser
	go func() {
		var err error
		serverStream, err = serverSession.AcceptStream(ctx)
		streamDone <- err
	}()

	msg := []byte("hello over quic")
	_, err = clientStream.Write(msg)
	require.NoError(t, err)
	require.NoError(t, <-streamDone)

	buf := make([]byte, len(msg))
	_, err = io.ReadFull(serverStream, buf)
	require.NoError(t, err)
	require.Equal(t, msg, buf)
}
