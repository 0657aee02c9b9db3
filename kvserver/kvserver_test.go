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

// End-to-end scenarios against the real accept pipeline and client
// session, matching spec scenarios S1/S2/S3/S4/S5/S6.
package kvserver_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowkv/flowkv/broadcaster"
	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/kvclient"
	"github.com/flowkv/flowkv/kvserver"
	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/service"
	"github.com/flowkv/flowkv/storage/memtable"
)

func generateSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "server.crt")
	keyPath = filepath.Join(dir, "server.key")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}))
	require.NoError(t, keyOut.Close())

	return certPath, keyPath
}

// startServer binds addr and returns a cancel func that tears the server
// down, plus the dispatcher's broadcaster (for publish-from-the-test cases).
func startServer(t *testing.T, addr string) (cancel func(), bus *broadcaster.Broadcaster) {
	t.Helper()

	dir := t.TempDir()
	certPath, keyPath := generateSelfSigned(t, dir)

	store := memtable.New()
	bus = broadcaster.New()
	dispatcher := service.New(store, bus)

	cfg := kvserver.Config{
		General: kvserver.GeneralConfig{Addr: addr, Network: kvserver.NetworkTCP},
		Security: kvserver.SecurityConfig{
			Variant: kvserver.SecurityTLS,
			Cert:    certPath,
			Key:     keyPath,
		},
	}

	srv, err := kvserver.New(cfg, dispatcher)
	require.NoError(t, err)

	ctx, done := context.WithCancel(context.Background())
	go srv.ListenAndServe(ctx)

	waitForListener(t, addr)

	return done, bus
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server never came up on %s", addr)
}

func dial(t *testing.T, addr string) *kvclient.Session {
	t.Helper()
	sess, err := kvclient.Connect(context.Background(), kvclient.Config{
		Addr:       addr,
		Network:    kvclient.NetworkTCP,
		Security:   kvclient.SecurityTLS,
		ServerName: "localhost",
	})
	require.NoError(t, err)
	return sess
}

// S1: basic set/get over TLS+mux.
func TestBasicSetGet(t *testing.T) {
	const addr = "127.0.0.1:18601"
	cancel, _ := startServer(t, addr)
	defer cancel()

	sess := dial(t, addr)
	defer sess.Close()

	h, err := sess.OpenStream()
	require.NoError(t, err)

	setResp, err := h.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpHset, Table: "table",
		Pair: pb.Kvpair{Key: "key", Value: pb.String("value")},
	})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusOK, setResp.Status)
	require.True(t, setResp.Values[0].IsAbsent())

	getResp, err := h.ExecuteUnary(pb.CommandRequest{Op: pb.OpHget, Table: "table", Key: "key"})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusOK, getResp.Status)
	require.Equal(t, "value", getResp.Values[0].S)
}

// S2: get of a missing key.
func TestGetMissing(t *testing.T) {
	const addr = "127.0.0.1:18602"
	cancel, _ := startServer(t, addr)
	defer cancel()

	sess := dial(t, addr)
	defer sess.Close()

	h, err := sess.OpenStream()
	require.NoError(t, err)

	resp, err := h.ExecuteUnary(pb.CommandRequest{Op: pb.OpHget, Table: "table", Key: "key"})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusNotFound, resp.Status)
	require.Contains(t, resp.Message, "Not found")
}

// S3: compression round trip for a 16KiB value.
func TestCompressionRoundTrip(t *testing.T) {
	const addr = "127.0.0.1:18603"
	cancel, _ := startServer(t, addr)
	defer cancel()

	sess, err := kvclient.Connect(context.Background(), kvclient.Config{
		Addr: addr, Network: kvclient.NetworkTCP, Security: kvclient.SecurityTLS,
		ServerName: "localhost", Compressor: frame.CompressorZSTD,
	})
	require.NoError(t, err)
	defer sess.Close()

	big := make([]byte, 16384)
	h, err := sess.OpenStream()
	require.NoError(t, err)

	_, err = h.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpHset, Table: "table",
		Pair: pb.Kvpair{Key: "key", Value: pb.Bytes(big)},
	})
	require.NoError(t, err)

	resp, err := h.ExecuteUnary(pb.CommandRequest{Op: pb.OpHget, Table: "table", Key: "key"})
	require.NoError(t, err)
	require.Equal(t, big, resp.Values[0].B)
}

// S4: pub/sub lifecycle across two subscribers.
func TestPubSubLifecycle(t *testing.T) {
	const addr = "127.0.0.1:18604"
	cancel, _ := startServer(t, addr)
	defer cancel()

	sessA := dial(t, addr)
	defer sessA.Close()
	sessB := dial(t, addr)
	defer sessB.Close()

	hA, err := sessA.OpenStream()
	require.NoError(t, err)
	streamA, err := hA.ExecuteStreaming(pb.CommandRequest{Op: pb.OpSubscribe, Topic: "lobby"})
	require.NoError(t, err)

	hB, err := sessB.OpenStream()
	require.NoError(t, err)
	streamB, err := hB.ExecuteStreaming(pb.CommandRequest{Op: pb.OpSubscribe, Topic: "lobby"})
	require.NoError(t, err)

	require.NotEqual(t, streamA.ID, streamB.ID)
	require.Greater(t, streamA.ID, uint32(0))
	require.Greater(t, streamB.ID, uint32(0))

	pub := dial(t, addr)
	defer pub.Close()
	hp, err := pub.OpenStream()
	require.NoError(t, err)

	publishResp, err := hp.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpPublish, Topic: "lobby", Values: []pb.Value{pb.String("hello")},
	})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusOK, publishResp.Status)

	gotA, err := streamA.Stream.Next()
	require.NoError(t, err)
	require.Equal(t, "hello", gotA.Values[0].S)

	gotB, err := streamB.Stream.Next()
	require.NoError(t, err)
	require.Equal(t, "hello", gotB.Values[0].S)

	unsubResp, err := hp.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpUnsubscribe, Topic: "lobby", SubscriptionID: streamA.ID,
	})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusOK, unsubResp.Status)

	publishResp, err = hp.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpPublish, Topic: "lobby", Values: []pb.Value{pb.String("world")},
	})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusOK, publishResp.Status)

	gotB, err = streamB.Stream.Next()
	require.NoError(t, err)
	require.Equal(t, "world", gotB.Values[0].S)

	_, err = streamA.Stream.Next()
	require.ErrorIs(t, err, io.EOF)
}

// S5: a request with no request_data.
func TestInvalidCommand(t *testing.T) {
	const addr = "127.0.0.1:18605"
	cancel, _ := startServer(t, addr)
	defer cancel()

	sess := dial(t, addr)
	defer sess.Close()

	h, err := sess.OpenStream()
	require.NoError(t, err)

	resp, err := h.ExecuteUnary(pb.CommandRequest{})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusInvalidCommand, resp.Status)
	require.Contains(t, resp.Message, "Request has no data")
}

// S6: two substreams on one connection, one executing a unary op, the
// other a long-lived subscription; they complete independently.
func TestMultiplexConcurrency(t *testing.T) {
	const addr = "127.0.0.1:18606"
	cancel, _ := startServer(t, addr)
	defer cancel()

	sess := dial(t, addr)
	defer sess.Close()

	hA, err := sess.OpenStream()
	require.NoError(t, err)
	setResp, err := hA.ExecuteUnary(pb.CommandRequest{
		Op: pb.OpHset, Table: "t", Pair: pb.Kvpair{Key: "k", Value: pb.Integer(7)},
	})
	require.NoError(t, err)
	require.EqualValues(t, pb.StatusOK, setResp.Status)

	hB, err := sess.OpenStream()
	require.NoError(t, err)
	result, err := hB.ExecuteStreaming(pb.CommandRequest{Op: pb.OpSubscribe, Topic: "t2"})
	require.NoError(t, err)
	require.Greater(t, result.ID, uint32(0))
}
