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

package mux

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndAcceptSubstream(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	var mu sync.Mutex
	var got []string
	gotAll := make(chan struct{})

	server, err := NewServer(serverConn, func(s io.ReadWriteCloser) {
		buf := make([]byte, 5)
		if _, err := io.ReadFull(s, buf); err != nil {
			return
		}
		mu.Lock()
		got = append(got, string(buf))
		mu.Unlock()
		close(gotAll)
	})
	require.NoError(t, err)
	defer server.Close()

	client, err := NewClient(clientConn)
	require.NoError(t, err)
	defer client.Close()

	stream, err := client.OpenStream()
	require.NoError(t, err)
	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case <-gotAll:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for substream handler")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"hello"}, got)
}

func TestOpenStreamAfterCloseFails(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	client, err := NewClient(clientConn)
	require.NoError(t, err)
	require.NoError(t, client.Close())

	_, err = client.OpenStream()
	assert.Error(t, err)
}

// TestConcurrentOpenDuringAccept exercises the scenario the package doc
// warns about: an outbound open must be serviceable while the driver is
// also waiting on the next inbound substream.
func TestConcurrentOpenDuringAccept(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	serverOpened := make(chan io.ReadWriteCloser, 1)
	server, err := NewServer(serverConn, func(io.ReadWriteCloser) {})
	require.NoError(t, err)
	defer server.Close()

	client, err := NewClient(clientConn)
	require.NoError(t, err)
	defer client.Close()

	go func() {
		s, err := server.OpenStream()
		if err == nil {
			serverOpened <- s
		} else {
			serverOpened <- nil
		}
	}()

	clientStream, err := client.OpenStream()
	require.NoError(t, err)
	require.NotNil(t, clientStream)

	select {
	case s := <-serverOpened:
		assert.NotNil(t, s)
	case <-time.After(2 * time.Second):
		t.Fatal("server-side open_stream starved by inbound accept loop")
	}
}
