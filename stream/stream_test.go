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

package stream

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/pb"
)

func TestSendNext(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cs := New(client, frame.CompressorZSTD)
	ss := New(server, frame.CompressorNone)

	req := pb.CommandRequest{Op: pb.OpHget, Table: "t", Key: "k"}
	done := make(chan error, 1)
	go func() { done <- cs.Send(req) }()

	got, err := ss.NextRequest()
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, req.Op, got.Op)
	assert.Equal(t, req.Table, got.Table)
	assert.Equal(t, req.Key, got.Key)
}

func TestSendAfterCloseFails(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	cs := New(client, frame.CompressorNone)
	require.NoError(t, cs.Close())

	err := cs.Send(pb.OK())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNextSurfacesEOF(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	ss := New(server, frame.CompressorNone)
	client.Close()

	_, err := ss.Next()
	assert.ErrorIs(t, err, io.EOF)
}
