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

// Package mux layers a yamux-style multiplexer over a single secured byte
// stream (§4.4), used on the mTLS TCP path. Noise connections are used as a
// single stream without it, and QUIC bypasses this package entirely and uses
// its own native streams instead.
//
// A Session owns a single driver goroutine that answers both arms of the
// contract: outbound open_stream requests arriving over a channel, and
// inbound substreams handed to onSubstream. The driver never blocks waiting
// on the connection itself — AcceptStream runs in its own goroutine and
// reports back over a channel — so an outbound open can always be serviced
// while an inbound accept is in flight. Holding a single lock across both
// the accept call and the open call is the known deadlock this avoids.
package mux

import (
	"io"

	"github.com/hashicorp/yamux"
	"github.com/pkg/errors"

	"github.com/flowkv/flowkv/common"
)

// ErrClosed is returned by OpenStream once the session has shut down.
var ErrClosed = errors.New("mux: session closed")

// OnSubstream is invoked, in its own goroutine, for every inbound substream
// accepted by a server session.
type OnSubstream func(io.ReadWriteCloser)

type openRequest struct {
	reply chan openResult
}

type openResult struct {
	stream io.ReadWriteCloser
	err    error
}

type acceptResult struct {
	stream io.ReadWriteCloser
	err    error
}

// Session is one multiplexed connection, client- or server-side.
type Session struct {
	ys      *yamux.Session
	openReq chan openRequest
	done    chan struct{}
}

func config() *yamux.Config {
	cfg := yamux.DefaultConfig()
	cfg.AcceptBacklog = common.InboundStreamBacklog
	cfg.LogOutput = io.Discard
	return cfg
}

// NewClient wraps conn as the client side of a multiplex session. Clients
// only ever open outbound streams; there is no on_substream handler.
func NewClient(conn io.ReadWriteCloser) (*Session, error) {
	ys, err := yamux.Client(conn, config())
	if err != nil {
		return nil, errors.Wrap(err, "mux: new client session")
	}

	s := &Session{ys: ys, openReq: make(chan openRequest), done: make(chan struct{})}
	go s.driveClient()
	return s, nil
}

// NewServer wraps conn as the server side of a multiplex session. Every
// inbound substream is dispatched to onSubstream in its own goroutine.
func NewServer(conn io.ReadWriteCloser, onSubstream OnSubstream) (*Session, error) {
	ys, err := yamux.Server(conn, config())
	if err != nil {
		return nil, errors.Wrap(err, "mux: new server session")
	}

	s := &Session{ys: ys, openReq: make(chan openRequest), done: make(chan struct{})}
	go s.driveServer(onSubstream)
	return s, nil
}

func (s *Session) driveClient() {
	defer close(s.done)
	for {
		select {
		case req := <-s.openReq:
			stream, err := s.ys.OpenStream()
			if err == nil {
				substreamsOpened.Inc()
			}
			req.reply <- openResult{stream, err}
		case <-s.ys.CloseChan():
			return
		}
	}
}

func (s *Session) driveServer(onSubstream OnSubstream) {
	defer close(s.done)

	// Buffered by one so the feeder's post-close send always lands even
	// with nobody left to receive it, and select on s.done as a backstop
	// in case a send is already blocked when the driver loop exits.
	acceptCh := make(chan acceptResult, 1)
	go func() {
		for {
			stream, err := s.ys.AcceptStream()
			select {
			case acceptCh <- acceptResult{stream, err}:
			case <-s.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case req := <-s.openReq:
			stream, err := s.ys.OpenStream()
			if err == nil {
				substreamsOpened.Inc()
			}
			req.reply <- openResult{stream, err}

		case res := <-acceptCh:
			if res.err != nil {
				return
			}
			substreamsAccepted.Inc()
			go onSubstream(res.stream)

		case <-s.ys.CloseChan():
			return
		}
	}
}

// OpenStream requests a new outbound substream from the driver goroutine
// and blocks until one is available or the session is closed.
func (s *Session) OpenStream() (io.ReadWriteCloser, error) {
	reply := make(chan openResult, 1)
	select {
	case s.openReq <- openRequest{reply: reply}:
	case <-s.done:
		return nil, ErrClosed
	}

	select {
	case res := <-reply:
		return res.stream, res.err
	case <-s.done:
		return nil, ErrClosed
	}
}

// Close tears down the underlying yamux session and its driver goroutine.
func (s *Session) Close() error {
	return s.ys.Close()
}

// NumStreams reports the number of currently open substreams, for metrics.
func (s *Session) NumStreams() int {
	return s.ys.NumStreams()
}
