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

// Package quictransport wraps quic-go to provide the QUIC transport of
// §4.3.3: a single library supplying both the confidential channel and the
// multiplexing that mux otherwise provides over TCP. Every QUIC bidirectional
// stream is a logical substream feeding the frame/stream layer directly;
// mux is not involved on this path.
package quictransport

import (
	"context"
	"crypto/tls"
	"io"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

// ALPN mirrors the mtls transport's protocol tag so a single certificate
// config can serve either.
const ALPN = "kv"

func quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  0,
		KeepAlivePeriod: 0,
	}
}

func tlsConfigWithALPN(cfg *tls.Config) *tls.Config {
	clone := cfg.Clone()
	if len(clone.NextProtos) == 0 {
		clone.NextProtos = []string{ALPN}
	}
	return clone
}

// Listener accepts QUIC connections on a UDP socket.
type Listener struct {
	ql *quic.Listener
}

// Listen binds addr and begins accepting QUIC connections secured by
// tlsConf.
func Listen(addr string, tlsConf *tls.Config) (*Listener, error) {
	ql, err := quic.ListenAddr(addr, tlsConfigWithALPN(tlsConf), quicConfig())
	if err != nil {
		return nil, errors.Wrap(err, "quictransport: listen")
	}
	return &Listener{ql: ql}, nil
}

// Accept blocks for the next inbound QUIC connection.
func (l *Listener) Accept(ctx context.Context) (*Session, error) {
	conn, err := l.ql.Accept(ctx)
	if err != nil {
		return nil, err
	}
	return &Session{conn: conn}, nil
}

// Addr reports the listener's local UDP address.
func (l *Listener) Addr() string {
	return l.ql.Addr().String()
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ql.Close()
}

// Dial opens a QUIC connection to addr.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config) (*Session, error) {
	conn, err := quic.DialAddr(ctx, addr, tlsConfigWithALPN(tlsConf), quicConfig())
	if err != nil {
		return nil, errors.Wrap(err, "quictransport: dial")
	}
	return &Session{conn: conn}, nil
}

// Session is one secured QUIC connection, native multiplexer included.
type Session struct {
	conn quic.Connection
}

// AcceptStream blocks for the next inbound bidirectional stream opened by
// the peer. Each returned stream is a logical substream equivalent to a
// mux substream on the TCP paths.
func (s *Session) AcceptStream(ctx context.Context) (io.ReadWriteCloser, error) {
	st, err := s.conn.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// OpenStream opens a new outbound bidirectional stream, analogous to mux's
// open_stream.
func (s *Session) OpenStream(ctx context.Context) (io.ReadWriteCloser, error) {
	st, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Close tears down the connection with application error code 0.
func (s *Session) Close() error {
	return s.conn.CloseWithError(0, "closed")
}

// RemoteAddr reports the peer's UDP address.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}
