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

package kvclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/mux"
	"github.com/flowkv/flowkv/transport/mtls"
	"github.com/flowkv/flowkv/transport/noise"
	"github.com/flowkv/flowkv/transport/quictransport"
)

func newError(format string, args ...any) error {
	return errors.Errorf("kvclient: "+format, args...)
}

// opener is the minimal capability a Session needs: hand out a fresh
// logical substream on demand.
type opener interface {
	OpenStream() (io.ReadWriteCloser, error)
}

// singleStream adapts a connection that has no native multiplexing (Noise)
// to the opener contract: it can be opened exactly once, since a Noise
// connection is used directly as a single stream with no mux layered on it.
type singleStream struct {
	mu   sync.Mutex
	rw   io.ReadWriteCloser
	used bool
}

func (s *singleStream) OpenStream() (io.ReadWriteCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used {
		return nil, newError("Noise transport supports exactly one logical stream per connection")
	}
	s.used = true
	return s.rw, nil
}

// halfCloser gives a mux or QUIC substream a CloseWrite method. On both,
// Close ends only the local write direction and the read direction stays
// open, which is the half-close stream.Stream.CloseWrite performs.
type halfCloser struct{ io.ReadWriteCloser }

func (h halfCloser) CloseWrite() error { return h.ReadWriteCloser.Close() }

// quicOpener adapts quictransport.Session's context-taking OpenStream to the
// opener contract used by Session.
type quicOpener struct {
	session *quictransport.Session
}

func (q quicOpener) OpenStream() (io.ReadWriteCloser, error) {
	return q.session.OpenStream(context.Background())
}

// Session is one established, secured client connection. Each call to
// OpenStream yields an independent message-stream Handle.
type Session struct {
	opener     opener
	closer     io.Closer
	compressor frame.Compressor
}

func buildClientTLSConfig(cfg Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		ServerName: cfg.ServerName,
		NextProtos: []string{mtls.ALPN},
		MinVersion: tls.VersionTLS12,
	}
	if cfg.CA != "" {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		caPEM, err := os.ReadFile(cfg.CA)
		if err != nil {
			return nil, errors.Wrap(err, "kvclient: read CA")
		}
		pool.AppendCertsFromPEM(caPEM)
		tlsCfg.RootCAs = pool
	}
	if cfg.Cert != "" && cfg.Key != "" {
		clientTLS, err := mtls.NewClientTLSConfig(mtls.ClientConfig{
			ServerName: cfg.ServerName,
			CertFile:   cfg.Cert,
			KeyFile:    cfg.Key,
		})
		if err != nil {
			return nil, err
		}
		tlsCfg.Certificates = clientTLS.Certificates
	}
	return tlsCfg, nil
}

// Connect dials cfg.Addr, runs the configured secure handshake, and wraps
// the result in a multiplex session where the transport supports one
// (mTLS). QUIC and Noise return their own native opener.
func Connect(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Network == NetworkQUIC {
		tlsCfg, err := buildClientTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		session, err := quictransport.Dial(ctx, cfg.Addr, tlsCfg)
		if err != nil {
			return nil, errors.Wrap(err, "kvclient: quic dial")
		}
		return &Session{opener: quicOpener{session}, closer: closerFunc(session.Close), compressor: cfg.Compressor}, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Addr)
	if err != nil {
		return nil, errors.Wrap(err, "kvclient: dial")
	}

	switch cfg.Security {
	case SecurityNoise:
		secure, err := noise.Connect(conn)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "kvclient: noise handshake")
		}
		return &Session{opener: &singleStream{rw: secure}, closer: secure, compressor: cfg.Compressor}, nil

	default: // SecurityTLS
		tlsCfg, err := buildClientTLSConfig(cfg)
		if err != nil {
			conn.Close()
			return nil, err
		}
		secure, err := mtls.Connect(conn, tlsCfg)
		if err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "kvclient: tls handshake")
		}
		muxSession, err := mux.NewClient(secure)
		if err != nil {
			secure.Close()
			return nil, errors.Wrap(err, "kvclient: mux session")
		}
		return &Session{opener: muxSession, closer: muxSession, compressor: cfg.Compressor}, nil
	}
}

// OpenStream opens a fresh logical substream and wraps it in a message-stream
// Handle.
func (s *Session) OpenStream() (*Handle, error) {
	rw, err := s.opener.OpenStream()
	if err != nil {
		return nil, err
	}
	if _, single := s.opener.(*singleStream); !single {
		rw = halfCloser{rw}
	}
	return newHandle(rw, s.compressor), nil
}

// Close tears down the underlying transport/multiplex session.
func (s *Session) Close() error {
	return s.closer.Close()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
