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

package kvserver

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"

	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/internal/rescue"
	"github.com/flowkv/flowkv/logger"
	"github.com/flowkv/flowkv/mux"
	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/service"
	"github.com/flowkv/flowkv/stream"
	"github.com/flowkv/flowkv/transport/mtls"
	"github.com/flowkv/flowkv/transport/noise"
	"github.com/flowkv/flowkv/transport/quictransport"
)

// Server is the accept pipeline of §4.7: bind a listener, run the
// configured secure handshake per connection, then feed every logical
// substream to the command dispatcher.
type Server struct {
	cfg        Config
	dispatcher *service.Dispatcher
	tlsCfg     *tls.Config
	compressor frame.Compressor
}

// New builds a Server. For the TLS and QUIC paths, cfg must carry a
// certificate and key; Noise needs no key material.
func New(cfg Config, dispatcher *service.Dispatcher) (*Server, error) {
	s := &Server{cfg: cfg, dispatcher: dispatcher, compressor: cfg.compressor()}

	if cfg.General.Network == NetworkQUIC || cfg.Security.Variant == SecurityTLS {
		tlsCfg, err := cfg.buildTLSConfig()
		if err != nil {
			return nil, err
		}
		s.tlsCfg = tlsCfg
	}
	return s, nil
}

// ListenAndServe blocks serving connections until ctx is cancelled or the
// listener reports an unrecoverable error. Per-connection and
// per-substream errors are logged and never stop the accept loop (§7
// propagation policy).
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s.cfg.General.Network == NetworkQUIC {
		return s.serveQUIC(ctx)
	}
	return s.serveTCP(ctx)
}

func (s *Server) serveTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.General.Addr)
	if err != nil {
		return pkgerrors.Wrap(err, "kvserver: listen")
	}
	logger.Infof("kvserver: listening on %s (tcp, security=%s)", s.cfg.General.Addr, s.cfg.Security.Variant)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("kvserver: accept: %v", err)
			continue
		}
		connectionsAccepted.Inc()
		go s.handleConn(ctx, conn)
	}
}

// handleConn runs the secure handshake for one accepted TCP connection,
// then either drives a mux.Session (mTLS) or serves the connection as a
// single substream (Noise — see transport/noise's documented limitation).
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer rescue.HandleCrash()

	connID := uuid.NewString()

	switch s.cfg.Security.Variant {
	case SecurityNoise:
		secure, err := noise.Accept(conn)
		if err != nil {
			handshakeFailures.Inc()
			logger.Warnf("kvserver[%s]: noise handshake: %v", connID, err)
			conn.Close()
			return
		}
		s.handleSubstream(secure)

	default: // SecurityTLS
		secure, err := mtls.Accept(conn, s.tlsCfg)
		if err != nil {
			handshakeFailures.Inc()
			logger.Warnf("kvserver[%s]: tls handshake: %v", connID, err)
			conn.Close()
			return
		}

		session, err := mux.NewServer(secure, s.handleSubstream)
		if err != nil {
			logger.Warnf("kvserver[%s]: mux session: %v", connID, err)
			secure.Close()
			return
		}
		<-ctx.Done()

		// Closing the yamux session already closes the underlying secure
		// conn; closing it again here is belt-and-suspenders against a
		// transport that does not propagate the close. Both are
		// independent failure points, so their errors are aggregated
		// rather than one silently shadowing the other.
		var teardown *multierror.Error
		if err := session.Close(); err != nil {
			teardown = multierror.Append(teardown, err)
		}
		if err := secure.Close(); err != nil {
			teardown = multierror.Append(teardown, err)
		}
		if teardown.ErrorOrNil() != nil {
			logger.Debugf("kvserver[%s]: teardown: %v", connID, teardown)
		}
	}
}

func (s *Server) serveQUIC(ctx context.Context) error {
	ln, err := quictransport.Listen(s.cfg.General.Addr, s.tlsCfg)
	if err != nil {
		return pkgerrors.Wrap(err, "kvserver: quic listen")
	}
	logger.Infof("kvserver: listening on %s (quic)", s.cfg.General.Addr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		session, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("kvserver: quic accept: %v", err)
			continue
		}
		connectionsAccepted.Inc()
		go s.serveQUICSession(ctx, session)
	}
}

func (s *Server) serveQUICSession(ctx context.Context, session *quictransport.Session) {
	defer rescue.HandleCrash()
	for {
		st, err := session.AcceptStream(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.Debugf("kvserver: quic accept stream: %v", err)
			}
			return
		}
		go s.handleSubstream(st)
	}
}

// handleSubstream implements the per-substream state machine of §4.7:
// Open -> Reading -> Executing -> Writing -> Reading ... -> Closed. A
// decode or I/O error makes a best-effort attempt to send a 500 response,
// then terminates; the substream's closure never propagates to any other
// substream on the same connection.
func (s *Server) handleSubstream(rw io.ReadWriteCloser) {
	defer rescue.HandleCrash()
	defer rw.Close()

	activeSubstreams.Inc()
	defer activeSubstreams.Dec()

	st := stream.New(rw, s.compressor)
	for {
		req, err := st.NextRequest()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				_ = st.Send(pb.Internal(err.Error()))
			}
			return
		}

		for resp := range s.dispatcher.Execute(req) {
			if err := st.Send(*resp); err != nil {
				logger.Debugf("kvserver: substream write: %v", err)
				return
			}
		}
	}
}
