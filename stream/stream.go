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

// Package stream turns a bidirectional byte stream (a TCP connection, a
// yamux substream, or a QUIC stream) into a duplex of typed pb messages,
// using the frame codec underneath. It deliberately does no application
// level back-pressure: that is left to the OS socket buffers, per the
// concurrency model.
package stream

import (
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/pb"
)

func newError(format string, args ...any) error {
	return errors.Errorf("stream: "+format, args...)
}

// ErrClosed is returned by Send once Close has been called.
var ErrClosed = newError("stream closed")

// Stream wraps a single bidirectional byte stream (one multiplex substream,
// or a raw secured TCP connection when no multiplexer is in use).
type Stream struct {
	rw         io.ReadWriteCloser
	compressor frame.Compressor

	writeMu sync.Mutex
	closed  bool

	header [4]byte
}

// New wraps rw. compressor selects which algorithm is preferred for outbound
// messages above the compression threshold; CompressorNone disables
// compression entirely.
func New(rw io.ReadWriteCloser, compressor frame.Compressor) *Stream {
	return &Stream{rw: rw, compressor: compressor}
}

// Send encodes msg and writes it to the underlying stream, retrying partial
// writes until the frame is fully drained.
func (s *Stream) Send(msg frame.Marshaler) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.closed {
		return ErrClosed
	}

	encoded, err := frame.Encode(msg, s.compressor)
	if err != nil {
		return err
	}
	return s.writeAll(encoded)
}

func (s *Stream) writeAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := s.rw.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return newError("zero-byte write")
		}
		buf = buf[n:]
	}
	return nil
}

// Next reads exactly one frame from the underlying stream and returns its
// decoded payload bytes. Callers typically follow this with
// pb.UnmarshalCommandRequest/UnmarshalCommandResponse. io.EOF signals a
// clean end-of-stream; any other error is a mid-frame I/O failure.
func (s *Stream) Next() ([]byte, error) {
	if _, err := io.ReadFull(s.rw, s.header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, newError("peer closed mid-frame: %v", err)
		}
		return nil, err
	}

	hdr, err := frame.DecodeHeader(s.header[:])
	if err != nil {
		return nil, err
	}

	payload := make([]byte, hdr.Length)
	if hdr.Length > 0 {
		if _, err := io.ReadFull(s.rw, payload); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, newError("peer closed mid-frame: %v", err)
			}
			return nil, err
		}
	}

	if hdr.Compressor == frame.CompressorNone {
		return payload, nil
	}

	full := append(s.header[:0:0], s.header[:]...)
	full = append(full, payload...)
	decoded, _, err := frame.Decode(full)
	return decoded, err
}

// NextRequest reads and decodes one CommandRequest.
func (s *Stream) NextRequest() (pb.CommandRequest, error) {
	payload, err := s.Next()
	if err != nil {
		return pb.CommandRequest{}, err
	}
	return pb.UnmarshalCommandRequest(payload)
}

// NextResponse reads and decodes one CommandResponse.
func (s *Stream) NextResponse() (pb.CommandResponse, error) {
	payload, err := s.Next()
	if err != nil {
		return pb.CommandResponse{}, err
	}
	return pb.UnmarshalCommandResponse(payload)
}

// CloseWrite half-closes the write side, if the underlying stream has a
// CloseWrite method (the substreams kvclient opens on the mux and QUIC paths
// do); otherwise it is a no-op, leaving full Close to shut down both halves.
func (s *Stream) CloseWrite() error {
	type writeCloser interface {
		CloseWrite() error
	}
	if wc, ok := s.rw.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}

// Close flushes (nothing to flush; writes are unbuffered) and shuts the
// underlying stream. Further Sends fail with ErrClosed.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	s.closed = true
	s.writeMu.Unlock()
	return s.rw.Close()
}

// bufferedReadWriteCloser adapts an io.Reader+io.Writer+io.Closer trio that
// don't already satisfy io.ReadWriteCloser (used by the Noise transport,
// whose encrypt/decrypt boundaries are record-, not byte-, oriented).
type bufferedReadWriteCloser struct {
	io.Reader
	io.Writer
	io.Closer
}

// NewFromParts builds an io.ReadWriteCloser from separate halves.
func NewFromParts(r io.Reader, w io.Writer, c io.Closer) io.ReadWriteCloser {
	return &bufferedReadWriteCloser{Reader: r, Writer: w, Closer: c}
}
