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

// Package noise implements the Noise_NN_25519_ChaChaPoly_BLAKE2s secure
// transport (§4.3.2): a two-message handshake with no static keys on either
// side, after which both peers encrypt every application write as one Noise
// transport message.
//
// Each Write is sent as one length-prefixed transport message, and Read
// buffers any surplus plaintext, so callers may read in any size. Unlike
// mtls, kvserver and kvclient do not layer the mux package over a Noise
// connection: it is used directly as a single stream.Stream, the same way
// QUIC streams bypass mux.
package noise

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/katzenpost/nyquist"
	"github.com/katzenpost/nyquist/dh"
	"github.com/pkg/errors"
)

// protocolName is the Noise protocol string for Noise_NN_25519_ChaChaPoly_BLAKE2s.
const protocolName = "Noise_NN_25519_ChaChaPoly_BLAKE2s"

// maxRecord bounds the plaintext of a single Noise transport message. With
// its 16-byte AEAD tag added, the message reaches exactly Noise's own
// 65535-byte protocol maximum.
const maxRecord = 65519

func newError(format string, args ...any) error {
	return errors.Errorf("noise: "+format, args...)
}

// ErrRecordTooLarge is returned by Write when a single call exceeds maxRecord
// plaintext bytes; callers writing larger payloads must split across
// multiple Write calls.
var ErrRecordTooLarge = newError("record exceeds maximum Noise transport message size")

func newHandshake(isInitiator bool) (*nyquist.HandshakeState, error) {
	protocol, err := nyquist.NewProtocol(protocolName)
	if err != nil {
		return nil, errors.Wrap(err, "noise: unknown protocol")
	}

	cfg := &nyquist.HandshakeConfig{
		Protocol:     protocol,
		Rng:          nil, // nyquist defaults to crypto/rand when nil
		IsInitiator:  isInitiator,
		DH:           dh.DH25519,
	}

	hs, err := nyquist.NewHandshake(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "noise: new handshake")
	}
	return hs, nil
}

// Accept runs the responder side of the Noise NN handshake over an
// already-accepted TCP connection and returns a confidential
// io.ReadWriteCloser in transport mode.
func Accept(conn net.Conn) (io.ReadWriteCloser, error) {
	hs, err := newHandshake(false)
	if err != nil {
		return nil, err
	}
	defer hs.Reset()

	r := bufio.NewReader(conn)

	// Message 1: initiator -> responder, no payload.
	msg1, err := readRecord(r)
	if err != nil {
		return nil, errors.Wrap(err, "noise: read message 1")
	}
	if _, err := hs.ReadMessage(nil, msg1); err != nil {
		return nil, errors.Wrap(err, "noise: process message 1")
	}

	// Message 2: responder -> initiator, completes the handshake.
	msg2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "noise: write message 2")
	}
	if err := writeRecord(conn, msg2); err != nil {
		return nil, errors.Wrap(err, "noise: send message 2")
	}

	status := hs.GetStatus()
	if status.Err != nil {
		return nil, errors.Wrap(status.Err, "noise: handshake status")
	}
	return newTransport(conn, r, status.CipherStates, false), nil
}

// Connect runs the initiator side of the Noise NN handshake over a dialed
// TCP connection.
func Connect(conn net.Conn) (io.ReadWriteCloser, error) {
	hs, err := newHandshake(true)
	if err != nil {
		return nil, err
	}
	defer hs.Reset()

	r := bufio.NewReader(conn)

	msg1, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "noise: write message 1")
	}
	if err := writeRecord(conn, msg1); err != nil {
		return nil, errors.Wrap(err, "noise: send message 1")
	}

	msg2, err := readRecord(r)
	if err != nil {
		return nil, errors.Wrap(err, "noise: read message 2")
	}
	if _, err := hs.ReadMessage(nil, msg2); err != nil {
		return nil, errors.Wrap(err, "noise: process message 2")
	}

	status := hs.GetStatus()
	if status.Err != nil {
		return nil, errors.Wrap(status.Err, "noise: handshake status")
	}
	return newTransport(conn, r, status.CipherStates, true), nil
}

// readRecord/writeRecord carry a minimal 2-byte length prefix around each
// handshake message and each transport ciphertext, so this package's own
// Accept/Connect/Read/Write calls agree on where one Noise message ends and
// the next begins.
func readRecord(r *bufio.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeRecord(w io.Writer, msg []byte) error {
	if len(msg) > 0xFFFF {
		return ErrRecordTooLarge
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(msg)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// cipherStatePair mirrors nyquist's two post-handshake cipher states: index
// 0 is always the initiator-to-responder direction, index 1 responder-to-initiator.
type cipherStatePair = [2]*nyquist.CipherState

// transport wraps a handshaked connection, encrypting Writes and decrypting
// Reads one Noise transport message at a time.
type transport struct {
	conn net.Conn
	r    *bufio.Reader

	sendMu sync.Mutex
	send   *nyquist.CipherState

	recvMu  sync.Mutex
	recv    *nyquist.CipherState
	pending []byte // decrypted bytes from the current record not yet consumed
}

func newTransport(conn net.Conn, r *bufio.Reader, cs cipherStatePair, isInitiator bool) *transport {
	t := &transport{conn: conn, r: r}
	if isInitiator {
		t.send, t.recv = cs[0], cs[1]
	} else {
		t.send, t.recv = cs[1], cs[0]
	}
	return t
}

// Write encrypts p as a single Noise transport message. Per §4.3.2 this
// costs plaintext+16 bytes on the wire.
func (t *transport) Write(p []byte) (int, error) {
	if len(p) > maxRecord {
		return 0, ErrRecordTooLarge
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	ciphertext, err := t.send.EncryptWithAd(nil, nil, p)
	if err != nil {
		return 0, errors.Wrap(err, "noise: encrypt")
	}
	if err := writeRecord(t.conn, ciphertext); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read decrypts Noise transport messages and satisfies p from them,
// buffering any surplus plaintext for the next call.
func (t *transport) Read(p []byte) (int, error) {
	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	if len(t.pending) == 0 {
		ciphertext, err := readRecord(t.r)
		if err != nil {
			return 0, err
		}
		plaintext, err := t.recv.DecryptWithAd(nil, nil, ciphertext)
		if err != nil {
			return 0, errors.Wrap(err, "noise: decrypt")
		}
		t.pending = plaintext
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]
	return n, nil
}

func (t *transport) Close() error {
	return t.conn.Close()
}
