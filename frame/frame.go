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

// Package frame implements the length-prefixed, optionally-compressed wire
// envelope described by the Frame data model: a 4-byte big-endian header
// whose top two bits carry a compressor tag and whose low 30 bits carry the
// payload length, followed by that many payload bytes.
//
// Header decoding follows the same manual big-endian, state-free style as
// the rest of this lineage's protocol decoders (e.g. the MySQL/Kafka length
// header parsing), just applied to a protocol this package owns rather than
// one it is merely observing.
package frame

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/flowkv/flowkv/common"
)

// Compressor identifies the per-message compression algorithm, encoded in the
// top two bits of the frame header.
type Compressor uint8

const (
	CompressorNone Compressor = iota
	CompressorGZIP
	CompressorLZ4
	CompressorZSTD
)

func (c Compressor) String() string {
	switch c {
	case CompressorGZIP:
		return "gzip"
	case CompressorLZ4:
		return "lz4"
	case CompressorZSTD:
		return "zstd"
	default:
		return "none"
	}
}

const (
	headerSize = 4

	compressorShift = 30
	compressorMask  = 0x3
	lengthMask      = 1<<30 - 1
)

func newError(format string, args ...any) error {
	return errors.Errorf("frame: "+format, args...)
}

var (
	// ErrFrameTooLarge is returned when a message's serialized length does
	// not fit the header's 30-bit length field.
	ErrFrameTooLarge = newError("payload exceeds maximum frame size (%d bytes)", common.MaxFramePayload)

	// ErrFrameError is returned for malformed headers, e.g. an unknown
	// compressor tag.
	ErrFrameError = newError("malformed frame")
)

// Header is the decoded 4-byte frame header.
type Header struct {
	Compressor Compressor
	Length     uint32
}

// EncodeHeader packs a Header into its 4-byte big-endian wire form.
func EncodeHeader(h Header) [headerSize]byte {
	v := uint32(h.Compressor)<<compressorShift | (h.Length & lengthMask)
	var buf [headerSize]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return buf
}

// DecodeHeader unpacks a 4-byte big-endian header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerSize {
		return Header{}, newError("short header")
	}
	v := binary.BigEndian.Uint32(buf)
	c := Compressor(v >> compressorShift)
	if c > CompressorZSTD {
		return Header{}, ErrFrameError
	}
	return Header{Compressor: c, Length: v & lengthMask}, nil
}

// Marshaler is implemented by every wire message (pb.CommandRequest,
// pb.CommandResponse, ...).
type Marshaler interface {
	Marshal() []byte
}

// Encode serializes msg into a framed byte slice, compressing the payload
// when its uncompressed length exceeds common.CompressionThreshold and a
// non-none preference is given. Below the threshold the compressor tag is
// always 0, regardless of preference, per the compression invariant.
func Encode(msg Marshaler, preference Compressor) ([]byte, error) {
	payload := msg.Marshal()
	n := len(payload)
	if n > common.MaxFramePayload {
		return nil, ErrFrameTooLarge
	}

	tag := CompressorNone
	if n > common.CompressionThreshold && preference != CompressorNone {
		compressed, err := compress(preference, payload)
		if err != nil {
			return nil, err
		}
		payload = compressed
		tag = preference
		framesCompressed.WithLabelValues(tag.String()).Inc()
	}
	if len(payload) > common.MaxFramePayload {
		return nil, ErrFrameTooLarge
	}

	hdr := EncodeHeader(Header{Compressor: tag, Length: uint32(len(payload))})
	out := make([]byte, 0, headerSize+len(payload))
	out = append(out, hdr[:]...)
	out = append(out, payload...)
	return out, nil
}

// Decode reads a single frame from the head of buf, returning the decoded
// (decompressed) payload and the number of bytes of buf it consumed
// (headerSize + Header.Length). Callers needing a typed message must further
// Unmarshal the returned payload.
func Decode(buf []byte) (payload []byte, consumed int, err error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	buf = buf[headerSize:]
	if uint32(len(buf)) < hdr.Length {
		return nil, 0, newError("short payload: want %d have %d", hdr.Length, len(buf))
	}

	raw := buf[:hdr.Length]
	if hdr.Compressor == CompressorNone {
		return raw, headerSize + int(hdr.Length), nil
	}

	out, err := decompress(hdr.Compressor, raw)
	if err != nil {
		return nil, 0, err
	}
	return out, headerSize + int(hdr.Length), nil
}

// HeaderSize returns the fixed 4-byte header size; exported for callers
// (stream.Stream) that need to read the header before they know the
// payload length.
func HeaderSize() int { return headerSize }
