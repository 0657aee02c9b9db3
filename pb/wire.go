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

// Package pb implements the wire schema for Value, Kvpair, CommandRequest and
// CommandResponse (see DATA MODEL). Encoding follows the protobuf wire format
// (varint tag+wire-type, length-delimited strings/bytes/messages, fixed64
// doubles) but is hand-written rather than protoc-generated: Value is a
// tagged union over unrelated Go types, which the classic reflection-based
// marshaler (struct tags + oneof wrapper types) does not express cleanly
// without generated descriptors. The low-level varint primitives are not
// reimplemented; they come straight from gogo/protobuf, the same package the
// rest of the wire decoders in this lineage use for manual byte-level framing.
package pb

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/gogo/protobuf/proto"
)

// ErrTruncated is returned when a buffer ends in the middle of a field.
var ErrTruncated = errors.New("pb: truncated message")

// wireType mirrors the protobuf wire-format tag's low 3 bits.
type wireType uint8

const (
	wireVarint  wireType = 0
	wireFixed64 wireType = 1
	wireBytes   wireType = 2
	wireFixed32 wireType = 5
)

func appendTag(dst []byte, field int, wt wireType) []byte {
	return append(dst, proto.EncodeVarint(uint64(field)<<3|uint64(wt))...)
}

// appendVarintField appends a varint-encoded field, skipping zero values the
// way proto3 would (the decoder treats an absent field as its zero value).
func appendVarintField(dst []byte, field int, v uint64) []byte {
	if v == 0 {
		return dst
	}
	dst = append(dst, appendTag(nil, field, wireVarint)...)
	dst = append(dst, proto.EncodeVarint(v)...)
	return dst
}

func appendBoolField(dst []byte, field int, v bool) []byte {
	if !v {
		return dst
	}
	dst = append(dst, appendTag(nil, field, wireVarint)...)
	dst = append(dst, 1)
	return dst
}

func appendFixed64Field(dst []byte, field int, bits uint64) []byte {
	if bits == 0 {
		return dst
	}
	dst = append(dst, appendTag(nil, field, wireFixed64)...)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], bits)
	dst = append(dst, buf[:]...)
	return dst
}

func appendBytesField(dst []byte, field int, b []byte) []byte {
	if len(b) == 0 {
		return dst
	}
	dst = append(dst, appendTag(nil, field, wireBytes)...)
	dst = append(dst, proto.EncodeVarint(uint64(len(b)))...)
	dst = append(dst, b...)
	return dst
}

func appendMessageField(dst []byte, field int, msg []byte) []byte {
	// An empty nested message is still meaningful (it is how Value encodes
	// Absent), so unlike the scalar helpers above this one does not skip
	// zero-length payloads.
	dst = append(dst, appendTag(nil, field, wireBytes)...)
	dst = append(dst, proto.EncodeVarint(uint64(len(msg)))...)
	dst = append(dst, msg...)
	return dst
}

// field is one decoded (field number, wire type, value) triple.
type field struct {
	num  int
	wt   wireType
	vint uint64
	raw  []byte // populated for wireBytes
}

// decodeFields walks buf and invokes fn for every field in order. fn returning
// a non-nil error aborts the walk.
func decodeFields(buf []byte, fn func(field) error) error {
	for len(buf) > 0 {
		tag, n := proto.DecodeVarint(buf)
		if n == 0 {
			return ErrTruncated
		}
		buf = buf[n:]

		num := int(tag >> 3)
		wt := wireType(tag & 0x7)

		var f field
		f.num = num
		f.wt = wt

		switch wt {
		case wireVarint:
			v, n := proto.DecodeVarint(buf)
			if n == 0 {
				return ErrTruncated
			}
			buf = buf[n:]
			f.vint = v

		case wireFixed64:
			if len(buf) < 8 {
				return ErrTruncated
			}
			f.vint = binary.LittleEndian.Uint64(buf[:8])
			buf = buf[8:]

		case wireFixed32:
			if len(buf) < 4 {
				return ErrTruncated
			}
			f.vint = uint64(binary.LittleEndian.Uint32(buf[:4]))
			buf = buf[4:]

		case wireBytes:
			l, n := proto.DecodeVarint(buf)
			if n == 0 {
				return ErrTruncated
			}
			buf = buf[n:]
			if uint64(len(buf)) < l {
				return ErrTruncated
			}
			f.raw = buf[:l]
			buf = buf[l:]

		default:
			return ErrTruncated
		}

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func float64bits(f float64) uint64 { return math.Float64bits(f) }
func bitsFloat64(b uint64) float64 { return math.Float64frombits(b) }
