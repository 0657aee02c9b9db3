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

package frame

import (
	"bytes"
	"compress/gzip"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v3"
)

// zstd encoders/decoders are safe for concurrent use and expensive to build,
// so one pair is shared process-wide (mirrors how the long-lived zap logger
// is shared across connections elsewhere in this codebase).
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdOnce    sync.Once
)

func sharedZstd() (*zstd.Encoder, *zstd.Decoder) {
	zstdOnce.Do(func() {
		zstdEncoder, _ = zstd.NewWriter(nil)
		zstdDecoder, _ = zstd.NewReader(nil)
	})
	return zstdEncoder, zstdDecoder
}

func compress(c Compressor, src []byte) ([]byte, error) {
	switch c {
	case CompressorGZIP:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressorLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(src); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil

	case CompressorZSTD:
		enc, _ := sharedZstd()
		return enc.EncodeAll(src, make([]byte, 0, len(src))), nil

	default:
		return nil, ErrFrameError
	}
}

func decompress(c Compressor, src []byte) ([]byte, error) {
	switch c {
	case CompressorGZIP:
		r, err := gzip.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)

	case CompressorLZ4:
		r := lz4.NewReader(bytes.NewReader(src))
		return io.ReadAll(r)

	case CompressorZSTD:
		_, dec := sharedZstd()
		return dec.DecodeAll(src, nil)

	default:
		return nil, ErrFrameError
	}
}
