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

package storage

import (
	"github.com/pkg/errors"

	"github.com/flowkv/flowkv/storage/boltstore"
	"github.com/flowkv/flowkv/storage/memtable"
)

// Config describes the `storage` config section: a variant tag plus the
// path the embedded variants read/write.
type Config struct {
	Variant string `config:"variant"` // MemTable | Sledb | Rocksdb
	Path    string `config:"path"`
}

// ErrUnsupportedBackend is returned for the Rocksdb variant: the config
// schema accepts it (matching the source this spec was distilled from), but
// no pure-Go RocksDB binding is available, so construction fails fast with
// a clear startup error rather than panicking deep in a request path.
var ErrUnsupportedBackend = errors.New("storage: Rocksdb backend is not available in this build")

// Open constructs the Store named by cfg.Variant.
func Open(cfg Config) (Store, error) {
	switch cfg.Variant {
	case "", "MemTable":
		return memtable.New(), nil
	case "Sledb":
		if cfg.Path == "" {
			return nil, errors.New("storage: Sledb requires a path")
		}
		return boltstore.Open(cfg.Path)
	case "Rocksdb":
		return nil, ErrUnsupportedBackend
	default:
		return nil, errors.Errorf("storage: unknown variant %q", cfg.Variant)
	}
}
