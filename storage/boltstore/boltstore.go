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

// Package boltstore is the embedded storage.Store backend for the
// `Sledb(path)` configuration variant: bbolt is an embedded, ordered,
// log-structured B+tree store, the closest Go analog available to Rust's
// sled (the contract this spec was distilled from). Each table maps to one
// bbolt bucket, created lazily on first write.
package boltstore

import (
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/storage"
)

// BoltStore is a storage.Store backed by a single bbolt database file.
type BoltStore struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database at path.
func Open(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "boltstore: open")
	}
	return &BoltStore{db: db}, nil
}

func (b *BoltStore) Get(table, key string) (pb.Value, error) {
	var v pb.Value
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		decoded, err := pb.UnmarshalValue(raw)
		if err != nil {
			return err
		}
		v, found = decoded, true
		return nil
	})
	if err != nil {
		return pb.Absent(), errors.Wrap(err, "boltstore: get")
	}
	if !found {
		return pb.Absent(), nil
	}
	return v, nil
}

func (b *BoltStore) Set(table, key string, value pb.Value) (pb.Value, error) {
	prev := pb.Absent()
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		if raw := bucket.Get([]byte(key)); raw != nil {
			decoded, err := pb.UnmarshalValue(raw)
			if err != nil {
				return err
			}
			prev = decoded
		}
		return bucket.Put([]byte(key), value.Marshal())
	})
	if err != nil {
		return pb.Absent(), errors.Wrap(err, "boltstore: set")
	}
	return prev, nil
}

func (b *BoltStore) Contains(table, key string) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}
		found = bucket.Get([]byte(key)) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "boltstore: contains")
	}
	return found, nil
}

func (b *BoltStore) Del(table, key string) (pb.Value, error) {
	prev := pb.Absent()
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		decoded, err := pb.UnmarshalValue(raw)
		if err != nil {
			return err
		}
		prev = decoded
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return pb.Absent(), errors.Wrap(err, "boltstore: del")
	}
	return prev, nil
}

func (b *BoltStore) GetAll(table string) ([]pb.Kvpair, error) {
	var out []pb.Kvpair
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(table))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, raw []byte) error {
			v, err := pb.UnmarshalValue(raw)
			if err != nil {
				return err
			}
			out = append(out, pb.Kvpair{Key: string(k), Value: v})
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "boltstore: get_all")
	}
	return out, nil
}

func (b *BoltStore) GetIter(table string) (storage.Iterator, error) {
	pairs, err := b.GetAll(table)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{pairs: pairs, idx: -1}, nil
}

func (b *BoltStore) Close() error {
	return b.db.Close()
}

type sliceIterator struct {
	pairs []pb.Kvpair
	idx   int
}

func (it *sliceIterator) Next() bool {
	it.idx++
	return it.idx < len(it.pairs)
}

func (it *sliceIterator) Kvpair() pb.Kvpair {
	return it.pairs[it.idx]
}

func (it *sliceIterator) Err() error {
	return nil
}

func (it *sliceIterator) Close() error {
	return nil
}

var _ storage.Store = (*BoltStore)(nil)
