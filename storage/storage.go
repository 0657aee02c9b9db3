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

// Package storage defines the abstract key-value contract the command
// dispatcher depends on (§4.6). Backends (memtable, boltstore) implement
// this interface; the service package never depends on a concrete one.
package storage

import "github.com/flowkv/flowkv/pb"

// Store is the polymorphism boundary between the dispatcher and a concrete
// backend. All methods operate on a (table, key) pair.
type Store interface {
	// Get returns the value at (table, key), or an absent Value if it does
	// not exist. A missing key is not an error.
	Get(table, key string) (pb.Value, error)

	// Set writes value at (table, key) and returns the previous value, if
	// any (absent otherwise).
	Set(table, key string, value pb.Value) (pb.Value, error)

	// Contains reports whether (table, key) currently has a value.
	Contains(table, key string) (bool, error)

	// Del removes (table, key) and returns the value that was deleted, if
	// any (absent otherwise).
	Del(table, key string) (pb.Value, error)

	// GetAll returns every Kvpair currently stored in table.
	GetAll(table string) ([]pb.Kvpair, error)

	// GetIter returns an Iterator over every Kvpair in table, for callers
	// that want to stream results instead of materializing them all at
	// once.
	GetIter(table string) (Iterator, error)

	// Close releases any resources (file handles, background goroutines)
	// held by the backend.
	Close() error
}

// Iterator walks a table's entries one Kvpair at a time.
type Iterator interface {
	// Next advances the iterator, reporting false once exhausted.
	Next() bool

	// Kvpair returns the entry at the iterator's current position. Only
	// valid after a call to Next that returned true.
	Kvpair() pb.Kvpair

	// Err reports any error encountered during iteration.
	Err() error

	// Close releases resources associated with the iterator.
	Close() error
}
