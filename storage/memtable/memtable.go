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

// Package memtable is the in-memory storage.Store backend (the `MemTable`
// configuration variant): a table name maps to its own RWMutex-guarded map
// of key to Value, so operations against different tables never contend.
package memtable

import (
	"sort"
	"sync"

	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/storage"
)

type table struct {
	mut  sync.RWMutex
	data map[string]pb.Value
}

func newTable() *table {
	return &table{data: make(map[string]pb.Value)}
}

// MemTable is a process-local, sharded-by-table storage.Store.
type MemTable struct {
	mut    sync.RWMutex
	tables map[string]*table
}

// New returns an empty MemTable.
func New() *MemTable {
	return &MemTable{tables: make(map[string]*table)}
}

func (m *MemTable) tableFor(name string, create bool) *table {
	m.mut.RLock()
	t, ok := m.tables[name]
	m.mut.RUnlock()
	if ok {
		return t
	}
	if !create {
		return nil
	}

	m.mut.Lock()
	defer m.mut.Unlock()
	if t, ok := m.tables[name]; ok {
		return t
	}
	t = newTable()
	m.tables[name] = t
	return t
}

func (m *MemTable) Get(name, key string) (pb.Value, error) {
	t := m.tableFor(name, false)
	if t == nil {
		return pb.Absent(), nil
	}

	t.mut.RLock()
	defer t.mut.RUnlock()
	v, ok := t.data[key]
	if !ok {
		return pb.Absent(), nil
	}
	return v, nil
}

func (m *MemTable) Set(name, key string, value pb.Value) (pb.Value, error) {
	t := m.tableFor(name, true)

	t.mut.Lock()
	defer t.mut.Unlock()
	prev, ok := t.data[key]
	t.data[key] = value
	if !ok {
		return pb.Absent(), nil
	}
	return prev, nil
}

func (m *MemTable) Contains(name, key string) (bool, error) {
	t := m.tableFor(name, false)
	if t == nil {
		return false, nil
	}

	t.mut.RLock()
	defer t.mut.RUnlock()
	_, ok := t.data[key]
	return ok, nil
}

func (m *MemTable) Del(name, key string) (pb.Value, error) {
	t := m.tableFor(name, false)
	if t == nil {
		return pb.Absent(), nil
	}

	t.mut.Lock()
	defer t.mut.Unlock()
	prev, ok := t.data[key]
	if !ok {
		return pb.Absent(), nil
	}
	delete(t.data, key)
	return prev, nil
}

func (m *MemTable) GetAll(name string) ([]pb.Kvpair, error) {
	t := m.tableFor(name, false)
	if t == nil {
		return nil, nil
	}

	t.mut.RLock()
	defer t.mut.RUnlock()
	out := make([]pb.Kvpair, 0, len(t.data))
	for k, v := range t.data {
		out = append(out, pb.Kvpair{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemTable) GetIter(name string) (storage.Iterator, error) {
	pairs, err := m.GetAll(name)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{pairs: pairs, idx: -1}, nil
}

func (m *MemTable) Close() error {
	return nil
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

var _ storage.Store = (*MemTable)(nil)
