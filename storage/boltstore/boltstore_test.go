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

package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkv/flowkv/pb"
)

func open(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowkv.db")
	b, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestGetOfMissingKeyIsAbsent(t *testing.T) {
	b := open(t)
	v, err := b.Get("t", "missing")
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())
}

func TestSetGetDelRoundTrip(t *testing.T) {
	b := open(t)

	prev, err := b.Set("t", "k", pb.String("v1"))
	require.NoError(t, err)
	assert.True(t, prev.IsAbsent())

	prev, err = b.Set("t", "k", pb.String("v2"))
	require.NoError(t, err)
	assert.True(t, prev.Equal(pb.String("v1")))

	got, err := b.Get("t", "k")
	require.NoError(t, err)
	assert.True(t, got.Equal(pb.String("v2")))

	ok, err := b.Contains("t", "k")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := b.Del("t", "k")
	require.NoError(t, err)
	assert.True(t, deleted.Equal(pb.String("v2")))

	ok, err = b.Contains("t", "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetAllReturnsEveryPair(t *testing.T) {
	b := open(t)
	_, _ = b.Set("t", "a", pb.Integer(1))
	_, _ = b.Set("t", "b", pb.Integer(2))

	all, err := b.GetAll("t")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowkv.db")

	b1, err := Open(path)
	require.NoError(t, err)
	_, err = b1.Set("t", "k", pb.Integer(42))
	require.NoError(t, err)
	require.NoError(t, b1.Close())

	b2, err := Open(path)
	require.NoError(t, err)
	defer b2.Close()

	v, err := b2.Get("t", "k")
	require.NoError(t, err)
	assert.True(t, v.Equal(pb.Integer(42)))
}
