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

package pb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRoundTrip(t *testing.T) {
	cases := []Value{
		Absent(),
		Integer(0),
		Integer(-42),
		Integer(1 << 40),
		Float(0),
		Float(3.14159),
		String(""),
		String("hello"),
		Bytes(nil),
		Bytes([]byte{0, 1, 2, 255}),
		Bool(false),
		Bool(true),
	}
	for _, v := range cases {
		buf := v.Marshal()
		got, err := UnmarshalValue(buf)
		require.NoError(t, err)
		assert.True(t, v.Equal(got), "want %v got %v", v, got)
	}
}

func TestKvpairRoundTrip(t *testing.T) {
	p := NewKvpair("key", String("value"))
	got, err := UnmarshalKvpair(p.Marshal())
	require.NoError(t, err)
	assert.Equal(t, p.Key, got.Key)
	assert.True(t, p.Value.Equal(got.Value))
}

func TestCommandRequestRoundTrip(t *testing.T) {
	req := CommandRequest{
		Op:    OpHset,
		Table: "table",
		Pair:  NewKvpair("key", Bytes(make([]byte, 16384))),
	}
	got, err := UnmarshalCommandRequest(req.Marshal())
	require.NoError(t, err)
	assert.Equal(t, req.Op, got.Op)
	assert.Equal(t, req.Table, got.Table)
	assert.Equal(t, req.Pair.Key, got.Pair.Key)
	assert.True(t, req.Pair.Value.Equal(got.Pair.Value))

	multi := CommandRequest{Op: OpHmget, Table: "t", Keys: []string{"a", "b", "c"}}
	got2, err := UnmarshalCommandRequest(multi.Marshal())
	require.NoError(t, err)
	assert.Equal(t, multi.Keys, got2.Keys)
}

func TestCommandResponseRoundTrip(t *testing.T) {
	resp := OK(String("value"))
	got, err := UnmarshalCommandResponse(resp.Marshal())
	require.NoError(t, err)
	assert.Equal(t, uint16(StatusOK), got.Status)
	require.Len(t, got.Values, 1)
	assert.True(t, resp.Values[0].Equal(got.Values[0]))

	nf := NotFound("table", "key")
	got2, err := UnmarshalCommandResponse(nf.Marshal())
	require.NoError(t, err)
	assert.Equal(t, uint16(StatusNotFound), got2.Status)
	assert.Contains(t, got2.Message, "Not found")
}
