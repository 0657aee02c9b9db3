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

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowkv/flowkv/broadcaster"
	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/storage/memtable"
)

func drainOne(t *testing.T, ch <-chan *pb.CommandResponse) *pb.CommandResponse {
	t.Helper()
	select {
	case resp, ok := <-ch:
		require.True(t, ok)
		select {
		case _, stillOpen := <-ch:
			assert.False(t, stillOpen, "expected channel to close after one response")
		case <-time.After(100 * time.Millisecond):
			t.Fatal("channel did not close after unary response")
		}
		return resp
	case <-time.After(time.Second):
		t.Fatal("no response")
		return nil
	}
}

func TestRequestWithNoDataIsInvalid(t *testing.T) {
	d := New(memtable.New(), broadcaster.New())
	resp := drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpNone}))
	assert.Equal(t, pb.StatusInvalidCommand, int(resp.Status))
}

func TestHsetThenHget(t *testing.T) {
	d := New(memtable.New(), broadcaster.New())

	resp := drainOne(t, d.Execute(pb.CommandRequest{
		Op: pb.OpHset, Table: "t", Pair: pb.NewKvpair("k", pb.Integer(7)),
	}))
	assert.True(t, resp.Values[0].IsAbsent())

	resp = drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpHget, Table: "t", Key: "k"}))
	assert.True(t, resp.Values[0].Equal(pb.Integer(7)))
}

func TestHdelReturnsDeletedValue(t *testing.T) {
	d := New(memtable.New(), broadcaster.New())
	_ = drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpHset, Table: "t", Pair: pb.NewKvpair("k", pb.String("v"))}))

	resp := drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpHdel, Table: "t", Key: "k"}))
	assert.True(t, resp.Values[0].Equal(pb.String("v")))

	resp = drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpHexist, Table: "t", Key: "k"}))
	assert.True(t, resp.Values[0].Equal(pb.Bool(false)))
}

func TestHmgetReturnsPairsForEachKey(t *testing.T) {
	d := New(memtable.New(), broadcaster.New())
	_ = drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpHset, Table: "t", Pair: pb.NewKvpair("a", pb.Integer(1))}))

	resp := drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpHmget, Table: "t", Keys: []string{"a", "missing"}}))
	require.Len(t, resp.Pairs, 2)
	assert.True(t, resp.Pairs[0].Value.Equal(pb.Integer(1)))
	assert.True(t, resp.Pairs[1].Value.IsAbsent())
}

func TestSubscribeYieldsAckThenPublishedValues(t *testing.T) {
	bus := broadcaster.New()
	d := New(memtable.New(), bus)

	ch := d.Execute(pb.CommandRequest{Op: pb.OpSubscribe, Topic: "news"})

	var ack *pb.CommandResponse
	select {
	case ack = <-ch:
	case <-time.After(time.Second):
		t.Fatal("no ack")
	}
	require.Len(t, ack.Values, 1)
	id := uint32(ack.Values[0].I)

	published := pb.OK(pb.String("breaking"))
	bus.Publish("news", &published)

	select {
	case got := <-ch:
		assert.Equal(t, "breaking", got.Values[0].S)
	case <-time.After(time.Second):
		t.Fatal("no published message")
	}

	unsub := drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpUnsubscribe, Topic: "news", SubscriptionID: id}))
	assert.Equal(t, pb.StatusOK, int(unsub.Status))

	unsub = drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpUnsubscribe, Topic: "news", SubscriptionID: id}))
	assert.Equal(t, pb.StatusNotFound, int(unsub.Status))
}

func TestPublishRepliesOKImmediately(t *testing.T) {
	d := New(memtable.New(), broadcaster.New())
	resp := drainOne(t, d.Execute(pb.CommandRequest{Op: pb.OpPublish, Topic: "t", Values: []pb.Value{pb.Integer(1)}}))
	assert.Equal(t, pb.StatusOK, int(resp.Status))
}
