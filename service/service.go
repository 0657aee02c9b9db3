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

// Package service is the command dispatcher (§4.6): it maps a decoded
// CommandRequest to the storage backend or the broadcaster and produces a
// response stream. Every operation except Subscribe yields exactly one
// response; Subscribe's stream stays open for the life of the subscription.
package service

import (
	"strconv"

	"github.com/flowkv/flowkv/broadcaster"
	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/storage"
)

// Dispatcher executes CommandRequests against a storage backend and a
// broadcaster.
type Dispatcher struct {
	store storage.Store
	bus   *broadcaster.Broadcaster
}

// New builds a Dispatcher over store and bus. Both are shared across every
// connection the server accepts.
func New(store storage.Store, bus *broadcaster.Broadcaster) *Dispatcher {
	return &Dispatcher{store: store, bus: bus}
}

// Execute dispatches req and returns its response stream. Callers drain the
// channel until it closes; for every operation but Subscribe, exactly one
// response is sent before the channel closes.
func (d *Dispatcher) Execute(req pb.CommandRequest) <-chan *pb.CommandResponse {
	switch req.Op {
	case pb.OpNone:
		return unary(pb.Invalid("Request has no data"))

	case pb.OpHget:
		v, err := d.store.Get(req.Table, req.Key)
		if err != nil {
			return unary(pb.Internal(err.Error()))
		}
		if v.IsAbsent() {
			return unary(pb.NotFound(req.Table, req.Key))
		}
		return unary(pb.OK(v))

	case pb.OpHset:
		prev, err := d.store.Set(req.Table, req.Pair.Key, req.Pair.Value)
		if err != nil {
			return unary(pb.Internal(err.Error()))
		}
		return unary(pb.OK(prev))

	case pb.OpHdel:
		prev, err := d.store.Del(req.Table, req.Key)
		if err != nil {
			return unary(pb.Internal(err.Error()))
		}
		return unary(pb.OK(prev))

	case pb.OpHexist:
		ok, err := d.store.Contains(req.Table, req.Key)
		if err != nil {
			return unary(pb.Internal(err.Error()))
		}
		return unary(pb.OK(pb.Bool(ok)))

	case pb.OpHmget:
		pairs := make([]pb.Kvpair, 0, len(req.Keys))
		for _, k := range req.Keys {
			v, err := d.store.Get(req.Table, k)
			if err != nil {
				return unary(pb.Internal(err.Error()))
			}
			pairs = append(pairs, pb.Kvpair{Key: k, Value: v})
		}
		return unary(pb.CommandResponse{Status: pb.StatusOK, Pairs: pairs})

	case pb.OpHmset:
		prev := make([]pb.Kvpair, 0, len(req.Pairs))
		for _, p := range req.Pairs {
			old, err := d.store.Set(req.Table, p.Key, p.Value)
			if err != nil {
				return unary(pb.Internal(err.Error()))
			}
			prev = append(prev, pb.Kvpair{Key: p.Key, Value: old})
		}
		return unary(pb.CommandResponse{Status: pb.StatusOK, Pairs: prev})

	case pb.OpHmdel:
		deleted := make([]pb.Kvpair, 0, len(req.Keys))
		for _, k := range req.Keys {
			v, err := d.store.Del(req.Table, k)
			if err != nil {
				return unary(pb.Internal(err.Error()))
			}
			deleted = append(deleted, pb.Kvpair{Key: k, Value: v})
		}
		return unary(pb.CommandResponse{Status: pb.StatusOK, Pairs: deleted})

	case pb.OpHmexist:
		results := make([]pb.Kvpair, 0, len(req.Keys))
		for _, k := range req.Keys {
			ok, err := d.store.Contains(req.Table, k)
			if err != nil {
				return unary(pb.Internal(err.Error()))
			}
			results = append(results, pb.Kvpair{Key: k, Value: pb.Bool(ok)})
		}
		return unary(pb.CommandResponse{Status: pb.StatusOK, Pairs: results})

	case pb.OpHgetall:
		all, err := d.store.GetAll(req.Table)
		if err != nil {
			return unary(pb.Internal(err.Error()))
		}
		return unary(pb.CommandResponse{Status: pb.StatusOK, Pairs: all})

	case pb.OpSubscribe:
		_, ch := d.bus.Subscribe(req.Topic)
		return ch

	case pb.OpUnsubscribe:
		if d.bus.Unsubscribe(req.Topic, req.SubscriptionID) {
			return unary(pb.OK(pb.Integer(int64(req.SubscriptionID))))
		}
		return unary(pb.NotFound(req.Topic, strconv.FormatUint(uint64(req.SubscriptionID), 10)))

	case pb.OpPublish:
		published := pb.CommandResponse{Status: pb.StatusOK, Values: req.Values}
		d.bus.Publish(req.Topic, &published)
		return unary(pb.OK())

	default:
		return unary(pb.Invalid("Request has no data"))
	}
}

// unary wraps a single response in a closed one-element channel.
func unary(resp pb.CommandResponse) <-chan *pb.CommandResponse {
	ch := make(chan *pb.CommandResponse, 1)
	ch <- &resp
	close(ch)
	return ch
}
