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

// Package broadcaster is the process-wide pub/sub registry of §4.5: topics
// map to sets of subscription ids, ids map to bounded channels of
// *pb.CommandResponse. Publish fans a response out to every live subscriber
// of a topic without blocking on any one of them.
package broadcaster

import (
	"sync"
	"sync/atomic"

	"github.com/flowkv/flowkv/common"
	"github.com/flowkv/flowkv/pb"
)

// SubscriptionID identifies one live subscription. Never reused within a
// process lifetime.
type SubscriptionID = uint32

// Broadcaster is safe for concurrent use by many publishers and subscribers.
type Broadcaster struct {
	mut    sync.RWMutex
	topics map[string]map[SubscriptionID]struct{}
	subs   map[SubscriptionID]chan *pb.CommandResponse

	nextID atomic.Uint32
}

// New returns an empty Broadcaster.
func New() *Broadcaster {
	return &Broadcaster{
		topics: make(map[string]map[SubscriptionID]struct{}),
		subs:   make(map[SubscriptionID]chan *pb.CommandResponse),
	}
}

// Subscribe registers a new subscription to topic and returns its id and
// the channel it will receive published responses on. The first value
// delivered on the channel is always an ack carrying the subscription id
// itself, so the caller can recover it from the message stream alone.
func (b *Broadcaster) Subscribe(topic string) (SubscriptionID, <-chan *pb.CommandResponse) {
	id := b.nextID.Add(1)
	ch := make(chan *pb.CommandResponse, common.SubscriptionQueueCapacity)

	b.mut.Lock()
	ids, ok := b.topics[topic]
	isNewTopic := !ok
	if !ok {
		ids = make(map[SubscriptionID]struct{})
		b.topics[topic] = ids
	}
	ids[id] = struct{}{}
	b.subs[id] = ch
	b.mut.Unlock()

	activeSubscriptions.Inc()
	if isNewTopic {
		activeTopics.Inc()
	}

	ack := pb.OK(pb.Integer(int64(id)))
	ch <- &ack

	return id, ch
}

// Unsubscribe removes id from topic and from the subscription table.
// Reports false if id was not a live subscriber of topic.
func (b *Broadcaster) Unsubscribe(topic string, id SubscriptionID) bool {
	b.mut.Lock()
	defer b.mut.Unlock()
	return b.unsubscribeLocked(topic, id)
}

func (b *Broadcaster) unsubscribeLocked(topic string, id SubscriptionID) bool {
	ids, ok := b.topics[topic]
	if !ok {
		return false
	}
	if _, ok := ids[id]; !ok {
		return false
	}

	delete(ids, id)
	if len(ids) == 0 {
		delete(b.topics, topic)
		activeTopics.Dec()
	}
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	activeSubscriptions.Dec()
	return true
}

// Publish fans resp out to every current subscriber of topic. Fan-out runs
// on a detached goroutine; Publish itself never blocks on a slow or dead
// subscriber. A subscriber whose channel is full or closed is reaped.
func (b *Broadcaster) Publish(topic string, resp *pb.CommandResponse) {
	go b.publish(topic, resp)
}

func (b *Broadcaster) publish(topic string, resp *pb.CommandResponse) {
	b.mut.RLock()
	ids, ok := b.topics[topic]
	if !ok {
		b.mut.RUnlock()
		return
	}
	snapshot := make([]SubscriptionID, 0, len(ids))
	for id := range ids {
		snapshot = append(snapshot, id)
	}
	senders := make(map[SubscriptionID]chan *pb.CommandResponse, len(snapshot))
	for _, id := range snapshot {
		if ch, ok := b.subs[id]; ok {
			senders[id] = ch
		}
	}
	b.mut.RUnlock()

	var dead []SubscriptionID
	for _, id := range snapshot {
		ch, ok := senders[id]
		if !ok {
			dead = append(dead, id)
			continue
		}
		if !trySend(ch, resp) {
			dead = append(dead, id)
		}
	}

	if len(dead) == 0 {
		return
	}
	subscribersReaped.Add(float64(len(dead)))
	b.mut.Lock()
	for _, id := range dead {
		b.unsubscribeLocked(topic, id)
	}
	b.mut.Unlock()
}

// trySend attempts a non-blocking send, reporting false on a full or
// closed channel so the caller can reap the subscriber.
func trySend(ch chan *pb.CommandResponse, resp *pb.CommandResponse) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- resp:
		return true
	default:
		return false
	}
}

// NumTopics reports the number of topics with at least one live
// subscriber, for metrics.
func (b *Broadcaster) NumTopics() int {
	b.mut.RLock()
	defer b.mut.RUnlock()
	return len(b.topics)
}

// NumSubscriptions reports the total number of live subscriptions across
// all topics, for metrics.
func (b *Broadcaster) NumSubscriptions() int {
	b.mut.RLock()
	defer b.mut.RUnlock()
	return len(b.subs)
}
