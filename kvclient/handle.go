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

package kvclient

import (
	"io"

	"github.com/flowkv/flowkv/frame"
	"github.com/flowkv/flowkv/pb"
	"github.com/flowkv/flowkv/stream"
)

// Handle is a message-stream adapter over one logical substream, offering
// the two request shapes §4.8 names: a single unary exchange, or a
// subscription's streaming responses.
type Handle struct {
	st *stream.Stream
}

func newHandle(rw io.ReadWriteCloser, compressor frame.Compressor) *Handle {
	return &Handle{st: stream.New(rw, compressor)}
}

// ExecuteUnary sends cmd and returns the single response the peer replies
// with. It is an error for the peer to close the substream before replying.
func (h *Handle) ExecuteUnary(cmd pb.CommandRequest) (pb.CommandResponse, error) {
	if err := h.st.Send(cmd); err != nil {
		return pb.CommandResponse{}, err
	}
	resp, err := h.st.NextResponse()
	if err != nil {
		return pb.CommandResponse{}, newError("peer closed without replying: %v", err)
	}
	return resp, nil
}

// StreamResult is the handle returned by ExecuteStreaming: ID is the
// subscription id smuggled into the first response's values[0] (§4.5,
// §9), and Stream yields every subsequent response until end-of-stream.
type StreamResult struct {
	ID     uint32
	Stream *SubscriptionStream
}

// SubscriptionStream yields the responses published to one subscription,
// in delivery order, until the server closes the substream.
type SubscriptionStream struct {
	st *stream.Stream
}

// Next blocks for the next published response. io.EOF signals the server
// closed the substream (e.g. the subscription was reaped or unsubscribed).
func (s *SubscriptionStream) Next() (pb.CommandResponse, error) {
	return s.st.NextResponse()
}

// Close releases the underlying substream.
func (s *SubscriptionStream) Close() error {
	return s.st.Close()
}

// ExecuteStreaming sends cmd, half-closes the write side (the client never
// sends again on a subscription substream), then reads the first response.
// Per the first-message id smuggling contract, that response must carry
// status 200 and an integer in values[0]; anything else is reported as
// Internal("Invalid stream").
func (h *Handle) ExecuteStreaming(cmd pb.CommandRequest) (*StreamResult, error) {
	if err := h.st.Send(cmd); err != nil {
		return nil, err
	}
	if err := h.st.CloseWrite(); err != nil {
		return nil, err
	}

	first, err := h.st.NextResponse()
	if err != nil {
		return nil, err
	}
	if first.Status != pb.StatusOK || len(first.Values) == 0 || first.Values[0].Kind != pb.KindInteger {
		return nil, newError("Invalid stream")
	}

	return &StreamResult{
		ID:     uint32(first.Values[0].I),
		Stream: &SubscriptionStream{st: h.st},
	}, nil
}

// Close releases the underlying substream.
func (h *Handle) Close() error {
	return h.st.Close()
}
