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

// Op discriminates CommandRequest's operation union.
type Op uint8

const (
	OpNone Op = iota
	OpHget
	OpHset
	OpHdel
	OpHexist
	OpHmget
	OpHmset
	OpHmdel
	OpHmexist
	OpHgetall
	OpSubscribe
	OpUnsubscribe
	OpPublish
)

const (
	fieldReqOp             = 1
	fieldReqTable          = 2
	fieldReqKey            = 3
	fieldReqPair           = 4
	fieldReqKeys           = 5
	fieldReqPairs          = 6
	fieldReqTopic          = 7
	fieldReqSubscriptionID = 8
	fieldReqValues         = 9
)

// CommandRequest is the discriminated union over KV and pub/sub operations.
type CommandRequest struct {
	Op             Op
	Table          string
	Key            string
	Pair           Kvpair
	Keys           []string
	Pairs          []Kvpair
	Topic          string
	SubscriptionID uint32
	Values         []Value
}

func (r CommandRequest) Marshal() []byte {
	var dst []byte
	dst = appendVarintField(dst, fieldReqOp, uint64(r.Op))
	dst = appendBytesField(dst, fieldReqTable, []byte(r.Table))
	dst = appendBytesField(dst, fieldReqKey, []byte(r.Key))
	if r.Op == OpHset {
		dst = appendMessageField(dst, fieldReqPair, r.Pair.Marshal())
	}
	for _, k := range r.Keys {
		dst = appendBytesField(dst, fieldReqKeys, []byte(k))
	}
	for _, p := range r.Pairs {
		dst = appendMessageField(dst, fieldReqPairs, p.Marshal())
	}
	dst = appendBytesField(dst, fieldReqTopic, []byte(r.Topic))
	dst = appendVarintField(dst, fieldReqSubscriptionID, uint64(r.SubscriptionID))
	for _, v := range r.Values {
		dst = appendMessageField(dst, fieldReqValues, v.Marshal())
	}
	return dst
}

func UnmarshalCommandRequest(buf []byte) (CommandRequest, error) {
	var r CommandRequest
	err := decodeFields(buf, func(f field) error {
		switch f.num {
		case fieldReqOp:
			r.Op = Op(f.vint)
		case fieldReqTable:
			r.Table = string(f.raw)
		case fieldReqKey:
			r.Key = string(f.raw)
		case fieldReqPair:
			p, err := UnmarshalKvpair(f.raw)
			if err != nil {
				return err
			}
			r.Pair = p
		case fieldReqKeys:
			r.Keys = append(r.Keys, string(f.raw))
		case fieldReqPairs:
			p, err := UnmarshalKvpair(f.raw)
			if err != nil {
				return err
			}
			r.Pairs = append(r.Pairs, p)
		case fieldReqTopic:
			r.Topic = string(f.raw)
		case fieldReqSubscriptionID:
			r.SubscriptionID = uint32(f.vint)
		case fieldReqValues:
			v, err := UnmarshalValue(f.raw)
			if err != nil {
				return err
			}
			r.Values = append(r.Values, v)
		}
		return nil
	})
	if err != nil {
		return CommandRequest{}, err
	}
	return r, nil
}

// HTTP-style status codes used by CommandResponse.
const (
	StatusOK                  = 200
	StatusNotFound            = 404
	StatusInvalidCommand      = 400
	StatusInternalServerError = 500
)

const (
	fieldRespStatus  = 1
	fieldRespMessage = 2
	fieldRespValues  = 3
	fieldRespPairs   = 4
)

// CommandResponse is the uniform reply envelope for unary and streamed
// command results.
type CommandResponse struct {
	Status  uint16
	Message string
	Values  []Value
	Pairs   []Kvpair
}

func (r CommandResponse) Marshal() []byte {
	var dst []byte
	dst = appendVarintField(dst, fieldRespStatus, uint64(r.Status))
	dst = appendBytesField(dst, fieldRespMessage, []byte(r.Message))
	for _, v := range r.Values {
		dst = appendMessageField(dst, fieldRespValues, v.Marshal())
	}
	for _, p := range r.Pairs {
		dst = appendMessageField(dst, fieldRespPairs, p.Marshal())
	}
	return dst
}

func UnmarshalCommandResponse(buf []byte) (CommandResponse, error) {
	var r CommandResponse
	err := decodeFields(buf, func(f field) error {
		switch f.num {
		case fieldRespStatus:
			r.Status = uint16(f.vint)
		case fieldRespMessage:
			r.Message = string(f.raw)
		case fieldRespValues:
			v, err := UnmarshalValue(f.raw)
			if err != nil {
				return err
			}
			r.Values = append(r.Values, v)
		case fieldRespPairs:
			p, err := UnmarshalKvpair(f.raw)
			if err != nil {
				return err
			}
			r.Pairs = append(r.Pairs, p)
		}
		return nil
	})
	if err != nil {
		return CommandResponse{}, err
	}
	return r, nil
}

// OK builds a 200 response carrying values.
func OK(values ...Value) CommandResponse {
	return CommandResponse{Status: StatusOK, Values: values}
}

// NotFound builds a 404 response for a missing (table, key).
func NotFound(table, key string) CommandResponse {
	return CommandResponse{Status: StatusNotFound, Message: "Not found: " + table + "/" + key}
}

// Invalid builds a 400 response.
func Invalid(msg string) CommandResponse {
	return CommandResponse{Status: StatusInvalidCommand, Message: msg}
}

// Internal builds a 500 response.
func Internal(msg string) CommandResponse {
	return CommandResponse{Status: StatusInternalServerError, Message: msg}
}
