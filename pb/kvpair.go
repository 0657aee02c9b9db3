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

const (
	fieldKvpairKey   = 1
	fieldKvpairValue = 2
)

// Kvpair is (key, value) as described by DATA MODEL.
type Kvpair struct {
	Key   string
	Value Value
}

func NewKvpair(key string, value Value) Kvpair {
	return Kvpair{Key: key, Value: value}
}

func (p Kvpair) Marshal() []byte {
	var dst []byte
	dst = appendBytesField(dst, fieldKvpairKey, []byte(p.Key))
	dst = appendMessageField(dst, fieldKvpairValue, p.Value.Marshal())
	return dst
}

func UnmarshalKvpair(buf []byte) (Kvpair, error) {
	var p Kvpair
	err := decodeFields(buf, func(f field) error {
		switch f.num {
		case fieldKvpairKey:
			p.Key = string(f.raw)
		case fieldKvpairValue:
			v, err := UnmarshalValue(f.raw)
			if err != nil {
				return err
			}
			p.Value = v
		}
		return nil
	})
	if err != nil {
		return Kvpair{}, err
	}
	return p, nil
}
