// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sandbox is the capability surface a plugin instance invokes: guest
// config, request introspection, decision/tag writing, the per-request
// context bag, and gated access to remote state and outbound HTTP.
package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Kind discriminates the variants of Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindList
	KindMap
)

// bytesSentinel is the JSON object key used to distinguish a byte string
// from a text string on the wire: {"$bytes": "<base64>"}.
const bytesSentinel = "$bytes"

// Value is the self-describing structured-data tree guest config and the
// context bag exchange: {null, bool, int, float, string, bytes, list, map}.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	bytes []byte
	list  []Value
	m     map[string]Value
}

func NullValue() Value               { return Value{kind: KindNull} }
func BoolValue(v bool) Value         { return Value{kind: KindBool, b: v} }
func IntValue(v int64) Value         { return Value{kind: KindInt, i: v} }
func FloatValue(v float64) Value     { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value     { return Value{kind: KindString, s: v} }
func BytesValue(v []byte) Value      { return Value{kind: KindBytes, bytes: append([]byte(nil), v...)} }
func ListValue(items []Value) Value  { return Value{kind: KindList, list: items} }
func MapValue(m map[string]Value) Value { return Value{kind: KindMap, m: m} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() (bool, bool)       { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)       { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool)   { return v.f, v.kind == KindFloat }
func (v Value) String() (string, bool)   { return v.s, v.kind == KindString }
func (v Value) Bytes() ([]byte, bool)    { return v.bytes, v.kind == KindBytes }
func (v Value) List() ([]Value, bool)    { return v.list, v.kind == KindList }
func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// MarshalJSON encodes Value as JSON, representing byte strings with the
// {"$bytes": base64} sentinel envelope since raw JSON has no byte-string type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindBytes:
		return json.Marshal(map[string]string{bytesSentinel: base64.StdEncoding.EncodeToString(v.bytes)})
	case KindList:
		return json.Marshal(v.list)
	case KindMap:
		return json.Marshal(v.m)
	default:
		return nil, fmt.Errorf("sandbox: unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON decodes Value from JSON, recognizing the bytes sentinel
// envelope and otherwise mapping JSON numbers to Int when they carry no
// fractional part, Float otherwise.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := ValueFromInterface(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// ValueFromInterface converts a plain decoded-JSON value (as produced by
// encoding/json into an interface{}) into a Value. It is exported for
// callers that build GuestConfig from their own JSON documents rather than
// decoding a Value directly.
func ValueFromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t)), nil
		}
		return FloatValue(t), nil
	case string:
		return StringValue(t), nil
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			item, err := ValueFromInterface(e)
			if err != nil {
				return Value{}, err
			}
			items[i] = item
		}
		return ListValue(items), nil
	case map[string]interface{}:
		if raw, ok := t[bytesSentinel]; ok && len(t) == 1 {
			encoded, ok := raw.(string)
			if !ok {
				return Value{}, fmt.Errorf("sandbox: %s sentinel must be a string", bytesSentinel)
			}
			decoded, err := base64.StdEncoding.DecodeString(encoded)
			if err != nil {
				return Value{}, fmt.Errorf("sandbox: invalid base64 in %s sentinel: %w", bytesSentinel, err)
			}
			return BytesValue(decoded), nil
		}
		m := make(map[string]Value, len(t))
		for k, e := range t {
			val, err := ValueFromInterface(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = val
		}
		return MapValue(m), nil
	default:
		return Value{}, fmt.Errorf("sandbox: unsupported JSON type %T", raw)
	}
}
