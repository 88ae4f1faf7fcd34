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

package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"sentryproc/pkg/sandbox"
)

func unknownOpError(op string) error { return fmt.Errorf("plugin: unknown host op %q", op) }

// hostModuleName is the wazero host module a guest imports to reach the
// capability surface in pkg/sandbox. It mirrors the original WIT package
// path this ABI is modeled on.
const hostModuleName = "bulwark:plugin"

// hostCallFuncName is the single imported function guests call into; every
// capability is multiplexed over it by Op, keeping the ABI to one
// marshaled-envelope round trip instead of one wazero import per capability.
const hostCallFuncName = "host_call"

// hostRequest is the envelope a guest marshals before calling host_call.
type hostRequest struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// hostResponse is the envelope dispatchHostCall marshals back.
type hostResponse struct {
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// dispatchHostCall executes one capability call against h and returns the
// marshaled response envelope. It never panics: any encode/decode failure or
// capability error becomes an {ok:false, error} envelope, since only the
// guest's own fault/trap should ever surface as a FaultError.
func dispatchHostCall(ctx context.Context, h *sandbox.Host, reqBytes []byte) []byte {
	var req hostRequest
	if err := json.Unmarshal(reqBytes, &req); err != nil {
		return mustMarshalResponse(hostResponse{Error: err.Error()})
	}

	result, err := invokeCapability(ctx, h, req.Op, req.Args)
	if err != nil {
		return mustMarshalResponse(hostResponse{Error: err.Error()})
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return mustMarshalResponse(hostResponse{Error: err.Error()})
	}
	return mustMarshalResponse(hostResponse{Ok: true, Result: encoded})
}

func mustMarshalResponse(resp hostResponse) []byte {
	data, err := json.Marshal(resp)
	if err != nil {
		// Only hostResponse's own fields are being marshaled here, all of
		// which are always representable as JSON; this cannot fail.
		panic(err)
	}
	return data
}

// invokeCapability maps one Op onto the corresponding *sandbox.Host method.
// Argument/result shapes are intentionally plain structs so guests written
// in any language can decode them without a generated binding.
func invokeCapability(ctx context.Context, h *sandbox.Host, op string, args json.RawMessage) (interface{}, error) {
	switch op {
	case "config_keys":
		return h.ConfigKeys(), nil
	case "config_var":
		var a struct{ Key string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		v, ok := h.ConfigVar(a.Key)
		if !ok {
			return nil, nil
		}
		return v, nil
	case "proxy_hops":
		return h.ProxyHops(), nil
	case "request":
		return h.Request(), nil
	case "set_decision":
		var a struct{ Accept, Restrict, Unknown float64 }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return nil, h.SetDecision(a.Accept, a.Restrict, a.Unknown)
	case "set_tags":
		var a struct{ Tags []string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return nil, h.SetTags(a.Tags)
	case "get_context_value":
		var a struct{ Key string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		v, ok := h.GetContextValue(a.Key)
		if !ok {
			return nil, nil
		}
		return v, nil
	case "set_context_value":
		var a struct {
			Key   string
			Value sandbox.Value
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		h.SetContextValue(a.Key, a.Value)
		return nil, nil
	case "get":
		var a struct{ Key string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		v, ok, err := h.Get(ctx, a.Key)
		if err != nil || !ok {
			return nil, err
		}
		return v, nil
	case "set":
		var a struct{ Key, Value string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return nil, h.Set(ctx, a.Key, a.Value)
	case "del":
		var a struct{ Keys []string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.Del(ctx, a.Keys...)
	case "incr_by":
		var a struct {
			Key   string
			Delta int64
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.IncrBy(ctx, a.Key, a.Delta)
	case "sadd":
		var a struct {
			Key     string
			Members []string
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.SAdd(ctx, a.Key, a.Members...)
	case "srem":
		var a struct {
			Key     string
			Members []string
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.SRem(ctx, a.Key, a.Members...)
	case "smembers":
		var a struct{ Key string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.SMembers(ctx, a.Key)
	case "expire":
		var a struct {
			Key        string
			TTLSeconds uint64
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return nil, h.Expire(ctx, a.Key, a.TTLSeconds)
	case "expire_at":
		var a struct {
			Key         string
			UnixSeconds uint64
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return nil, h.ExpireAt(ctx, a.Key, a.UnixSeconds)
	case "incr_rate_limit":
		var a struct {
			Key    string
			Delta  int64
			Window uint64
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.IncrRateLimit(ctx, a.Key, a.Delta, a.Window)
	case "check_rate_limit":
		var a struct{ Key string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		st, ok, err := h.CheckRateLimit(ctx, a.Key)
		if err != nil || !ok {
			return nil, err
		}
		return st, nil
	case "incr_breaker":
		var a struct {
			Key                        string
			SuccessDelta, FailureDelta int64
			Window                     uint64
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		return h.IncrBreaker(ctx, a.Key, a.SuccessDelta, a.FailureDelta, a.Window)
	case "check_breaker":
		var a struct{ Key string }
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
		st, ok, err := h.CheckBreaker(ctx, a.Key)
		if err != nil || !ok {
			return nil, err
		}
		return st, nil
	default:
		return nil, unknownOpError(op)
	}
}
