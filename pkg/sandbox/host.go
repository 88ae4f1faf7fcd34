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

package sandbox

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"sentryproc/pkg/decision"
	"sentryproc/pkg/permission"
	"sentryproc/pkg/state"
)

// Permissions is a plugin descriptor's declared capability grant.
type Permissions struct {
	HTTPDomains   permission.Set
	StatePrefixes permission.Set
	Env           permission.Set
}

// BodyChunk is one slice of a request body as the proxy streams it.
type BodyChunk struct {
	Start       int
	Size        int
	EndOfStream bool
	Bytes       []byte
}

// RequestInfo is the read-only view of the inbound request a plugin
// instance is frozen against for its whole lifetime.
type RequestInfo struct {
	Method      string
	URI         string
	HTTPVersion string
	Headers     map[string][]string
	Body        BodyChunk
}

// GuestConfig is the opaque key/value mapping baked into a plugin descriptor
// at load time.
type GuestConfig map[string]Value

// HTTPDoer performs a single outbound HTTP call on a plugin's behalf. The
// sandbox only gates the request's authority; the transport itself is an
// external collaborator.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Host is the full capability surface in 4.D, bound to one plugin instance
// for the duration of one request. Every call here is what a guest module
// invokes across the sandbox boundary.
type Host struct {
	config      GuestConfig
	proxyHops   uint8
	request     *RequestInfo
	permissions Permissions
	bag         *ContextBag
	state       *state.Client
	httpDoer    HTTPDoer

	mu       sync.Mutex
	decision decision.Decision
	tags     []string
}

// NewHost builds the per-instance capability surface. bag, stateClient and
// httpDoer are shared references; config, permissions and request are
// shared, read-only references to the owning descriptor/request.
func NewHost(config GuestConfig, proxyHops uint8, request *RequestInfo, permissions Permissions, bag *ContextBag, stateClient *state.Client, httpDoer HTTPDoer) *Host {
	return &Host{
		config:      config,
		proxyHops:   proxyHops,
		request:     request,
		permissions: permissions,
		bag:         bag,
		state:       stateClient,
		httpDoer:    httpDoer,
		decision:    decision.Ignorance,
	}
}

// --- Config ---

func (h *Host) ConfigKeys() []string {
	keys := make([]string, 0, len(h.config))
	for k := range h.config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *Host) ConfigVar(key string) (Value, bool) {
	v, ok := h.config[key]
	return v, ok
}

func (h *Host) ProxyHops() uint8 { return h.proxyHops }

// --- Request introspection ---

func (h *Host) Request() *RequestInfo { return h.request }

// --- Decision writing ---

// SetDecision validates (a,r,u) per the decision algebra before committing
// it to this instance's accumulator. A malformed write is rejected and the
// accumulator is left unchanged, per spec.
func (h *Host) SetDecision(accept, restrict, unknown float64) error {
	d, err := decision.New(accept, restrict, unknown)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.decision = d
	h.mu.Unlock()
	return nil
}

// SetTags validates each tag and replaces this instance's tag set.
func (h *Host) SetTags(tags []string) error {
	for _, tag := range tags {
		if err := validateTag(tag); err != nil {
			return err
		}
	}
	h.mu.Lock()
	h.tags = append([]string(nil), tags...)
	h.mu.Unlock()
	return nil
}

// Decision and Tags are read by the owning Instance once the guest module
// returns; they are never read by another plugin instance.
func (h *Host) Decision() decision.Decision {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.decision
}

func (h *Host) Tags() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.tags...)
}

// --- Context bag ---

func (h *Host) GetContextValue(key string) (Value, bool) { return h.bag.Get(key) }
func (h *Host) SetContextValue(key string, value Value)  { h.bag.Set(key, value) }

// --- Remote state, each call gated by the state-prefix permission ---

func (h *Host) verifyStateKey(key string) error {
	if err := permission.VerifyStatePrefix(h.permissions.StatePrefixes, key); err != nil {
		return &state.PermissionError{Key: key}
	}
	return nil
}

func (h *Host) Get(ctx context.Context, key string) (string, bool, error) {
	if err := h.verifyStateKey(key); err != nil {
		return "", false, err
	}
	return h.state.Get(ctx, key)
}

func (h *Host) Set(ctx context.Context, key, value string) error {
	if err := h.verifyStateKey(key); err != nil {
		return err
	}
	return h.state.Set(ctx, key, value)
}

func (h *Host) Del(ctx context.Context, keys ...string) (int64, error) {
	for _, k := range keys {
		if err := h.verifyStateKey(k); err != nil {
			return 0, err
		}
	}
	return h.state.Del(ctx, keys...)
}

func (h *Host) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if err := h.verifyStateKey(key); err != nil {
		return 0, err
	}
	return h.state.IncrBy(ctx, key, delta)
}

func (h *Host) Incr(ctx context.Context, key string) (int64, error) {
	return h.IncrBy(ctx, key, 1)
}

func (h *Host) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if err := h.verifyStateKey(key); err != nil {
		return 0, err
	}
	return h.state.SAdd(ctx, key, members...)
}

func (h *Host) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if err := h.verifyStateKey(key); err != nil {
		return 0, err
	}
	return h.state.SRem(ctx, key, members...)
}

func (h *Host) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := h.verifyStateKey(key); err != nil {
		return nil, err
	}
	return h.state.SMembers(ctx, key)
}

func (h *Host) Expire(ctx context.Context, key string, ttlSeconds uint64) error {
	if err := h.verifyStateKey(key); err != nil {
		return err
	}
	return h.state.Expire(ctx, key, ttlSeconds)
}

func (h *Host) ExpireAt(ctx context.Context, key string, unixSeconds uint64) error {
	if err := h.verifyStateKey(key); err != nil {
		return err
	}
	return h.state.ExpireAt(ctx, key, unixSeconds)
}

func (h *Host) IncrRateLimit(ctx context.Context, key string, delta int64, window uint64) (state.RateLimitState, error) {
	if err := h.verifyStateKey(key); err != nil {
		return state.RateLimitState{}, err
	}
	return h.state.IncrRateLimit(ctx, key, delta, window)
}

func (h *Host) CheckRateLimit(ctx context.Context, key string) (state.RateLimitState, bool, error) {
	if err := h.verifyStateKey(key); err != nil {
		return state.RateLimitState{}, false, err
	}
	return h.state.CheckRateLimit(ctx, key)
}

func (h *Host) IncrBreaker(ctx context.Context, key string, successDelta, failureDelta int64, window uint64) (state.BreakerState, error) {
	if err := h.verifyStateKey(key); err != nil {
		return state.BreakerState{}, err
	}
	return h.state.IncrBreaker(ctx, key, successDelta, failureDelta, window)
}

func (h *Host) CheckBreaker(ctx context.Context, key string) (state.BreakerState, bool, error) {
	if err := h.verifyStateKey(key); err != nil {
		return state.BreakerState{}, false, err
	}
	return h.state.CheckBreaker(ctx, key)
}

// --- Outbound HTTP, gated by the http-domain permission ---

func (h *Host) DoHTTP(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := permission.VerifyHTTPDomain(h.permissions.HTTPDomains, req.Host); err != nil {
		return nil, err
	}
	return h.httpDoer.Do(ctx, req)
}
