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

// Package state is a thin, atomic abstraction over the remote key-value
// store plugins use for stateful detections: plain reads/writes plus the
// two scripted counters (rate limiter, circuit breaker).
package state

import (
	"context"
	"fmt"
	"time"
)

// Backend is the minimal surface Client needs from a remote store.
// *RedisBackend satisfies it by wrapping github.com/redis/go-redis/v9;
// tests satisfy it with a hand-rolled fake, following the narrow-interface
// convention the persistence layer this package replaced already used.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) (int64, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SRem(ctx context.Context, key string, members ...string) (int64, error)
	SMembers(ctx context.Context, key string) ([]string, error)
	Expire(ctx context.Context, key string, seconds int64) error
	ExpireAt(ctx context.Context, key string, unixSeconds int64) error
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// Clock returns the gateway's own wall-clock time, in preference to the
// backing store's, so the scripted operations see a time base that is
// internally consistent for a single gateway process.
type Clock func() time.Time

// Client implements the full remote-state surface in 4.B against Backend.
type Client struct {
	backend Backend
	now     Clock
}

// New returns a Client. A nil clock defaults to time.Now.
func New(backend Backend, clock Clock) *Client {
	if clock == nil {
		clock = time.Now
	}
	return &Client{backend: backend, now: clock}
}

// Get returns the value stored at key, or ok=false if it is absent.
func (c *Client) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	v, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		return "", false, &RemoteError{Msg: err.Error()}
	}
	return v, ok, nil
}

// Set stores value at key.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if err := c.backend.Set(ctx, key, value); err != nil {
		return &RemoteError{Msg: err.Error()}
	}
	return nil
}

// Del removes keys, returning the number actually removed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	n, err := c.backend.Del(ctx, keys...)
	if err != nil {
		return 0, &RemoteError{Msg: err.Error()}
	}
	return n, nil
}

// IncrBy adds delta to the counter at key, returning the new value.
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := c.backend.IncrBy(ctx, key, delta)
	if err != nil {
		return 0, &RemoteError{Msg: err.Error()}
	}
	return n, nil
}

// Incr is IncrBy(key, 1).
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.IncrBy(ctx, key, 1)
}

// SAdd, SRem and SMembers operate on string sets.
func (c *Client) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := c.backend.SAdd(ctx, key, members...)
	if err != nil {
		return 0, &RemoteError{Msg: err.Error()}
	}
	return n, nil
}

func (c *Client) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	n, err := c.backend.SRem(ctx, key, members...)
	if err != nil {
		return 0, &RemoteError{Msg: err.Error()}
	}
	return n, nil
}

func (c *Client) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := c.backend.SMembers(ctx, key)
	if err != nil {
		return nil, &RemoteError{Msg: err.Error()}
	}
	return members, nil
}

// Expire sets a relative TTL in seconds; ExpireAt sets an absolute one.
func (c *Client) Expire(ctx context.Context, key string, ttlSeconds uint64) error {
	if err := c.backend.Expire(ctx, key, int64(ttlSeconds)); err != nil {
		return &RemoteError{Msg: err.Error()}
	}
	return nil
}

func (c *Client) ExpireAt(ctx context.Context, key string, unixSeconds uint64) error {
	if err := c.backend.ExpireAt(ctx, key, int64(unixSeconds)); err != nil {
		return &RemoteError{Msg: err.Error()}
	}
	return nil
}

// RateLimitState is the pair a rate-limit operation reports.
type RateLimitState struct {
	Attempts   int64
	Expiration int64
}

// IncrRateLimit applies delta to the counter at key, resetting the window if
// it has lapsed, and returns the post-increment state. delta and window must
// be non-negative.
func (c *Client) IncrRateLimit(ctx context.Context, key string, delta int64, window uint64) (RateLimitState, error) {
	if delta < 0 {
		return RateLimitState{}, &InvalidArgumentError{Msg: "delta must be >= 0"}
	}
	keys := []string{rateLimitCounterKey(key), rateLimitExpKey(key)}
	res, err := c.backend.Eval(ctx, incrRateLimitScript, keys, delta, window, c.now().Unix())
	if err != nil {
		return RateLimitState{}, &RemoteError{Msg: err.Error()}
	}
	pair, err := asInt64Pair(res)
	if err != nil {
		return RateLimitState{}, err
	}
	return RateLimitState{Attempts: pair[0], Expiration: pair[1]}, nil
}

// CheckRateLimit returns the current state for key, or ok=false if the
// window has lapsed (the stale keys are cleared as a side effect).
func (c *Client) CheckRateLimit(ctx context.Context, key string) (state RateLimitState, ok bool, err error) {
	keys := []string{rateLimitCounterKey(key), rateLimitExpKey(key)}
	res, err := c.backend.Eval(ctx, checkRateLimitScript, keys, c.now().Unix())
	if err != nil {
		return RateLimitState{}, false, &RemoteError{Msg: err.Error()}
	}
	if isFalse(res) {
		return RateLimitState{}, false, nil
	}
	pair, err := asInt64Pair(res)
	if err != nil {
		return RateLimitState{}, false, err
	}
	return RateLimitState{Attempts: pair[0], Expiration: pair[1]}, true, nil
}

// BreakerState is the full counter set a breaker operation reports.
type BreakerState struct {
	Generation           int64
	Successes            int64
	Failures             int64
	ConsecutiveSuccesses int64
	ConsecutiveFailures  int64
	Expiration           int64
}

func breakerKeys(key string) []string {
	return []string{
		breakerGenerationKey(key),
		breakerSuccessKey(key),
		breakerFailureKey(key),
		breakerConsecSuccessKey(key),
		breakerConsecFailureKey(key),
		breakerExpKey(key),
	}
}

// IncrBreaker advances key's generation and folds in successDelta/failureDelta
// (at most one is expected to be positive per call; both may be zero to bump
// the generation and refresh the expiration only).
func (c *Client) IncrBreaker(ctx context.Context, key string, successDelta, failureDelta int64, window uint64) (BreakerState, error) {
	if successDelta < 0 || failureDelta < 0 {
		return BreakerState{}, &InvalidArgumentError{Msg: "deltas must be >= 0"}
	}
	res, err := c.backend.Eval(ctx, incrBreakerScript, breakerKeys(key), successDelta, failureDelta, window, c.now().Unix())
	if err != nil {
		return BreakerState{}, &RemoteError{Msg: err.Error()}
	}
	return asBreakerState(res)
}

// CheckBreaker returns key's current counters, or ok=false if no generation
// has ever been recorded.
func (c *Client) CheckBreaker(ctx context.Context, key string) (st BreakerState, ok bool, err error) {
	res, err := c.backend.Eval(ctx, checkBreakerScript, breakerKeys(key), c.now().Unix())
	if err != nil {
		return BreakerState{}, false, &RemoteError{Msg: err.Error()}
	}
	if isFalse(res) {
		return BreakerState{}, false, nil
	}
	st, err = asBreakerState(res)
	return st, err == nil, err
}

func isFalse(v interface{}) bool {
	b, ok := v.(bool)
	return ok && !b
}

func asInt64Pair(v interface{}) ([2]int64, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 2 {
		return [2]int64{}, &TypeError{Msg: fmt.Sprintf("expected 2-element array, got %T", v)}
	}
	a, err := toInt64(arr[0])
	if err != nil {
		return [2]int64{}, err
	}
	b, err := toInt64(arr[1])
	if err != nil {
		return [2]int64{}, err
	}
	return [2]int64{a, b}, nil
}

func asBreakerState(v interface{}) (BreakerState, error) {
	arr, ok := v.([]interface{})
	if !ok || len(arr) != 6 {
		return BreakerState{}, &TypeError{Msg: fmt.Sprintf("expected 6-element array, got %T", v)}
	}
	vals := make([]int64, 6)
	for i, e := range arr {
		n, err := toInt64(e)
		if err != nil {
			return BreakerState{}, err
		}
		vals[i] = n
	}
	return BreakerState{
		Generation:           vals[0],
		Successes:            vals[1],
		Failures:             vals[2],
		ConsecutiveSuccesses: vals[3],
		ConsecutiveFailures:  vals[4],
		Expiration:           vals[5],
	}, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, &TypeError{Msg: fmt.Sprintf("expected integer, got %T", v)}
	}
}
