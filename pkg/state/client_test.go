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

package state

import (
	"context"
	"testing"
	"time"
)

// fakeBackend is an in-memory stand-in for Backend, modelling just enough
// Redis/Lua semantics to exercise Client's scripted operations.
type fakeBackend struct {
	strings map[string]string
	evals   int
}

func newFakeBackend() *fakeBackend { return &fakeBackend{strings: map[string]string{}} }

func (f *fakeBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok := f.strings[key]
	return v, ok, nil
}
func (f *fakeBackend) Set(ctx context.Context, key, value string) error {
	f.strings[key] = value
	return nil
}
func (f *fakeBackend) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			delete(f.strings, k)
			n++
		}
	}
	return n, nil
}
func (f *fakeBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return 0, nil
}
func (f *fakeBackend) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	return 0, nil
}
func (f *fakeBackend) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	return 0, nil
}
func (f *fakeBackend) SMembers(ctx context.Context, key string) ([]string, error) { return nil, nil }
func (f *fakeBackend) Expire(ctx context.Context, key string, seconds int64) error { return nil }
func (f *fakeBackend) ExpireAt(ctx context.Context, key string, unixSeconds int64) error {
	return nil
}

// Eval interprets just the four scripts this package defines, against the
// same string map Get/Set use, so the test can assert on end-to-end
// semantics without a real Lua interpreter.
func (f *fakeBackend) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.evals++
	switch script {
	case incrRateLimitScript:
		counter, expKey := keys[0], keys[1]
		delta := args[0].(int64)
		window := toI64(args[1])
		now := args[2].(int64)
		exp, hasExp := f.getInt(expKey)
		if !hasExp || now > exp {
			f.strings[counter] = "0"
			exp = now + window
			f.setInt(expKey, exp)
		}
		cur, _ := f.getInt(counter)
		cur += delta
		f.setInt(counter, cur)
		return []interface{}{cur, exp}, nil
	case checkRateLimitScript:
		counter, expKey := keys[0], keys[1]
		now := args[0].(int64)
		exp, hasExp := f.getInt(expKey)
		if !hasExp || now > exp {
			delete(f.strings, counter)
			delete(f.strings, expKey)
			return false, nil
		}
		cur, _ := f.getInt(counter)
		return []interface{}{cur, exp}, nil
	case incrBreakerScript:
		genKey, sKey, fKey, csKey, cfKey, expKey := keys[0], keys[1], keys[2], keys[3], keys[4], keys[5]
		sDelta := toI64(args[0])
		fDelta := toI64(args[1])
		window := toI64(args[2])
		now := args[3].(int64)
		gen, _ := f.getInt(genKey)
		gen++
		f.setInt(genKey, gen)
		if sDelta > 0 {
			s, _ := f.getInt(sKey)
			f.setInt(sKey, s+sDelta)
			cs, _ := f.getInt(csKey)
			f.setInt(csKey, cs+sDelta)
			f.setInt(cfKey, 0)
		} else if fDelta > 0 {
			fl, _ := f.getInt(fKey)
			f.setInt(fKey, fl+fDelta)
			cf, _ := f.getInt(cfKey)
			f.setInt(cfKey, cf+fDelta)
			f.setInt(csKey, 0)
		}
		exp := now + window
		f.setInt(expKey, exp)
		s, _ := f.getInt(sKey)
		fl, _ := f.getInt(fKey)
		cs, _ := f.getInt(csKey)
		cf, _ := f.getInt(cfKey)
		return []interface{}{gen, s, fl, cs, cf, exp}, nil
	case checkBreakerScript:
		genKey, sKey, fKey, csKey, cfKey, expKey := keys[0], keys[1], keys[2], keys[3], keys[4], keys[5]
		gen, ok := f.getInt(genKey)
		if !ok {
			return false, nil
		}
		s, _ := f.getInt(sKey)
		fl, _ := f.getInt(fKey)
		cs, _ := f.getInt(csKey)
		cf, _ := f.getInt(cfKey)
		exp, _ := f.getInt(expKey)
		return []interface{}{gen, s, fl, cs, cf, exp}, nil
	default:
		return nil, nil
	}
}

func toI64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

func (f *fakeBackend) getInt(key string) (int64, bool) {
	v, ok := f.strings[key]
	if !ok {
		return 0, false
	}
	var n int64
	for _, c := range v {
		if c == '-' {
			continue
		}
		n = n*10 + int64(c-'0')
	}
	if len(v) > 0 && v[0] == '-' {
		n = -n
	}
	return n, true
}

func (f *fakeBackend) setInt(key string, v int64) {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		f.strings[key] = "0"
		return
	}
	var buf []byte
	for v > 0 {
		buf = append([]byte{byte('0' + v%10)}, buf...)
		v /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	f.strings[key] = string(buf)
}

func fixedClock(t time.Time) Clock { return func() time.Time { return t } }

// TestRateLimit_Scenario6 reproduces spec scenario 6 end to end.
func TestRateLimit_Scenario6(t *testing.T) {
	fb := newFakeBackend()
	c := New(fb, fixedClock(time.Unix(1000, 0)))

	got, err := c.IncrRateLimit(context.Background(), "k", 1, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (RateLimitState{Attempts: 1, Expiration: 1060}) {
		t.Fatalf("unexpected state: %+v", got)
	}

	c.now = fixedClock(time.Unix(1030, 0))
	got, err = c.IncrRateLimit(context.Background(), "k", 2, 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != (RateLimitState{Attempts: 3, Expiration: 1060}) {
		t.Fatalf("unexpected state: %+v", got)
	}

	c.now = fixedClock(time.Unix(1050, 0))
	checked, ok, err := c.CheckRateLimit(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("unexpected: checked=%+v ok=%v err=%v", checked, ok, err)
	}
	if checked != (RateLimitState{Attempts: 3, Expiration: 1060}) {
		t.Fatalf("unexpected state: %+v", checked)
	}

	c.now = fixedClock(time.Unix(1061, 0))
	_, ok, err = c.CheckRateLimit(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected the lapsed window to report not-found")
	}
	if _, stillThere := fb.strings[rateLimitCounterKey("k")]; stillThere {
		t.Fatal("expected stale counter key to be cleared")
	}
}

func TestIncrRateLimit_RejectsNegativeDelta(t *testing.T) {
	c := New(newFakeBackend(), fixedClock(time.Unix(0, 0)))
	if _, err := c.IncrRateLimit(context.Background(), "k", -1, 60); err == nil {
		t.Fatal("expected InvalidArgumentError")
	} else if _, ok := err.(*InvalidArgumentError); !ok {
		t.Fatalf("expected InvalidArgumentError, got %T", err)
	}
}

func TestBreaker_GenerationStrictlyMonotonic(t *testing.T) {
	c := New(newFakeBackend(), fixedClock(time.Unix(100, 0)))
	var last int64
	for i := 0; i < 5; i++ {
		st, err := c.IncrBreaker(context.Background(), "svc", 1, 0, 30)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st.Generation <= last {
			t.Fatalf("generation did not strictly increase: last=%d got=%d", last, st.Generation)
		}
		last = st.Generation
	}
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	c := New(newFakeBackend(), fixedClock(time.Unix(100, 0)))
	ctx := context.Background()
	if _, err := c.IncrBreaker(ctx, "svc", 0, 1, 30); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := c.IncrBreaker(ctx, "svc", 1, 0, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.ConsecutiveFailures != 0 {
		t.Fatalf("expected consecutive failures reset to 0, got %d", st.ConsecutiveFailures)
	}
	if st.ConsecutiveSuccesses != 1 {
		t.Fatalf("expected consecutive successes = 1, got %d", st.ConsecutiveSuccesses)
	}
}

func TestCheckBreaker_NoGeneration(t *testing.T) {
	c := New(newFakeBackend(), fixedClock(time.Unix(100, 0)))
	_, ok, err := c.CheckBreaker(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for a key with no generation")
	}
}

func TestGetSetDel(t *testing.T) {
	c := New(newFakeBackend(), fixedClock(time.Unix(0, 0)))
	ctx := context.Background()
	if err := c.Set(ctx, "a", "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok, err := c.Get(ctx, "a")
	if err != nil || !ok || v != "1" {
		t.Fatalf("unexpected get result: v=%q ok=%v err=%v", v, ok, err)
	}
	n, err := c.Del(ctx, "a", "missing")
	if err != nil || n != 1 {
		t.Fatalf("unexpected del result: n=%d err=%v", n, err)
	}
}
