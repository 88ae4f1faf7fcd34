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

// The four scripted operations run server-side as a single Lua transaction
// so concurrent callers observe monotonic counters. The gateway always
// supplies "now" as an argument rather than trusting the store's clock, so a
// single gateway's view of windowing stays internally consistent even if the
// store's clock drifts.
//
// incrRateLimitScript: KEYS = {counter, expiration}; ARGV = {delta, window, now}.
// Resets the counter when the window has lapsed (or never existed), then
// applies delta and returns {attempts, expiration}.
const incrRateLimitScript = `
local counter = KEYS[1]
local expKey = KEYS[2]
local delta = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local exp = tonumber(redis.call('GET', expKey))
if exp == nil or now > exp then
  redis.call('SET', counter, 0)
  exp = now + window
  redis.call('SET', expKey, exp)
end
local attempts = redis.call('INCRBY', counter, delta)
return {attempts, exp}
`

// checkRateLimitScript: KEYS = {counter, expiration}; ARGV = {now}. Returns
// {attempts, expiration} while the window holds, false once it has lapsed,
// clearing the stale keys on the way out.
const checkRateLimitScript = `
local counter = KEYS[1]
local expKey = KEYS[2]
local now = tonumber(ARGV[1])

local exp = tonumber(redis.call('GET', expKey))
if exp == nil or now > exp then
  redis.call('DEL', counter, expKey)
  return false
end
local attempts = tonumber(redis.call('GET', counter)) or 0
return {attempts, exp}
`

// incrBreakerScript: KEYS = {generation, successes, failures, consecSuccesses,
// consecFailures, expiration}; ARGV = {successDelta, failureDelta, window, now}.
// Generation always advances. A positive successDelta resets consecutive
// failures to zero without capturing SET's own return value into a counter;
// the symmetric case holds for a positive failureDelta. Both deltas may be
// zero, which only bumps the generation and refreshes the expiration.
const incrBreakerScript = `
local genKey, sKey, fKey, csKey, cfKey, expKey = KEYS[1], KEYS[2], KEYS[3], KEYS[4], KEYS[5], KEYS[6]
local sDelta = tonumber(ARGV[1])
local fDelta = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local now = tonumber(ARGV[4])

local generation = redis.call('INCR', genKey)
if sDelta > 0 then
  redis.call('INCRBY', sKey, sDelta)
  redis.call('INCRBY', csKey, sDelta)
  redis.call('SET', cfKey, 0)
elseif fDelta > 0 then
  redis.call('INCRBY', fKey, fDelta)
  redis.call('INCRBY', cfKey, fDelta)
  redis.call('SET', csKey, 0)
end
redis.call('SET', expKey, now + window)

local successes = tonumber(redis.call('GET', sKey)) or 0
local failures = tonumber(redis.call('GET', fKey)) or 0
local cs = tonumber(redis.call('GET', csKey)) or 0
local cf = tonumber(redis.call('GET', cfKey)) or 0
return {generation, successes, failures, cs, cf, now + window}
`

// checkBreakerScript: same KEYS as incrBreakerScript; ARGV = {now}. Returns
// false when no generation has ever been recorded for key.
const checkBreakerScript = `
local genKey, sKey, fKey, csKey, cfKey, expKey = KEYS[1], KEYS[2], KEYS[3], KEYS[4], KEYS[5], KEYS[6]

if redis.call('EXISTS', genKey) == 0 then
  return false
end
local generation = tonumber(redis.call('GET', genKey))
local successes = tonumber(redis.call('GET', sKey)) or 0
local failures = tonumber(redis.call('GET', fKey)) or 0
local cs = tonumber(redis.call('GET', csKey)) or 0
local cf = tonumber(redis.call('GET', cfKey)) or 0
local exp = tonumber(redis.call('GET', expKey)) or 0
return {generation, successes, failures, cs, cf, exp}
`
