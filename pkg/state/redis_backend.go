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
	"errors"

	redis "github.com/redis/go-redis/v9"
)

// RedisBackend adapts a go-redis Cmdable (either *redis.Client or
// *redis.ClusterClient satisfy it) to Backend. go-redis manages its own
// connection pool internally, so there is nothing further for Client to
// pool itself.
type RedisBackend struct {
	cmd redis.Cmdable
}

// NewRedisBackend wraps an existing go-redis client or cluster client.
func NewRedisBackend(cmd redis.Cmdable) *RedisBackend {
	return &RedisBackend{cmd: cmd}
}

func (r *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.cmd.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	return r.cmd.Set(ctx, key, value, 0).Err()
}

func (r *RedisBackend) Del(ctx context.Context, keys ...string) (int64, error) {
	return r.cmd.Del(ctx, keys...).Result()
}

func (r *RedisBackend) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	return r.cmd.IncrBy(ctx, key, delta).Result()
}

func (r *RedisBackend) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.cmd.SAdd(ctx, key, args...).Result()
}

func (r *RedisBackend) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.cmd.SRem(ctx, key, args...).Result()
}

func (r *RedisBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	return r.cmd.SMembers(ctx, key).Result()
}

func (r *RedisBackend) Expire(ctx context.Context, key string, seconds int64) error {
	return r.cmd.Expire(ctx, key, secondsToDuration(seconds)).Err()
}

func (r *RedisBackend) ExpireAt(ctx context.Context, key string, unixSeconds int64) error {
	return r.cmd.ExpireAt(ctx, key, unixToTime(unixSeconds)).Err()
}

func (r *RedisBackend) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	res, err := r.cmd.Eval(ctx, script, keys, args...).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return res, err
}
