// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// incrScript increments a counter and starts its window on the first increment.
// A counter that has somehow lost its expiry gets one too, so it cannot live forever.
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) == -1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisBackend stores entries in the shared redis instance. All RedisBackends built
// from one Connection share its client.
type RedisBackend struct {
	conn *Connection
}

// NewRedisBackend creates a backend over conn
func NewRedisBackend(conn *Connection) *RedisBackend {
	return &RedisBackend{conn: conn}
}

// Write sets the value with a millisecond expiry. A non-positive ttl deletes the key.
func (r *RedisBackend) Write(ctx context.Context, key, value string, ttl time.Duration) error {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		err = client.Del(ctx, key).Err()
	} else {
		err = client.Set(ctx, key, value, ttl).Err()
	}
	r.conn.release(client, err)
	return errors.Wrap(err, "cache: redis write failed")
}

// Read gets the value; redis drops expired keys itself
func (r *RedisBackend) Read(ctx context.Context, key string) (string, bool, error) {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return "", false, err
	}

	val, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		r.conn.release(client, err)
		return "", false, errors.Wrap(err, "cache: redis read failed")
	}
	return val, true, nil
}

// Increment runs incrScript so INCR and PEXPIRE apply atomically
func (r *RedisBackend) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	client, err := r.conn.Client(ctx)
	if err != nil {
		return 0, err
	}

	count, err := incrScript.Run(ctx, client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, errors.Wrapf(ErrNotInteger, "cache: redis increment %s", key)
		}
		r.conn.release(client, err)
		return 0, errors.Wrap(err, "cache: redis increment failed")
	}
	return count, nil
}
