// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// fakeRedis emulates the handful of redis commands the backend issues, including the
// effect of incrScript, against an adjustable clock.
type fakeRedis struct {
	mu       sync.Mutex
	now      time.Time
	data     map[string]fakeEntry
	pingErr  error
	opErr    error
	closed   int
	commands []string
}

type fakeEntry struct {
	value      string
	expiration time.Time // zero means no expiry
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		now:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		data: make(map[string]fakeEntry),
	}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeRedis) setOpErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opErr = err
}

func (f *fakeRedis) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	return keys
}

// lookup must be called with f.mu held
func (f *fakeRedis) lookup(key string) (fakeEntry, bool) {
	e, ok := f.data[key]
	if !ok {
		return fakeEntry{}, false
	}
	if !e.expiration.IsZero() && !f.now.Before(e.expiration) {
		delete(f.data, key)
		return fakeEntry{}, false
	}
	return e, true
}

func (f *fakeRedis) record(cmd string) {
	f.commands = append(f.commands, cmd)
}

func (f *fakeRedis) Ping(_ context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PING")
	return redis.NewStatusResult("PONG", f.pingErr)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GET " + key)
	if f.opErr != nil {
		return redis.NewStringResult("", f.opErr)
	}
	e, ok := f.lookup(key)
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(e.value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("SET " + key)
	if f.opErr != nil {
		return redis.NewStatusResult("", f.opErr)
	}
	e := fakeEntry{value: value.(string)}
	if expiration > 0 {
		e.expiration = f.now.Add(expiration)
	}
	f.data[key] = e
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, key := range keys {
		f.record("DEL " + key)
		if _, ok := f.data[key]; ok {
			delete(f.data, key)
			n++
		}
	}
	if f.opErr != nil {
		return redis.NewIntResult(0, f.opErr)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.incr(keys[0], args[0])
}

func (f *fakeRedis) EvalSha(ctx context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	return f.incr(keys[0], args[0])
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func (f *fakeRedis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// incr mirrors incrScript
func (f *fakeRedis) incr(key string, windowArg interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("INCR " + key)
	if f.opErr != nil {
		return redis.NewCmdResult(nil, f.opErr)
	}

	windowMillis := windowArg.(int64)
	e, ok := f.lookup(key)
	count := int64(1)
	if ok {
		n, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return redis.NewCmdResult(nil, errors.New("ERR value is not an integer or out of range"))
		}
		count = n + 1
	}
	e.value = strconv.FormatInt(count, 10)
	if count == 1 || e.expiration.IsZero() {
		if windowMillis <= 0 {
			delete(f.data, key)
			return redis.NewCmdResult(count, nil)
		}
		e.expiration = f.now.Add(time.Duration(windowMillis) * time.Millisecond)
	}
	f.data[key] = e
	return redis.NewCmdResult(count, nil)
}

func newFakeConnection(f *fakeRedis) *Connection {
	conn := NewConnection(&redis.Options{Addr: "redis.test:6379"}, zerolog.Nop())
	conn.dial = func(*redis.Options) redisClient { return f }
	return conn
}
