// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotInteger is returned by Increment when the key holds a value that is not a counter.
var ErrNotInteger = errors.New("cache: value is not an integer")

// Backend is the storage contract shared by the in-process and redis variants.
// Implementations must be safe for concurrent use.
//
// Entries are only ever removed by expiry; there is no delete. A Write with a
// non-positive ttl leaves the key absent.
type Backend interface {
	// Write stores value under key, replacing any previous value and expiry.
	Write(ctx context.Context, key, value string, ttl time.Duration) error

	// Read returns the value for key. found is false when the key was never
	// written or has expired. A non-nil error means the store could not be read.
	Read(ctx context.Context, key string) (value string, found bool, err error)

	// Increment adds one to the counter at key and returns the new count. An absent
	// or expired counter restarts at 1 and expires after window; later increments
	// leave the expiry untouched.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
)
