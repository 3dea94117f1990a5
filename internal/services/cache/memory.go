// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryBackend keeps entries in a map owned by this instance.
// Expired entries are dropped when they are next read or overwritten; there is no
// background sweep.
type MemoryBackend struct {
	mu    sync.Mutex
	items map[string]*memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value      string
	expiration time.Time
}

func (i *memoryItem) expired(now time.Time) bool {
	return !now.Before(i.expiration)
}

// NewMemoryBackend creates an empty in-process backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items: make(map[string]*memoryItem),
		now:   time.Now,
	}
}

// Write stores a value with an absolute expiry of now+ttl
func (m *MemoryBackend) Write(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = &memoryItem{
		value:      value,
		expiration: m.now().Add(ttl),
	}
	return nil
}

// Read returns the value if it has not expired
func (m *MemoryBackend) Read(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.live(key)
	if !ok {
		return "", false, nil
	}
	return item.value, true, nil
}

// Increment bumps a fixed window counter
func (m *MemoryBackend) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.live(key)
	if !ok {
		m.items[key] = &memoryItem{
			value:      "1",
			expiration: m.now().Add(window),
		}
		return 1, nil
	}

	count, err := strconv.ParseInt(item.value, 10, 64)
	if err != nil {
		return 0, ErrNotInteger
	}
	count++
	item.value = strconv.FormatInt(count, 10)
	return count, nil
}

// live returns the unexpired item for key, purging it if it has expired.
// Caller must hold m.mu.
func (m *MemoryBackend) live(key string) (*memoryItem, bool) {
	item, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if item.expired(m.now()) {
		delete(m.items, key)
		return nil, false
	}
	return item, true
}
