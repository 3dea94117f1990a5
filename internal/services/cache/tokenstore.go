// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"time"
)

// TokenPrefix namespaces one kind of token within the shared store
type TokenPrefix string

const (
	PrefixSystemToken TokenPrefix = "systemToken"
	PrefixIDToken     TokenPrefix = "idToken"
	PrefixRateLimit   TokenPrefix = "rateLimit"
)

// TokenStore holds raw string tokens and counters under <prefix>:<key>
type TokenStore struct {
	backend Backend
	prefix  string
}

// NewTokenStore creates a store for one token kind
func NewTokenStore(backend Backend, prefix TokenPrefix) *TokenStore {
	return &TokenStore{
		backend: backend,
		prefix:  string(prefix) + ":",
	}
}

func (s *TokenStore) key(key string) string {
	return s.prefix + key
}

// SetToken stores token for ttl, replacing any previous token for key
func (s *TokenStore) SetToken(ctx context.Context, key, token string, ttl time.Duration) error {
	return s.backend.Write(ctx, s.key(key), token, ttl)
}

// GetToken returns the token for key if it has not expired
func (s *TokenStore) GetToken(ctx context.Context, key string) (string, bool, error) {
	return s.backend.Read(ctx, s.key(key))
}

// IncrementCount bumps the fixed window counter for key and returns the new count
func (s *TokenStore) IncrementCount(ctx context.Context, key string, window time.Duration) (int64, error) {
	return s.backend.Increment(ctx, s.key(key), window)
}
