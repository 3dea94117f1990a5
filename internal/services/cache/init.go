// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
)

// CacheType represents the type of backend in use
type CacheType string

const (
	CacheTypeRedis  CacheType = "redis"
	CacheTypeMemory CacheType = "memory"
)

// Provider hands out data caches and token stores bound to the backend chosen by
// configuration. With redis enabled every store shares one lazily opened Connection;
// otherwise each namespace gets its own in-process map.
//
// Creating a Provider and asking it for stores does no I/O.
type Provider struct {
	cacheType CacheType
	gitRef    string
	conn      *Connection
	logger    zerolog.Logger

	mu     sync.Mutex
	memory map[string]*MemoryBackend
}

// NewProvider selects the backend from cfg
func NewProvider(cfg *config.Config, logger zerolog.Logger) *Provider {
	p := &Provider{
		cacheType: CacheTypeMemory,
		gitRef:    cfg.Build.GitRef,
		logger:    logger.With().Str("module", "cache").Logger(),
		memory:    make(map[string]*MemoryBackend),
	}

	if cfg.Redis.Enabled {
		p.cacheType = CacheTypeRedis
		p.conn = NewConnection(RedisOptions(cfg.Redis), p.logger)
	}

	p.logger.Debug().Str("type", string(p.cacheType)).Msg("Initializing cache")
	return p
}

// Type reports which backend is selected
func (p *Provider) Type() CacheType {
	return p.cacheType
}

// backend returns the backend for a namespace
func (p *Provider) backend(namespace string) Backend {
	if p.conn != nil {
		return NewRedisBackend(p.conn)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.memory[namespace]
	if !ok {
		b = NewMemoryBackend()
		p.memory[namespace] = b
	}
	return b
}

// DataCache returns the data cache for the running build
func (p *Provider) DataCache() *DataCache {
	return NewDataCache(p.backend(DataCacheNamespace(p.gitRef)), p.gitRef, p.logger)
}

// TokenStore returns the token store for one token kind
func (p *Provider) TokenStore(prefix TokenPrefix) *TokenStore {
	return NewTokenStore(p.backend(string(prefix)), prefix)
}

// Ping checks the selected backend is reachable. The in-process backend always is.
func (p *Provider) Ping(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Ping(ctx)
}

// Close releases the shared connection at shutdown
func (p *Provider) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
