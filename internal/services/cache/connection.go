// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
)

const (
	DefaultTimeout = 5 * time.Second
	RetryAttempts  = 2
	RetryDelay     = 50 * time.Millisecond
)

// redisClient is the subset of *redis.Client the shared backend needs.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd
	ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(ctx context.Context, script string) *redis.StringCmd
	Close() error
}

// Connection owns the single redis client of the process. Nothing is dialled until
// the first operation asks for the client; after that the same client is reused
// until it is closed or fails with a connection level error.
type Connection struct {
	opts   *redis.Options
	dial   func(*redis.Options) redisClient
	logger zerolog.Logger

	mu     sync.Mutex
	client redisClient
	dials  int
}

// NewConnection prepares a lazily opened connection. It does no I/O.
func NewConnection(opts *redis.Options, logger zerolog.Logger) *Connection {
	return &Connection{
		opts:   opts,
		dial:   func(o *redis.Options) redisClient { return redis.NewClient(o) },
		logger: logger,
	}
}

// RedisOptions maps the shared store settings onto go-redis options
func RedisOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:            cfg.Addr(),
		Password:        cfg.Password,
		MinIdleConns:    2,
		MaxRetries:      RetryAttempts,
		MinRetryBackoff: RetryDelay,
		MaxRetryBackoff: time.Second,
		DialTimeout:     DefaultTimeout,
		ReadTimeout:     DefaultTimeout,
		WriteTimeout:    DefaultTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// isOpen reports whether a usable client is held. Caller must hold c.mu.
func (c *Connection) isOpen() bool {
	return c.client != nil
}

// Client returns the shared client, connecting first if it is not open.
func (c *Connection) Client(ctx context.Context) (redisClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isOpen() {
		return c.client, nil
	}

	client := c.dial(c.opts)
	c.dials++
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		c.logger.Error().Err(err).Str("addr", c.opts.Addr).Msg("Redis connection failed")
		return nil, errors.Wrapf(err, "cache: connect to redis at %s", c.opts.Addr)
	}

	c.logger.Info().Str("addr", c.opts.Addr).Msg("Connected to redis")
	c.client = client
	return client, nil
}

// release drops client if err shows the connection itself is broken, so the next
// operation reconnects.
func (c *Connection) release(client redisClient, err error) {
	if err == nil || !isConnError(err) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != client {
		return
	}
	c.logger.Warn().Err(err).Msg("Redis connection lost, will reconnect on next use")
	_ = c.client.Close()
	c.client = nil
}

// Ping checks the shared store is reachable
func (c *Connection) Ping(ctx context.Context) error {
	client, err := c.Client(ctx)
	if err != nil {
		return err
	}
	err = client.Ping(ctx).Err()
	c.release(client, err)
	return errors.Wrap(err, "cache: redis ping")
}

// Close closes the client if one is open. A later operation opens a new one.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// isConnError reports whether err means the client itself is unusable. A caller's
// own deadline or cancellation leaves it usable.
func isConnError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
