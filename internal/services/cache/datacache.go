// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/buildinfo"
)

const dataCachePrefix = "dataCache_"

// MemoizeFetchTimeout bounds a shared Memoize fetch
const MemoizeFetchTimeout = 30 * time.Second

// DataCache memoizes JSON encodable values. Keys are namespaced with the build ref so a
// new deployment never reads entries written by an older build.
type DataCache struct {
	backend Backend
	prefix  string
	logger  zerolog.Logger
	sf      singleflight.Group
}

// NewDataCache creates a cache whose keys look like dataCache_<ref7>:<key>
func NewDataCache(backend Backend, gitRef string, logger zerolog.Logger) *DataCache {
	return &DataCache{
		backend: backend,
		prefix:  DataCacheNamespace(gitRef) + ":",
		logger:  logger,
	}
}

// DataCacheNamespace returns the key namespace used for a given build ref
func DataCacheNamespace(gitRef string) string {
	return dataCachePrefix + buildinfo.ShortRef(gitRef)
}

func (c *DataCache) key(key string) string {
	return c.prefix + key
}

// Set stores value for ttl. A non-positive ttl leaves the key absent.
func (c *DataCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to marshal value for cache")
		return errors.Wrapf(err, "cache: marshal %s", key)
	}
	return c.backend.Write(ctx, c.key(key), string(data), ttl)
}

// Get decodes the cached value into dest. It reports false when nothing usable is
// cached, including when the stored payload no longer decodes into dest.
func (c *DataCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := c.backend.Read(ctx, c.key(key))
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Ignoring unreadable cached value")
		return false, nil
	}
	return true, nil
}

// Get is the typed form of DataCache.Get
func Get[T any](ctx context.Context, c *DataCache, key string) (T, bool, error) {
	var value T
	found, err := c.Get(ctx, key, &value)
	if err != nil || !found {
		var zero T
		return zero, false, err
	}
	return value, true, nil
}

// Memoize returns the cached value for key, or calls fetch and caches its result for
// ttl. Concurrent misses for the same key share one fetch, which runs detached from
// any single caller's cancellation; each caller still stops waiting when its own ctx
// is done. If the result cannot be written to the cache it is still returned.
func Memoize[T any](ctx context.Context, c *DataCache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if value, found, err := Get[T](ctx, c, key); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Data cache unavailable, fetching directly")
	} else if found {
		return value, nil
	}

	ch := c.sf.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), MemoizeFetchTimeout)
		defer cancel()

		value, err := fetch(fetchCtx)
		if err != nil {
			return value, err
		}
		if err := c.Set(fetchCtx, key, value, ttl); err != nil {
			c.logger.Error().Err(err).Str("key", key).Msg("Failed to cache value")
		}
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}
