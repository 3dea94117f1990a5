// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package prisonregister

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/cache"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/core"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/resilience"
)

const (
	PrisonNamesKey = "prisonNames"
	PrisonNamesTTL = 24 * time.Hour
)

// Prison is an entry from the prison register
type Prison struct {
	PrisonID   string `json:"prisonId"`
	PrisonName string `json:"prisonName"`
}

// Client reads reference data from the Prison Register API
type Client struct {
	api       *core.Client
	dataCache *cache.DataCache
	breaker   *resilience.CircuitBreaker
	backoff   resilience.Backoff
	logger    zerolog.Logger
}

// New creates a client whose lookups are memoized in dataCache
func New(cfg config.APIConfig, dataCache *cache.DataCache, tokens core.TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		api:       core.NewClient("prison-register", cfg, tokens, logger),
		dataCache: dataCache,
		breaker:   resilience.NewCircuitBreaker(5, 30*time.Second),
		backoff:   resilience.DefaultBackoff,
		logger:    logger.With().Str("module", "prisonregister").Logger(),
	}
}

// GetPrisonNames returns the id and name of every prison, served from the data
// cache for up to a day.
func (c *Client) GetPrisonNames(ctx context.Context) ([]Prison, error) {
	return cache.Memoize(ctx, c.dataCache, PrisonNamesKey, PrisonNamesTTL, c.fetchPrisonNames)
}

// GetPrisonName looks up a single prison by id
func (c *Client) GetPrisonName(ctx context.Context, prisonID string) (string, bool, error) {
	prisons, err := c.GetPrisonNames(ctx)
	if err != nil {
		return "", false, err
	}
	for _, p := range prisons {
		if p.PrisonID == prisonID {
			return p.PrisonName, true, nil
		}
	}
	return "", false, nil
}

func (c *Client) fetchPrisonNames(ctx context.Context) ([]Prison, error) {
	var prisons []Prison

	err := c.breaker.Do(func() error {
		return c.backoff.Retry(ctx, func() error {
			err := c.api.DoJSON(ctx, http.MethodGet, "/prisons/names", nil, &prisons)
			var apiErr *core.APIError
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to fetch prison names")
		return nil, errors.Wrap(err, "prisonregister: get prison names")
	}

	c.logger.Debug().Int("count", len(prisons)).Msg("Fetched prison names")
	return prisons, nil
}
