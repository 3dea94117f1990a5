// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package services

import (
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/auth"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/bookerregistry"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/cache"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/prisonregister"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/ratelimit"
)

// Services holds everything the HTTP layer depends on. All stores share the
// Provider, so at most one redis connection is opened.
type Services struct {
	Store          *cache.Provider
	SystemToken    *auth.SystemTokenSource
	IDTokens       *auth.IDTokenStore
	PrisonRegister *prisonregister.Client
	BookerRegistry *bookerregistry.Client
	RateLimits     *ratelimit.Services
}

// New wires the services from configuration. Nothing is dialled until first use.
func New(cfg *config.Config, logger zerolog.Logger) *Services {
	store := cache.NewProvider(cfg, logger)
	systemToken := auth.NewSystemTokenSource(cfg.APIs.HMPPSAuth, store.TokenStore(cache.PrefixSystemToken), logger)

	return &Services{
		Store:          store,
		SystemToken:    systemToken,
		IDTokens:       auth.NewIDTokenStore(store.TokenStore(cache.PrefixIDToken)),
		PrisonRegister: prisonregister.New(cfg.APIs.PrisonRegister, store.DataCache(), systemToken, logger),
		BookerRegistry: bookerregistry.New(cfg.APIs.BookerRegistry, systemToken, logger),
		RateLimits:     ratelimit.NewServices(store.TokenStore(cache.PrefixRateLimit), cfg.RateLimits, logger),
	}
}

// Close releases the shared store connection
func (s *Services) Close() error {
	return s.Store.Close()
}
