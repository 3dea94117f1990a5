// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
)

const (
	// SystemTokenKey is the token store key for the system token, which is not
	// tied to any user.
	SystemTokenKey = "%ANONYMOUS%"

	// tokens are dropped from the store this long before HMPPS Auth expires them
	expiryMargin = 60 * time.Second
)

// TokenCache is the part of a token store the auth services need.
// *cache.TokenStore satisfies it.
type TokenCache interface {
	SetToken(ctx context.Context, key, token string, ttl time.Duration) error
	GetToken(ctx context.Context, key string) (string, bool, error)
}

// SystemTokenSource fetches client credentials tokens from HMPPS Auth and keeps
// them in the system token store until shortly before they expire.
type SystemTokenSource struct {
	credentials *clientcredentials.Config
	store       TokenCache
	httpClient  *http.Client
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSystemTokenSource creates a token source for the configured system client
func NewSystemTokenSource(cfg config.AuthAPIConfig, store TokenCache, logger zerolog.Logger) *SystemTokenSource {
	baseURL := strings.TrimRight(cfg.URL, "/")
	return &SystemTokenSource{
		credentials: &clientcredentials.Config{
			ClientID:     cfg.SystemClientID,
			ClientSecret: cfg.SystemClientSecret,
			TokenURL:     baseURL + "/oauth/token",
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		store:      store,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger.With().Str("module", "auth").Logger(),
		now:        time.Now,
	}
}

// Token returns a valid system access token
func (s *SystemTokenSource) Token(ctx context.Context) (string, error) {
	token, found, err := s.store.GetToken(ctx, SystemTokenKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read system token from store")
	} else if found {
		return token, nil
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	fresh, err := s.credentials.Token(ctx)
	if err != nil {
		return "", errors.Wrap(err, "auth: fetch system token")
	}

	ttl := fresh.Expiry.Sub(s.now()) - expiryMargin
	if fresh.Expiry.IsZero() {
		ttl = 0
	}
	if ttl > 0 {
		if err := s.store.SetToken(ctx, SystemTokenKey, fresh.AccessToken, ttl); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to store system token")
		}
	}

	s.logger.Debug().Dur("ttl", ttl).Msg("Fetched system token")
	return fresh.AccessToken, nil
}
