// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package ratelimit

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
)

// Policy prefixes for the limits the service enforces
const (
	KeyPrefixBooker   = "booker"
	KeyPrefixPrisoner = "prisoner"
	KeyPrefixVisitor  = "visitor"
)

// Counter is a fixed-window counter. *cache.TokenStore satisfies it.
type Counter interface {
	IncrementCount(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Policy describes one limit: at most MaxRequests per Window for each key
type Policy struct {
	KeyPrefix   string
	MaxRequests int
	Window      time.Duration
}

// Service checks requests against a single Policy
type Service struct {
	counter Counter
	policy  Policy
	logger  zerolog.Logger
}

// New creates a rate limit service over counter
func New(counter Counter, policy Policy, logger zerolog.Logger) *Service {
	return &Service{
		counter: counter,
		policy:  policy,
		logger:  logger.With().Str("module", "ratelimit").Str("policy", policy.KeyPrefix).Logger(),
	}
}

// Policy returns the policy the service enforces
func (s *Service) Policy() Policy {
	return s.policy
}

// IncrementAndCheckLimit counts one request for key and reports whether it is
// within the limit. Reaching MaxRequests is allowed; the request after it is not.
func (s *Service) IncrementAndCheckLimit(ctx context.Context, key string) (bool, error) {
	compositeKey := s.policy.KeyPrefix + ":" + key

	count, err := s.counter.IncrementCount(ctx, compositeKey, s.policy.Window)
	if err != nil {
		return false, errors.Wrapf(err, "ratelimit: increment %s", compositeKey)
	}

	s.logger.Debug().
		Str("key", compositeKey).
		Int64("count", count).
		Int("max", s.policy.MaxRequests).
		Msg("Rate limit count")

	return count <= int64(s.policy.MaxRequests), nil
}

// Services groups the configured limits
type Services struct {
	Booker   *Service
	Prisoner *Service
	Visitor  *Service
}

// Policies builds the booker, prisoner and visitor policies from configuration
func Policies(cfg config.RateLimitsConfig) (booker, prisoner, visitor Policy) {
	booker = Policy{KeyPrefix: KeyPrefixBooker, MaxRequests: cfg.Booker.MaxRequests, Window: cfg.Booker.Window()}
	prisoner = Policy{KeyPrefix: KeyPrefixPrisoner, MaxRequests: cfg.Prisoner.MaxRequests, Window: cfg.Prisoner.Window()}
	visitor = Policy{KeyPrefix: KeyPrefixVisitor, MaxRequests: cfg.Visitor.MaxRequests, Window: cfg.Visitor.Window()}
	return booker, prisoner, visitor
}

// NewServices creates one service per configured policy, all sharing counter
func NewServices(counter Counter, cfg config.RateLimitsConfig, logger zerolog.Logger) *Services {
	booker, prisoner, visitor := Policies(cfg)
	return &Services{
		Booker:   New(counter, booker, logger),
		Prisoner: New(counter, prisoner, logger),
		Visitor:  New(counter, visitor, logger),
	}
}
