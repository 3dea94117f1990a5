// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/ratelimit"
)

// KeyFunc picks the rate limit key for a request. An empty key rejects the request.
type KeyFunc func(c *gin.Context) string

// ParamKey keys requests by a path parameter
func ParamKey(name string) KeyFunc {
	return func(c *gin.Context) string {
		return c.Param(name)
	}
}

type RateLimiter struct {
	service *ratelimit.Service
	keyFunc KeyFunc
	logger  zerolog.Logger
}

// NewRateLimiter creates a gin rate limiter for one policy
func NewRateLimiter(service *ratelimit.Service, keyFunc KeyFunc, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		service: service,
		keyFunc: keyFunc,
		logger:  logger,
	}
}

// RateLimit returns a Gin middleware function that implements rate limiting
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	policy := rl.service.Policy()
	limit := strconv.Itoa(policy.MaxRequests)
	retryAfter := strconv.Itoa(int(policy.Window.Seconds()))

	return func(c *gin.Context) {
		key := rl.keyFunc(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Could not determine rate limit key"})
			return
		}

		allowed, err := rl.service.IncrementAndCheckLimit(c.Request.Context(), key)
		if err != nil {
			rl.logger.Error().Err(err).Str("policy", policy.KeyPrefix).Msg("Rate limit check failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
			return
		}

		c.Header("X-RateLimit-Limit", limit)

		if !allowed {
			rl.logger.Info().Str("policy", policy.KeyPrefix).Msg("Rate limit exceeded")
			c.Header("Retry-After", retryAfter)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":  "Rate limit exceeded",
				"limit":  policy.MaxRequests,
				"window": policy.Window.String(),
			})
			return
		}

		c.Next()
	}
}
