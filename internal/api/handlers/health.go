// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/buildinfo"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/cache"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"

	healthCheckTimeout = 2 * time.Second
)

// StoreChecker reports on the shared resource store. *cache.Provider satisfies it.
type StoreChecker interface {
	Ping(ctx context.Context) error
	Type() cache.CacheType
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version"`
	Components map[string]ComponentHealth `json:"components"`
}

type HealthHandler struct {
	store StoreChecker
}

func NewHealthHandler(store StoreChecker) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	store := ComponentHealth{Status: StatusUp, Backend: string(h.store.Type())}
	if err := h.store.Ping(ctx); err != nil {
		log.Error().Err(err).Str("backend", store.Backend).Msg("Store health check failed")
		store.Status = StatusDown
		store.Error = err.Error()
	}

	resp := HealthResponse{
		Status:     store.Status,
		Version:    buildinfo.Version,
		Components: map[string]ComponentHealth{"store": store},
	}

	code := http.StatusOK
	if resp.Status != StatusUp {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
