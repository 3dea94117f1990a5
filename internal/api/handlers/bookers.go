// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/bookerregistry"
)

// Limiter is a rate limit check. *ratelimit.Service satisfies it.
type Limiter interface {
	IncrementAndCheckLimit(ctx context.Context, key string) (bool, error)
}

// BookerRegistry is the part of the Booker Registry API the booker journeys use
type BookerRegistry interface {
	RegisterPrisoner(ctx context.Context, reference string, req bookerregistry.RegisterPrisonerRequest) (bool, error)
	AddVisitorRequest(ctx context.Context, reference string, req bookerregistry.VisitorRequest) error
}

type AddPrisonerRequest struct {
	PrisonerID string `json:"prisonerId" binding:"required"`
	PrisonID   string `json:"prisonId" binding:"required"`
}

type AddVisitorRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	DateOfBirth string `json:"dateOfBirth" binding:"required,datetime=2006-01-02"`
}

type BookersHandler struct {
	registry        BookerRegistry
	bookerLimiter   Limiter
	prisonerLimiter Limiter
}

func NewBookersHandler(registry BookerRegistry, bookerLimiter, prisonerLimiter Limiter) *BookersHandler {
	return &BookersHandler{
		registry:        registry,
		bookerLimiter:   bookerLimiter,
		prisonerLimiter: prisonerLimiter,
	}
}

// AddPrisoner registers a prisoner for a booker. Both the booker and the
// prisoner must be within their rate limits.
func (h *BookersHandler) AddPrisoner(c *gin.Context) {
	reference := c.Param("reference")

	var req AddPrisonerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()

	allowed, err := h.bookerLimiter.IncrementAndCheckLimit(ctx, reference)
	if err == nil && allowed {
		allowed, err = h.prisonerLimiter.IncrementAndCheckLimit(ctx, req.PrisonerID)
	}
	if err != nil {
		log.Error().Err(err).Msg("Rate limit check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}
	if !allowed {
		log.Info().Str("prisonerId", req.PrisonerID).Msg("Add prisoner rate limit exceeded")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	registered, err := h.registry.RegisterPrisoner(ctx, reference, bookerregistry.RegisterPrisonerRequest{
		PrisonerID: req.PrisonerID,
		PrisonCode: req.PrisonID,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to register prisoner")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to register prisoner"})
		return
	}
	if !registered {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Prisoner details do not match"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"prisonerId": req.PrisonerID, "prisonId": req.PrisonID})
}

// AddVisitor forwards a request to add a visitor. Rate limiting is applied by
// middleware on the route.
func (h *BookersHandler) AddVisitor(c *gin.Context) {
	reference := c.Param("reference")

	var req AddVisitorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.registry.AddVisitorRequest(c.Request.Context(), reference, bookerregistry.VisitorRequest(req))
	if err != nil {
		var apiErr *bookerregistry.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Visitor request rejected"})
			return
		}
		log.Error().Err(err).Msg("Failed to add visitor request")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to add visitor request"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "requested"})
}
