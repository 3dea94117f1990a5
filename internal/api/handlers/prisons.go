// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/prisonregister"
)

// PrisonLister supplies prison names. *prisonregister.Client satisfies it.
type PrisonLister interface {
	GetPrisonNames(ctx context.Context) ([]prisonregister.Prison, error)
	GetPrisonName(ctx context.Context, prisonID string) (string, bool, error)
}

type PrisonsHandler struct {
	prisons PrisonLister
}

func NewPrisonsHandler(prisons PrisonLister) *PrisonsHandler {
	return &PrisonsHandler{prisons: prisons}
}

func (h *PrisonsHandler) GetPrisons(c *gin.Context) {
	prisons, err := h.prisons.GetPrisonNames(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to get prison names")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get prison names"})
		return
	}

	if prisons == nil {
		prisons = []prisonregister.Prison{}
	}
	c.JSON(http.StatusOK, prisons)
}

func (h *PrisonsHandler) GetPrison(c *gin.Context) {
	prisonID := c.Param("prisonId")

	name, found, err := h.prisons.GetPrisonName(c.Request.Context(), prisonID)
	if err != nil {
		log.Error().Err(err).Str("prisonId", prisonID).Msg("Failed to get prison name")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to get prison name"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Prison not found"})
		return
	}

	c.JSON(http.StatusOK, prisonregister.Prison{PrisonID: prisonID, PrisonName: name})
}
