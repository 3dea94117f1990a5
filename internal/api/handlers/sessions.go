// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// IDTokenReader returns the stored One Login ID token of a session.
// *auth.IDTokenStore satisfies it.
type IDTokenReader interface {
	Get(ctx context.Context, sessionID string) (string, bool, error)
}

type SessionsHandler struct {
	idTokens IDTokenReader
}

func NewSessionsHandler(idTokens IDTokenReader) *SessionsHandler {
	return &SessionsHandler{idTokens: idTokens}
}

// GetLogoutHint returns the id_token_hint to send with the One Login logout redirect
func (h *SessionsHandler) GetLogoutHint(c *gin.Context) {
	sessionID := c.Param("sessionId")

	idToken, found, err := h.idTokens.Get(c.Request.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ID token")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "No ID token for session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"idTokenHint": idToken})
}
