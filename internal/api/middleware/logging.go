// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// query parameters whose values never reach the logs
var sensitiveParams = []string{
	"code",
	"key",
	"token",
	"password",
	"secret",
	"state",
}

// redactQuery masks sensitive parameters in a raw query string
func redactQuery(query string) string {
	if query == "" {
		return ""
	}
	parsed, err := url.ParseQuery(query)
	if err != nil {
		return "[REDACTED]"
	}
	for param := range parsed {
		for _, sensitive := range sensitiveParams {
			if strings.Contains(strings.ToLower(param), sensitive) {
				parsed.Set(param, "[REDACTED]")
			}
		}
	}
	return parsed.Encode()
}

// Logger returns a gin middleware for logging HTTP requests with zerolog
func Logger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.Request.URL.Path
		if query := redactQuery(c.Request.URL.RawQuery); query != "" {
			path = path + "?" + query
		}

		status := c.Writer.Status()
		event := logger.Info()
		switch {
		case len(c.Errors) > 0:
			event = logger.Error().Err(c.Errors.Last())
		case status >= 500:
			event = logger.Error()
		case c.Request.URL.Path == "/health":
			event = logger.Debug()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("HTTP Request")
	}
}
