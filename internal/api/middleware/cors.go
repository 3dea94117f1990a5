// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// SetupCORS returns the CORS middleware configuration. With no origins
// configured every origin is allowed.
func SetupCORS(allowOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			"GET",
			"POST",
			"OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Authorization",
			"Content-Type",
			"Accept",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"Retry-After",
			"X-RateLimit-Limit",
		},
		MaxAge: 12 * time.Hour,
	}

	if len(allowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowOrigins
	}

	return cors.New(config)
}
