// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/api/handlers"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/api/middleware"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(r *gin.Engine, cfg *config.Config, svc *services.Services, logger zerolog.Logger) {
	// Use custom logger instead of default Gin logger
	r.Use(middleware.Logger(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.SetupCORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Secure(nil))

	healthHandler := handlers.NewHealthHandler(svc.Store)
	prisonsHandler := handlers.NewPrisonsHandler(svc.PrisonRegister)
	sessionsHandler := handlers.NewSessionsHandler(svc.IDTokens)
	bookersHandler := handlers.NewBookersHandler(svc.BookerRegistry, svc.RateLimits.Booker, svc.RateLimits.Prisoner)

	visitorRateLimiter := middleware.NewRateLimiter(svc.RateLimits.Visitor, middleware.ParamKey("reference"), logger)

	r.GET("/health", healthHandler.CheckHealth)

	api := r.Group("/api")
	{
		api.GET("/prisons", prisonsHandler.GetPrisons)
		api.GET("/prisons/:prisonId", prisonsHandler.GetPrison)
		api.GET("/sessions/:sessionId/logout-hint", sessionsHandler.GetLogoutHint)

		bookers := api.Group("/bookers/:reference")
		{
			bookers.POST("/prisoners", bookersHandler.AddPrisoner)
			bookers.POST("/visitors", visitorRateLimiter.RateLimit(), bookersHandler.AddVisitor)
		}
	}
}
