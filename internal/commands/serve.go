// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/api/routes"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/buildinfo"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/logger"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services"
)

func ServeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long:  `Start the HTTP server and serve until SIGINT or SIGTERM`,
		Example: `  bapv serve
  bapv serve --listen :8080`,
	}

	var listenAddr string
	command.Flags().StringVar(&listenAddr, "listen", "", "address to listen on (overrides server.listen_addr)")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if listenAddr != "" {
			cfg.Server.ListenAddr = listenAddr
		}

		logger.Init(cfg.Log.Level, cfg.Log.Pretty)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg)
	}

	return command
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("version", buildinfo.Version).
		Str("commit", buildinfo.Commit).
		Str("git_ref", buildinfo.ShortRef(cfg.Build.GitRef)).
		Msg("Starting book a prison visit")

	svc := services.New(cfg, log.Logger)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store connection")
		}
	}()

	if cfg.Server.Mode == gin.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if err := r.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
		log.Error().Err(err).Msg("Failed to set trusted proxies")
	}
	routes.SetupRoutes(r, cfg, svc, log.Logger)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("address", cfg.Server.ListenAddr).
			Str("mode", gin.Mode()).
			Str("store", string(svc.Store.Type())).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("Server exiting")
	return nil
}
