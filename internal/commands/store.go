// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/cache"
)

type StoreStatus struct {
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

func StoreCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "store",
		Short: "Inspect the shared resource store",
	}

	command.AddCommand(storePingCommand())
	return command
}

func storePingCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "ping",
		Short: "Check the configured store is reachable",
		Example: `  bapv store ping
  REDIS_ENABLED=true REDIS_HOST=localhost bapv store ping --json`,
	}

	var (
		outputJson = false
		timeout    = 5 * time.Second
	)

	command.Flags().BoolVar(&outputJson, "json", false, "output in JSON format")
	command.Flags().DurationVar(&timeout, "timeout", timeout, "how long to wait for the store")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		provider := cache.NewProvider(cfg, zerolog.Nop())
		defer provider.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		status := StoreStatus{Backend: string(provider.Type()), Status: "UP"}
		pingErr := provider.Ping(ctx)
		if pingErr != nil {
			status.Status = "DOWN"
			status.Error = pingErr.Error()
		}

		out := cmd.OutOrStdout()
		if outputJson {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(status); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "Store: %s\n", status.Backend)
			fmt.Fprintf(out, "Status: %s\n", status.Status)
		}

		if pingErr != nil {
			return fmt.Errorf("store unreachable: %w", pingErr)
		}
		return nil
	}

	return command
}
