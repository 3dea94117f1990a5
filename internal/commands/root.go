// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package commands

import (
	"github.com/spf13/cobra"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
)

// RootCommand returns the bapv command with all subcommands attached
func RootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "bapv",
		Short: "Book a prison visit",
		Long:  `Book a prison visit: API service for the public prison visit booking journeys`,
		Example: `  bapv serve
  bapv serve --config config.toml
  bapv store ping`,
		SilenceUsage: true,
	}

	command.PersistentFlags().String("config", "", "path to a TOML or YAML config file (environment only when empty)")

	command.AddCommand(ServeCommand())
	command.AddCommand(StoreCommand())
	command.AddCommand(VersionCommand())

	return command
}

// loadConfig reads the file given by --config, or the environment alone
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.LoadConfig(path)
}
