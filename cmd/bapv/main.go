// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/commands"
)

func main() {
	if err := commands.RootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
