// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package buildinfo

import (
	"fmt"
	"net/http"
	"runtime"
)

// Set at link time with -ldflags "-X .../internal/buildinfo.Version=..."
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

const shortRefLength = 7

// ShortRef returns the abbreviated form of a git ref, as shown by `git log --oneline`.
func ShortRef(ref string) string {
	if len(ref) <= shortRefLength {
		return ref
	}
	return ref[:shortRefLength]
}

// UserAgent identifies this service to upstream APIs.
func UserAgent() string {
	return fmt.Sprintf("hmpps-book-a-prison-visit-ui/%s (%s; %s)", Version, ShortRef(Commit), runtime.Version())
}

// AttachUserAgentHeader sets the User-Agent header on outgoing requests.
func AttachUserAgentHeader(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent())
}
