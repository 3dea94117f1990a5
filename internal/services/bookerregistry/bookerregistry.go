// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package bookerregistry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/config"
	"github.com/ministryofjustice/hmpps-book-a-prison-visit-ui/internal/services/core"
)

// APIError is a non-2xx response from the registry
type APIError = core.APIError

// RegisterPrisonerRequest links a prisoner to a booker
type RegisterPrisonerRequest struct {
	PrisonerID string `json:"prisonerId"`
	PrisonCode string `json:"prisonCode"`
}

// VisitorRequest asks for a visitor to be approved for a booker
type VisitorRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
}

// Client calls the Booker Registry API with the system token
type Client struct {
	api    *core.Client
	logger zerolog.Logger
}

func New(cfg config.APIConfig, tokens core.TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		api:    core.NewClient("booker-registry", cfg, tokens, logger),
		logger: logger.With().Str("module", "bookerregistry").Logger(),
	}
}

func bookerPath(reference, suffix string) string {
	return fmt.Sprintf("/public/booker/%s/permitted/%s", url.PathEscape(reference), suffix)
}

// RegisterPrisoner registers a prisoner against the booker. It returns false
// without an error when the registry rejects the details.
func (c *Client) RegisterPrisoner(ctx context.Context, reference string, req RegisterPrisonerRequest) (bool, error) {
	err := c.api.DoJSON(ctx, http.MethodPost, bookerPath(reference, "prisoners/register"), req, nil)
	if err == nil {
		return true, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
		c.logger.Info().Str("prisonerId", req.PrisonerID).Msg("Prisoner registration rejected")
		return false, nil
	}
	return false, errors.Wrap(err, "bookerregistry: register prisoner")
}

// AddVisitorRequest submits a request to add a visitor to the booker
func (c *Client) AddVisitorRequest(ctx context.Context, reference string, req VisitorRequest) error {
	err := c.api.DoJSON(ctx, http.MethodPost, bookerPath(reference, "visitors/request"), req, nil)
	return errors.Wrap(err, "bookerregistry: add visitor request")
}
