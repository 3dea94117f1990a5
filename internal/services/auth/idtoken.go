// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// DefaultIDTokenTTL applies when the token response has no expiry
const DefaultIDTokenTTL = time.Hour

var ErrNoIDToken = errors.New("auth: token response has no id_token")

// IDTokenStore keeps the One Login ID token of each session so it can be sent as
// the id_token_hint at logout.
type IDTokenStore struct {
	store TokenCache
	now   func() time.Time
}

func NewIDTokenStore(store TokenCache) *IDTokenStore {
	return &IDTokenStore{store: store, now: time.Now}
}

// Save stores the id_token of token for the session until the token expires
func (s *IDTokenStore) Save(ctx context.Context, sessionID string, token *oauth2.Token) error {
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return ErrNoIDToken
	}

	ttl := DefaultIDTokenTTL
	if !token.Expiry.IsZero() {
		ttl = token.Expiry.Sub(s.now())
	}

	return errors.Wrap(s.store.SetToken(ctx, sessionID, idToken, ttl), "auth: save id token")
}

// Get returns the stored ID token for the session
func (s *IDTokenStore) Get(ctx context.Context, sessionID string) (string, bool, error) {
	token, found, err := s.store.GetToken(ctx, sessionID)
	if err != nil {
		return "", false, errors.Wrap(err, "auth: read id token")
	}
	return token, found, nil
}
