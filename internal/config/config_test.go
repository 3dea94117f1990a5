// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[server]
listen_addr = ":8080"

[redis]
enabled = true
host = "redis.internal"
port = 6380
tls_enabled = true

[build]
git_ref = "4f1c2a9e8d7b6c5a"

[apis.booker_registry]
url = "https://booker-registry.example"
timeout_seconds = 3

[apis.hmpps_auth]
url = "https://auth.example/auth"
system_client_id = "book-a-visit"

[rate_limits.prisoner]
max_requests = 5
window_seconds = 30
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr())
	assert.Equal(t, "4f1c2a9e8d7b6c5a", cfg.Build.GitRef)
	assert.Equal(t, "https://booker-registry.example", cfg.APIs.BookerRegistry.URL)
	assert.Equal(t, 3*time.Second, cfg.APIs.BookerRegistry.Timeout())
	assert.Equal(t, "https://auth.example/auth", cfg.APIs.HMPPSAuth.URL)
	assert.Equal(t, "book-a-visit", cfg.APIs.HMPPSAuth.SystemClientID)
	assert.Equal(t, 30*time.Second, cfg.RateLimits.Prisoner.Window())

	// untouched sections keep their defaults
	assert.Equal(t, "http://localhost:8083", cfg.APIs.PrisonRegister.URL)
	assert.Equal(t, Default().RateLimits.Visitor, cfg.RateLimits.Visitor)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
redis:
  enabled: false
build:
  git_ref: abc
apis:
  hmpps_auth:
    url: https://auth.example/auth
    timeout_seconds: 4
rate_limits:
  visitor:
    max_requests: 2
    window_seconds: 60
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "abc", cfg.Build.GitRef)
	assert.Equal(t, "https://auth.example/auth", cfg.APIs.HMPPSAuth.URL)
	assert.Equal(t, 4*time.Second, cfg.APIs.HMPPSAuth.Timeout())
	assert.Equal(t, RateLimitConfig{MaxRequests: 2, WindowSeconds: 60}, cfg.RateLimits.Visitor)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "elasticache")
	t.Setenv("REDIS_PORT", "6390")
	t.Setenv("REDIS_AUTH_TOKEN", "secret")
	t.Setenv("GIT_REF", "deadbeefcafe")
	t.Setenv("PRISONER_RATE_LIMIT_MAX_REQUESTS", "7")
	t.Setenv("PRISONER_RATE_LIMIT_WINDOW_SECONDS", "120")
	t.Setenv("BAPV__CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "elasticache:6390", cfg.Redis.Addr())
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, "deadbeefcafe", cfg.Build.GitRef)
	assert.Equal(t, RateLimitConfig{MaxRequests: 7, WindowSeconds: 120}, cfg.RateLimits.Prisoner)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadEnvOverrides_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric port", key: "REDIS_PORT", value: "redis"},
		{name: "non boolean flag", key: "REDIS_ENABLED", value: "maybe"},
		{name: "non numeric quota", key: "BOOKER_RATE_LIMIT_MAX_REQUESTS", value: "lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			err := LoadEnvOverrides(Default())
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name: "bad port ignored when redis disabled",
			mutate: func(c *Config) {
				c.Redis.Port = 0
			},
		},
		{
			name: "bad port rejected when redis enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Port = 70000
			},
			wantErr: true,
		},
		{
			name: "zero quota",
			mutate: func(c *Config) {
				c.RateLimits.Booker.MaxRequests = 0
			},
			wantErr: true,
		},
		{
			name: "negative window",
			mutate: func(c *Config) {
				c.RateLimits.Visitor.WindowSeconds = -1
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
