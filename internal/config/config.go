// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the main configuration structure
type Config struct {
	Server     ServerConfig     `toml:"server" yaml:"server"`
	Redis      RedisConfig      `toml:"redis" yaml:"redis"`
	Build      BuildConfig      `toml:"build" yaml:"build"`
	APIs       APIsConfig       `toml:"apis" yaml:"apis"`
	RateLimits RateLimitsConfig `toml:"rate_limits" yaml:"rate_limits"`
	Log        LogConfig        `toml:"log" yaml:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	ListenAddr  string   `toml:"listen_addr" yaml:"listen_addr" env:"BAPV__LISTEN_ADDR"`
	Mode        string   `toml:"mode" yaml:"mode" env:"GIN_MODE"`
	CORSOrigins []string `toml:"cors_origins" yaml:"cors_origins" env:"BAPV__CORS_ORIGINS"`
}

// RedisConfig holds the shared store connection settings.
// When Enabled is false every store is kept in process memory.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled" yaml:"enabled" env:"REDIS_ENABLED"`
	Host       string `toml:"host" yaml:"host" env:"REDIS_HOST"`
	Port       int    `toml:"port" yaml:"port" env:"REDIS_PORT"`
	Password   string `toml:"password" yaml:"password" env:"REDIS_AUTH_TOKEN"`
	TLSEnabled bool   `toml:"tls_enabled" yaml:"tls_enabled" env:"REDIS_TLS_ENABLED"`
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// BuildConfig identifies the running build. GitRef feeds the data cache namespace.
type BuildConfig struct {
	GitRef string `toml:"git_ref" yaml:"git_ref" env:"GIT_REF"`
}

// APIsConfig holds the upstream API endpoints
type APIsConfig struct {
	HMPPSAuth      AuthAPIConfig `toml:"hmpps_auth" yaml:"hmpps_auth"`
	BookerRegistry APIConfig     `toml:"booker_registry" yaml:"booker_registry"`
	PrisonRegister APIConfig     `toml:"prison_register" yaml:"prison_register"`
}

// APIConfig is a single upstream REST API
type APIConfig struct {
	URL            string `toml:"url" yaml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Timeout returns the request timeout for the API.
func (a APIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// AuthAPIConfig holds the HMPPS Auth client credentials used for system tokens
type AuthAPIConfig struct {
	APIConfig          `yaml:",inline"`
	SystemClientID     string `toml:"system_client_id" yaml:"system_client_id" env:"SYSTEM_CLIENT_ID"`
	SystemClientSecret string `toml:"system_client_secret" yaml:"system_client_secret" env:"SYSTEM_CLIENT_SECRET"`
}

// RateLimitsConfig holds one quota per rate limited journey
type RateLimitsConfig struct {
	Booker   RateLimitConfig `toml:"booker" yaml:"booker"`
	Prisoner RateLimitConfig `toml:"prisoner" yaml:"prisoner"`
	Visitor  RateLimitConfig `toml:"visitor" yaml:"visitor"`
}

// RateLimitConfig is a fixed window quota
type RateLimitConfig struct {
	MaxRequests   int `toml:"max_requests" yaml:"max_requests"`
	WindowSeconds int `toml:"window_seconds" yaml:"window_seconds"`
}

// Window returns the quota window as a duration.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `toml:"level" yaml:"level" env:"LOG_LEVEL"`
	Pretty bool   `toml:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

const (
	defaultAPITimeoutSeconds = 10
	oneDaySeconds            = 24 * 60 * 60
)

// Default returns the configuration used for anything not set in the file or environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":3000",
			Mode:       "release",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Build: BuildConfig{
			GitRef: "xxxxxxxxxxxxxxxxxxx",
		},
		APIs: APIsConfig{
			HMPPSAuth: AuthAPIConfig{
				APIConfig: APIConfig{URL: "http://localhost:9090/auth", TimeoutSeconds: defaultAPITimeoutSeconds},
			},
			BookerRegistry: APIConfig{URL: "http://localhost:8082", TimeoutSeconds: defaultAPITimeoutSeconds},
			PrisonRegister: APIConfig{URL: "http://localhost:8083", TimeoutSeconds: defaultAPITimeoutSeconds},
		},
		RateLimits: RateLimitsConfig{
			Booker:   RateLimitConfig{MaxRequests: 5, WindowSeconds: oneDaySeconds},
			Prisoner: RateLimitConfig{MaxRequests: 5, WindowSeconds: oneDaySeconds},
			Visitor:  RateLimitConfig{MaxRequests: 20, WindowSeconds: oneDaySeconds},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads the configuration from a TOML or YAML file, chosen by extension
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error decoding config file: %w", err)
		}
	default:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	// Override with environment variables if they exist
	if err := LoadEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromEnv builds the configuration from defaults and environment variables only
func LoadFromEnv() (*Config, error) {
	config := Default()
	if err := LoadEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("error loading environment variables: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEnvOverrides checks for environment variables and overrides config values
func LoadEnvOverrides(config *Config) error {
	// Server
	if env := os.Getenv("BAPV__LISTEN_ADDR"); env != "" {
		config.Server.ListenAddr = env
	}
	if env := os.Getenv("GIN_MODE"); env != "" {
		config.Server.Mode = env
	}
	if env := os.Getenv("BAPV__CORS_ORIGINS"); env != "" {
		config.Server.CORSOrigins = nil
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.Server.CORSOrigins = append(config.Server.CORSOrigins, origin)
			}
		}
	}

	// Redis
	if err := boolEnv("REDIS_ENABLED", &config.Redis.Enabled); err != nil {
		return err
	}
	if env := os.Getenv("REDIS_HOST"); env != "" {
		config.Redis.Host = env
	}
	if err := intEnv("REDIS_PORT", &config.Redis.Port); err != nil {
		return err
	}
	if env := os.Getenv("REDIS_AUTH_TOKEN"); env != "" {
		config.Redis.Password = env
	}
	if err := boolEnv("REDIS_TLS_ENABLED", &config.Redis.TLSEnabled); err != nil {
		return err
	}

	// Build
	if env := os.Getenv("GIT_REF"); env != "" {
		config.Build.GitRef = env
	}

	// APIs
	if env := os.Getenv("HMPPS_AUTH_URL"); env != "" {
		config.APIs.HMPPSAuth.URL = env
	}
	if env := os.Getenv("SYSTEM_CLIENT_ID"); env != "" {
		config.APIs.HMPPSAuth.SystemClientID = env
	}
	if env := os.Getenv("SYSTEM_CLIENT_SECRET"); env != "" {
		config.APIs.HMPPSAuth.SystemClientSecret = env
	}
	if env := os.Getenv("BOOKER_REGISTRY_API_URL"); env != "" {
		config.APIs.BookerRegistry.URL = env
	}
	if env := os.Getenv("PRISON_REGISTER_API_URL"); env != "" {
		config.APIs.PrisonRegister.URL = env
	}

	// Rate limits
	limits := map[string]*RateLimitConfig{
		"BOOKER":   &config.RateLimits.Booker,
		"PRISONER": &config.RateLimits.Prisoner,
		"VISITOR":  &config.RateLimits.Visitor,
	}
	for name, limit := range limits {
		if err := intEnv(name+"_RATE_LIMIT_MAX_REQUESTS", &limit.MaxRequests); err != nil {
			return err
		}
		if err := intEnv(name+"_RATE_LIMIT_WINDOW_SECONDS", &limit.WindowSeconds); err != nil {
			return err
		}
	}

	// Log
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		config.Log.Level = env
	}
	if err := boolEnv("LOG_PRETTY", &config.Log.Pretty); err != nil {
		return err
	}

	return nil
}

// Validate rejects settings the stores cannot work with
func (c *Config) Validate() error {
	if c.Redis.Enabled && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis port %d", c.Redis.Port)
	}

	limits := map[string]RateLimitConfig{
		"booker":   c.RateLimits.Booker,
		"prisoner": c.RateLimits.Prisoner,
		"visitor":  c.RateLimits.Visitor,
	}
	for name, limit := range limits {
		if limit.MaxRequests <= 0 {
			return fmt.Errorf("rate limit %s: max_requests must be positive, got %d", name, limit.MaxRequests)
		}
		if limit.WindowSeconds <= 0 {
			return fmt.Errorf("rate limit %s: window_seconds must be positive, got %d", name, limit.WindowSeconds)
		}
	}

	return nil
}

func intEnv(name string, dst *int) error {
	env := os.Getenv(name)
	if env == "" {
		return nil
	}
	v, err := strconv.Atoi(env)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = v
	return nil
}

func boolEnv(name string, dst *bool) error {
	env := os.Getenv(name)
	if env == "" {
		return nil
	}
	v, err := strconv.ParseBool(env)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = v
	return nil
}
