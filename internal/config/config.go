// Package config provides configuration loading for the OpenAPI aggregator.
package config

import (
	"fmt"
	"time"

	configloader "github.com/GabrielNunesIT/go-libs/config-loader"

	"github.com/GabrielNunesIT/openapi-aggregator/internal/aggerrors"
	"github.com/GabrielNunesIT/openapi-aggregator/internal/metrics"
)

// EnvPrefix prefixes the environment variables overriding settings,
// e.g. OPENAPI_AGGREGATOR_LISTEN.
const EnvPrefix = "OPENAPI_AGGREGATOR_"

// Config holds the application configuration.
type Config struct {
	Listen string `koanf:"listen"`
	// ProxyConfig is the path of the routes and clusters file.
	ProxyConfig string `koanf:"proxy_config"`
	// Watch reloads ProxyConfig when the file changes.
	Watch bool `koanf:"watch"`

	FetchTimeoutSeconds  int  `koanf:"fetch_timeout_seconds"`
	MaxConcurrentFetches int  `koanf:"max_concurrent_fetches"`
	CacheDocuments       bool `koanf:"cache_documents"`

	// AccessTokens maps an access token client name to a static bearer token.
	AccessTokens map[string]string `koanf:"access_tokens"`

	Metrics Metrics `koanf:"metrics"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled bool   `koanf:"enabled"`
	Prefix  string `koanf:"prefix"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		Listen:               ":8080",
		ProxyConfig:          "proxy.yaml",
		Watch:                true,
		FetchTimeoutSeconds:  30,
		MaxConcurrentFetches: 8,
		CacheDocuments:       true,
		Metrics: Metrics{
			Enabled: true,
			Prefix:  metrics.DefaultPrefix,
		},
	}
}

// FetchTimeout returns FetchTimeoutSeconds as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Load returns the application configuration using go-libs config-loader.
// Defaults are overridden by the optional file at path, then by environment
// variables.
func Load(path string) (*Config, error) {
	var (
		cfg Config
		err error
	)
	if path != "" {
		cfg, err = configloader.NewConfigLoader(
			configloader.WithDefaults(Defaults()),
			configloader.WithFile[Config](path),
			configloader.WithEnv[Config](EnvPrefix),
		).Load()
	} else {
		cfg, err = configloader.NewConfigLoader(
			configloader.WithDefaults(Defaults()),
			configloader.WithEnv[Config](EnvPrefix),
		).Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	if c.ProxyConfig == "" {
		return &aggerrors.ConfigurationError{Option: "proxy_config", Message: "is required"}
	}
	if c.FetchTimeoutSeconds <= 0 {
		return &aggerrors.ConfigurationError{Option: "fetch_timeout_seconds", Value: c.FetchTimeoutSeconds, Message: "must be positive"}
	}
	if c.MaxConcurrentFetches <= 0 {
		return &aggerrors.ConfigurationError{Option: "max_concurrent_fetches", Value: c.MaxConcurrentFetches, Message: "must be positive"}
	}
	return nil
}
