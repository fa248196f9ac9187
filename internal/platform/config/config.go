// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A '.env' file in the
working directory is loaded first when present, which keeps local development
close to how the container is configured.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, broker) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// Config holds all runtime configuration for the storefront API and the notifier.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// SessionSecret signs guest order-access links.
	SessionSecret string `env:"SESSION_SECRET,required"`

	// Sessions
	SessionTTL           time.Duration `env:"SESSION_TTL"            envDefault:"24h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"15m"`
	RequireVerifiedEmail bool          `env:"REQUIRE_VERIFIED_EMAIL" envDefault:"false"`

	// Rate limiting. Backend is "memory" (single instance) or "redis" (shared).
	RateLimitBackend     string  `env:"RATE_LIMIT_BACKEND"          envDefault:"memory"`
	RateLimitRPS         float64 `env:"RATE_LIMIT_RPS"              envDefault:"5"`
	RateLimitBurst       int     `env:"RATE_LIMIT_BURST"            envDefault:"20"`
	LoginRateLimitPerMin int     `env:"LOGIN_RATE_LIMIT_PER_MINUTE" envDefault:"10"`

	// TrustedProxies lists the CIDRs (or bare IPs) of reverse proxies whose
	// X-Forwarded-For and X-Real-IP headers are honoured. Empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Domain events (RabbitMQ). Empty disables publishing.
	AMQPURL   string `env:"AMQP_URL"`
	AMQPQueue string `env:"AMQP_QUEUE" envDefault:"shop.events"`

	// Payment gateway (MercadoPago). Empty token disables checkout preferences.
	MercadoPagoAccessToken string `env:"MP_ACCESS_TOKEN"`
	MercadoPagoBaseURL     string `env:"MP_BASE_URL" envDefault:"https://api.mercadopago.com"`

	// PublicBaseURL is the storefront origin used for redirect and webhook URLs.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// IntegrationTimeout bounds every call to a third-party HTTP API.
	IntegrationTimeout time.Duration `env:"INTEGRATION_TIMEOUT" envDefault:"10s"`

	// Product images are written below MediaDir and served at MediaBaseURL.
	MediaDir     string `env:"MEDIA_DIR"      envDefault:"./data/media"`
	MediaBaseURL string `env:"MEDIA_BASE_URL" envDefault:"http://localhost:8080/media"`

	// Outgoing mail. Empty SMTP_SERVER logs messages instead of sending them.
	SMTPServer   string `env:"SMTP_SERVER"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	FromEmail    string `env:"FROM_EMAIL"    envDefault:"no-reply@whiphelmets.local"`
	FromName     string `env:"FROM_NAME"     envDefault:"Whip Helmets"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load reads an optional .env file and parses environment variables into a
// [Config] struct. Variables already present in the environment win over the
// file.
func Load() (*Config, error) {

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.RateLimitBackend != "memory" && cfg.RateLimitBackend != "redis" {
		return nil, fmt.Errorf("config: RATE_LIMIT_BACKEND must be memory or redis, got %q", cfg.RateLimitBackend)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
