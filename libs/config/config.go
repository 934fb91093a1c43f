// Package config loads the importer and importer-ws binaries' configuration
// from CLI flags with environment-variable fallback, validated via struct
// tags before use.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

// Importer holds the configuration for the ingest/aggregate binary.
type Importer struct {
	Document string `validate:"required"`
	Domain   string `validate:"required"`
	Key      string `validate:"required"`
	// DatabaseURL is the PostgreSQL DSN backing the point store.
	DatabaseURL string `validate:"required"`
	// Version is stamped at build time via -ldflags; "dev" otherwise.
	Version string `validate:"required"`
}

// ParseImporter parses flags from args (typically os.Args[1:]), falling
// back to environment variables for any flag not explicitly set, then
// validates the result.
func ParseImporter(args []string, version string) (Importer, error) {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	document := fs.String("document", envOr("DOCUMENT", "A44"), "EntSOE query document type")
	domain := fs.String("domain", envOr("DOMAIN", "10YLT-1001A0008Q"), "EntSOE query domain value")
	key := fs.String("key", envOr("KEY", ""), "EntSOE auth key")
	databaseURL := fs.String("database-url", envOr("DATABASE_URL", ""), "PostgreSQL connection string")

	if err := fs.Parse(args); err != nil {
		return Importer{}, err
	}

	cfg := Importer{
		Document:    *document,
		Domain:      *domain,
		Key:         *key,
		DatabaseURL: *databaseURL,
		Version:     version,
	}

	if err := validate.Struct(cfg); err != nil {
		return Importer{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// MaskedKey returns the auth key with everything but its first and last two
// characters replaced by "...", safe to log. Keys of length <= 4 are
// returned unchanged since masking them would reveal nothing extra anyway.
func (c Importer) MaskedKey() string {
	if len(c.Key) <= 4 {
		return c.Key
	}
	return c.Key[:2] + "..." + c.Key[len(c.Key)-2:]
}

// API holds the configuration for the read API binary.
type API struct {
	DatabaseURL string `validate:"required"`
	// RedisURL, if set, enables the read-through cache in front of the
	// store. Empty disables caching.
	RedisURL string
	Addr     string `validate:"required"`
	Version  string `validate:"required"`
	// RateLimitEnabled mounts a per-client rate limiter in front of the
	// read API. Off by default: the documented rate limit is the ingest
	// side's upstream courtesy limiter, not an API-consumer limit.
	RateLimitEnabled bool
}

// ParseAPI parses flags for the read API binary, falling back to
// environment variables, then validates the result.
func ParseAPI(args []string, version string) (API, error) {
	fs := flag.NewFlagSet("importer-ws", flag.ContinueOnError)
	databaseURL := fs.String("database-url", envOr("DATABASE_URL", ""), "PostgreSQL connection string")
	redisURL := fs.String("redis-url", envOr("REDIS_URL", ""), "Redis URL for the read cache (optional)")
	addr := fs.String("addr", envOr("ADDR", ":8080"), "HTTP listen address")
	rateLimitEnabled := fs.Bool("rate-limit-enabled", boolEnvOr("RATE_LIMIT_ENABLED", false), "enable per-client rate limiting on the read API")

	if err := fs.Parse(args); err != nil {
		return API{}, err
	}

	cfg := API{
		DatabaseURL:      *databaseURL,
		RedisURL:         *redisURL,
		Addr:             *addr,
		Version:          version,
		RateLimitEnabled: *rateLimitEnabled,
	}

	if err := validate.Struct(cfg); err != nil {
		return API{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

var validate = validator.New()

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func boolEnvOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v != "" && v != "false" && v != "0"
}
