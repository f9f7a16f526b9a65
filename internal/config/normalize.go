package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/core/similarity"
)

// applyEnv overlays environment variables on the file values.
func (c *Config) applyEnv() error {
	if value, ok := os.LookupEnv("SPOTIFY_CLIENT_ID"); ok {
		c.Spotify.ClientID = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("SPOTIFY_REDIRECT_URI"); ok {
		c.Spotify.RedirectURI = strings.TrimSpace(value)
	}
	if err := envInt("SPOTIFY_MAX_RETRIES", &c.Spotify.MaxRetries); err != nil {
		return err
	}
	if err := envInt("SPOTIFY_RETRY_BACKOFF_MS", &c.Spotify.RetryBackoffMs); err != nil {
		return err
	}
	if value, ok := os.LookupEnv("STORAGE_DRIVER"); ok {
		c.Storage.Driver = value
	}
	if value, ok := os.LookupEnv("STORAGE_PATH"); ok {
		c.Storage.Path = value
	}
	if value, ok := os.LookupEnv("DATABASE_URL"); ok {
		c.Storage.DatabaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("CATALOG_SOURCE"); ok {
		c.Catalog.Source = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("LOG_LEVEL"); ok {
		c.Logging.Level = value
	}
	if os.Getenv("DEBUG") == "true" {
		c.Logging.Development = true
		c.Logging.Level = "debug"
	}
	return nil
}

func envInt(name string, dst *int) error {
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", name, value)
	}
	*dst = n
	return nil
}

func (c *Config) normalize() error {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.Path != ":memory:" {
		var err error
		if strings.TrimSpace(c.Storage.Path) == "" {
			c.Storage.Path = defaultStoragePath
		}
		if c.Storage.Path, err = expandPath(c.Storage.Path); err != nil {
			return fmt.Errorf("storage.path: %w", err)
		}
	}

	if c.Catalog.Source != "" && !strings.Contains(c.Catalog.Source, "://") {
		var err error
		if c.Catalog.Source, err = expandPath(c.Catalog.Source); err != nil {
			return fmt.Errorf("catalog.source: %w", err)
		}
	}

	c.Recommend.TimeRange = strings.TrimSpace(c.Recommend.TimeRange)
	if c.Recommend.TimeRange == "" {
		c.Recommend.TimeRange = defaultTimeRange
	}
	c.Recommend.FieldSet = strings.ToLower(strings.TrimSpace(c.Recommend.FieldSet))
	c.Recommend.Strategy = strings.ToLower(strings.TrimSpace(c.Recommend.Strategy))
	if len(c.Spotify.Scopes) == 0 {
		c.Spotify.Scopes = append([]string(nil), DefaultScopes...)
	}

	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// Timeout is the HTTP timeout for provider calls.
func (s Spotify) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ExpiryMargin is the proactive refresh window.
func (s Spotify) ExpiryMargin() time.Duration {
	return time.Duration(s.ExpiryMarginSeconds) * time.Second
}

// RetryBackoff is the base delay of the 429 backoff.
func (s Spotify) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

// MaxBackoff caps a single 429 delay.
func (s Spotify) MaxBackoff() time.Duration {
	return time.Duration(s.MaxBackoffMs) * time.Millisecond
}

// VerifierTTL is how long an unanswered authorization attempt stays valid.
func (s Storage) VerifierTTL() time.Duration {
	return time.Duration(s.VerifierTTLSeconds) * time.Second
}

// Options converts the recommend section into pipeline options.
func (r Recommend) Options() (services.Options, error) {
	fields, err := similarity.FieldSet(r.FieldSet)
	if err != nil {
		return services.Options{}, err
	}
	strategy, err := similarity.ParseStrategy(r.Strategy)
	if err != nil {
		return services.Options{}, err
	}
	return services.Options{
		TimeRange:    r.TimeRange,
		SeedLimit:    r.SeedLimit,
		TopN:         r.TopN,
		Fields:       fields,
		Weights:      similarity.PopularityWeighted(r.PopularityWeight),
		Strategy:     strategy,
		IncludeSeeds: r.IncludeSeeds,
	}, nil
}
