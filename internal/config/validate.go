package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSpotify(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRecommend(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSpotify() error {
	s := c.Spotify
	if s.ClientID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("spotify.client_id is required. Set SPOTIFY_CLIENT_ID env var or edit %s", defaultPath)
	}
	for name, raw := range map[string]string{
		"spotify.redirect_uri": s.RedirectURI,
		"spotify.auth_url":     s.AuthURL,
		"spotify.token_url":    s.TokenURL,
		"spotify.api_base_url": s.APIBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if s.VerifierLength < 43 || s.VerifierLength > 128 {
		return errors.New("spotify.verifier_length must be between 43 and 128")
	}
	if s.ExpiryMarginSeconds < 0 {
		return errors.New("spotify.expiry_margin_seconds must be non-negative")
	}
	if s.TimeoutSeconds <= 0 {
		return errors.New("spotify.timeout_seconds must be positive")
	}
	if s.MaxRetries < 0 {
		return errors.New("spotify.max_retries must be non-negative")
	}
	if s.RetryBackoffMs <= 0 || s.MaxBackoffMs <= 0 {
		return errors.New("spotify.retry_backoff_ms and spotify.max_backoff_ms must be positive")
	}
	if s.RequestsPerSecond < 0 {
		return errors.New("spotify.requests_per_second must be non-negative")
	}
	if s.BatchSize < 1 || s.BatchSize > 100 {
		return errors.New("spotify.batch_size must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path must be set for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("storage.database_url must be set for the postgres driver (or DATABASE_URL)")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if c.Storage.VerifierTTLSeconds <= 0 {
		return errors.New("storage.verifier_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := c.Recommend
	switch r.TimeRange {
	case "short_term", "medium_term", "long_term":
	default:
		return fmt.Errorf("recommend.time_range: unknown value %q", r.TimeRange)
	}
	if r.SeedLimit < 1 {
		return errors.New("recommend.seed_limit must be positive")
	}
	if r.TopN < 1 {
		return errors.New("recommend.top_n must be positive")
	}
	if r.PopularityWeight < 0 || r.PopularityWeight > 1 {
		return errors.New("recommend.popularity_weight must be between 0 and 1")
	}
	if _, err := r.Options(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	return nil
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	if c.Server.Workers < 1 || c.Server.QueueSize < 1 {
		return errors.New("server.workers and server.queue_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
