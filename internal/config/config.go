package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Spotify contains OAuth and Web API client settings.
type Spotify struct {
	ClientID       string   `toml:"client_id"`
	RedirectURI    string   `toml:"redirect_uri"`
	Scopes         []string `toml:"scopes"`
	AuthURL        string   `toml:"auth_url"`
	TokenURL       string   `toml:"token_url"`
	APIBaseURL     string   `toml:"api_base_url"`
	VerifierLength int      `toml:"verifier_length"`
	// ExpiryMarginSeconds is how long before expiry a token is refreshed.
	ExpiryMarginSeconds int `toml:"expiry_margin_seconds"`
	TimeoutSeconds      int `toml:"timeout_seconds"`
	// MaxRetries bounds retries of rate-limited calls; 0 disables them.
	MaxRetries          int `toml:"max_retries"`
	RetryBackoffMs      int `toml:"retry_backoff_ms"`
	MaxBackoffMs        int `toml:"max_backoff_ms"`
	// RequestsPerSecond paces outgoing calls; 0 disables pacing.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	BatchSize         int     `toml:"batch_size"`
}

// Storage selects where the credential and run history live.
type Storage struct {
	Driver             string `toml:"driver"`
	Path               string `toml:"path"`
	DatabaseURL        string `toml:"database_url"`
	VerifierTTLSeconds int    `toml:"verifier_ttl_seconds"`
}

// Catalog locates the candidate CSV.
type Catalog struct {
	Source string `toml:"source"`
	Watch  bool   `toml:"watch"`
}

// Recommend holds the pipeline defaults.
type Recommend struct {
	TimeRange        string  `toml:"time_range"`
	SeedLimit        int     `toml:"seed_limit"`
	TopN             int     `toml:"top_n"`
	FieldSet         string  `toml:"field_set"`
	Strategy         string  `toml:"strategy"`
	PopularityWeight float64 `toml:"popularity_weight"`
	IncludeSeeds     bool    `toml:"include_seeds"`
}

// Server contains HTTP API settings.
type Server struct {
	Bind      string `toml:"bind"`
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format      string `toml:"format"`
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Config encapsulates all configuration values for cadence.
type Config struct {
	Spotify   Spotify   `toml:"spotify"`
	Storage   Storage   `toml:"storage"`
	Catalog   Catalog   `toml:"catalog"`
	Recommend Recommend `toml:"recommend"`
	Server    Server    `toml:"server"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads defaults, then the TOML file at path (or the default locations
// when path is empty), then a .env file in the working directory, then the
// process environment. The result is normalized and validated.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// EnsureDirectories creates the parent directory of the sqlite database.
func (c *Config) EnsureDirectories() error {
	if c.Storage.Driver != DriverSQLite || c.Storage.Path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(c.Storage.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// LockPath is the file serve holds so that only one server refreshes
// against the durable store at a time.
func (c *Config) LockPath() string {
	if c.Storage.Driver == DriverSQLite && c.Storage.Path != ":memory:" {
		return c.Storage.Path + ".lock"
	}
	return filepath.Join(os.TempDir(), "cadence.lock")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cadence.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
