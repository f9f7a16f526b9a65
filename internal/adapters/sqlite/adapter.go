// Package sqlite provides the SQLite-backed credential store and run history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// DefaultVerifierTTL bounds how long an unfinished authorization attempt
// stays redeemable.
const DefaultVerifierTTL = 10 * time.Minute

// Adapter implements the credential store and the run repository for SQLite.
type Adapter struct {
	db          *sql.DB
	verifierTTL time.Duration
	now         func() time.Time
}

var (
	_ ports.CredentialStore          = (*Adapter)(nil)
	_ ports.RecommendationRepository = (*Adapter)(nil)
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithVerifierTTL overrides DefaultVerifierTTL.
func WithVerifierTTL(d time.Duration) Option {
	return func(a *Adapter) { a.verifierTTL = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string, opts ...Option) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", storagePath, err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	adapter := &Adapter{db: db, verifierTTL: DefaultVerifierTTL, now: time.Now}
	for _, opt := range opts {
		opt(adapter)
	}

	if err := adapter.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS recommendation_runs (
		id TEXT PRIMARY KEY,
		generated_at TEXT NOT NULL,
		seed_count INTEGER NOT NULL DEFAULT 0,
		feature_count INTEGER NOT NULL DEFAULT 0,
		fallback INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS recommendation_results (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_id TEXT,
		track_name TEXT,
		artists TEXT,
		album_name TEXT,
		genre TEXT,
		popularity REAL,
		similarity REAL,
		combined_score REAL,
		features TEXT,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY(run_id) REFERENCES recommendation_runs(id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.ExecContext(ctx, query); err != nil {
		return err
	}

	// added after the first release
	if _, err := a.db.ExecContext(ctx, "ALTER TABLE recommendation_runs ADD COLUMN strategy TEXT"); err != nil {
		if !isDuplicateColumnError(err) {
			return err
		}
	}

	return nil
}

func isDuplicateColumnError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate column") || strings.Contains(err.Error(), "already exists"))
}
