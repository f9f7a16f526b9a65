// Package postgres provides a PostgreSQL-backed credential store and run
// history for deployments that share state between several server instances.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	credentialKey  = "credential"
	verifierPrefix = "pkce_verifier:"
)

// Store keeps the credential and PKCE verifiers in a kv table.
type Store struct {
	pool        *pgxpool.Pool
	verifierTTL time.Duration
}

var (
	_ ports.CredentialStore          = (*Store)(nil)
	_ ports.RecommendationRepository = (*Store)(nil)
)

// NewStore connects to connString, verifies the connection and creates the
// kv table when missing.
func NewStore(ctx context.Context, connString string, verifierTTL time.Duration) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: unable to parse connection string: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: unable to create connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: unable to ping database pool: %w", err)
	}

	s := &Store{pool: pool, verifierTTL: verifierTTL}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS recommendation_runs (
			id TEXT PRIMARY KEY,
			generated_at TIMESTAMPTZ NOT NULL,
			seed_count INTEGER NOT NULL,
			feature_count INTEGER NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			fallback BOOLEAN NOT NULL DEFAULT false,
			results JSONB NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Get(ctx context.Context) (domain.Credential, bool, error) {
	raw, _, err := s.getValue(ctx, credentialKey)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Credential{}, false, nil
	}
	if err != nil {
		return domain.Credential{}, false, err
	}
	var cred domain.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return domain.Credential{}, false, fmt.Errorf("postgres: decode credential: %w", err)
	}
	return cred, true, nil
}

func (s *Store) Set(ctx context.Context, cred domain.Credential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("postgres: encode credential: %w", err)
	}
	return s.putValue(ctx, credentialKey, string(b))
}

func (s *Store) Clear(ctx context.Context) error {
	return s.deleteValue(ctx, credentialKey)
}

func (s *Store) SaveVerifier(ctx context.Context, state, verifier string) error {
	if s.verifierTTL > 0 {
		_, err := s.pool.Exec(ctx,
			"DELETE FROM kv WHERE starts_with(key, $1) AND updated_at < $2",
			verifierPrefix, time.Now().Add(-s.verifierTTL))
		if err != nil {
			return fmt.Errorf("postgres: purge verifiers: %w", err)
		}
	}
	return s.putValue(ctx, verifierPrefix+state, verifier)
}

func (s *Store) LoadVerifier(ctx context.Context, state string) (string, error) {
	value, updatedAt, err := s.getValue(ctx, verifierPrefix+state)
	if err != nil {
		return "", err
	}
	if s.verifierTTL > 0 && time.Since(updatedAt) > s.verifierTTL {
		if err := s.deleteValue(ctx, verifierPrefix+state); err != nil {
			return "", err
		}
		return "", domain.ErrNotFound
	}
	return value, nil
}

func (s *Store) DeleteVerifier(ctx context.Context, state string) error {
	return s.deleteValue(ctx, verifierPrefix+state)
}

func (s *Store) getValue(ctx context.Context, key string) (string, time.Time, error) {
	var value string
	var updatedAt time.Time
	err := s.pool.QueryRow(ctx, "SELECT value, updated_at FROM kv WHERE key = $1", key).Scan(&value, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, domain.ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("postgres: load %s: %w", key, err)
	}
	return value, updatedAt, nil
}

func (s *Store) putValue(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("postgres: store %s: %w", key, err)
	}
	return nil
}

func (s *Store) deleteValue(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM kv WHERE key = $1", key); err != nil {
		return fmt.Errorf("postgres: delete %s: %w", key, err)
	}
	return nil
}
