package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	credentialKey  = "credential"
	verifierPrefix = "pkce_verifier:"
	// verifierUpper is the first key past every verifierPrefix key.
	verifierUpper = "pkce_verifier;"
)

func (a *Adapter) Get(ctx context.Context) (domain.Credential, bool, error) {
	raw, _, err := a.getValue(ctx, credentialKey)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Credential{}, false, nil
	}
	if err != nil {
		return domain.Credential{}, false, err
	}

	var cred domain.Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return domain.Credential{}, false, fmt.Errorf("sqlite: decode credential: %w", err)
	}
	return cred, true, nil
}

func (a *Adapter) Set(ctx context.Context, cred domain.Credential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("sqlite: encode credential: %w", err)
	}
	return a.putValue(ctx, credentialKey, string(b))
}

func (a *Adapter) Clear(ctx context.Context) error {
	return a.deleteValue(ctx, credentialKey)
}

func (a *Adapter) SaveVerifier(ctx context.Context, state, verifier string) error {
	if err := a.purgeVerifiers(ctx); err != nil {
		return err
	}
	return a.putValue(ctx, verifierPrefix+state, verifier)
}

// LoadVerifier returns domain.ErrNotFound for unknown states and for
// verifiers older than the TTL.
func (a *Adapter) LoadVerifier(ctx context.Context, state string) (string, error) {
	value, updatedAt, err := a.getValue(ctx, verifierPrefix+state)
	if err != nil {
		return "", err
	}
	if a.verifierTTL > 0 && a.now().Sub(updatedAt) > a.verifierTTL {
		if err := a.deleteValue(ctx, verifierPrefix+state); err != nil {
			return "", err
		}
		return "", domain.ErrNotFound
	}
	return value, nil
}

func (a *Adapter) DeleteVerifier(ctx context.Context, state string) error {
	return a.deleteValue(ctx, verifierPrefix+state)
}

func (a *Adapter) getValue(ctx context.Context, key string) (string, time.Time, error) {
	row := a.db.QueryRowContext(ctx, "SELECT value, updated_at FROM kv WHERE key = ?", key)
	var value string
	var updatedMs int64
	if err := row.Scan(&value, &updatedMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, domain.ErrNotFound
		}
		return "", time.Time{}, fmt.Errorf("sqlite: load %s: %w", key, err)
	}
	return value, time.UnixMilli(updatedMs), nil
}

func (a *Adapter) putValue(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at;
	`
	if _, err := a.db.ExecContext(ctx, query, key, value, a.now().UnixMilli()); err != nil {
		return fmt.Errorf("sqlite: store %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) deleteValue(ctx context.Context, key string) error {
	if _, err := a.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) purgeVerifiers(ctx context.Context) error {
	if a.verifierTTL <= 0 {
		return nil
	}
	cutoff := a.now().Add(-a.verifierTTL).UnixMilli()
	if _, err := a.db.ExecContext(ctx, "DELETE FROM kv WHERE key >= ? AND key < ? AND updated_at < ?", verifierPrefix, verifierUpper, cutoff); err != nil {
		return fmt.Errorf("sqlite: purge verifiers: %w", err)
	}
	return nil
}
