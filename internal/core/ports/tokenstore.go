package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// TokenStore persists the single bearer credential. It performs no
// validation and no network calls.
type TokenStore interface {
	// Get returns the stored credential; the bool is false when none is stored.
	Get(ctx context.Context) (domain.Credential, bool, error)
	Set(ctx context.Context, cred domain.Credential) error
	Clear(ctx context.Context) error
}

// VerifierStore keeps PKCE verifiers keyed by the authorization attempt's state.
type VerifierStore interface {
	SaveVerifier(ctx context.Context, state, verifier string) error
	// LoadVerifier returns domain.ErrNotFound for unknown or expired states.
	LoadVerifier(ctx context.Context, state string) (string, error)
	DeleteVerifier(ctx context.Context, state string) error
}

// CredentialStore is what the durable storage adapters provide.
type CredentialStore interface {
	TokenStore
	VerifierStore
	Close() error
}
