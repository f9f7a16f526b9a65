package domain

import "time"

// DefaultExpiryMargin is how long before ExpiresAt a credential stops being
// treated as valid.
const DefaultExpiryMargin = 5 * time.Minute

// Credential is the persisted bearer credential for the provider API.
// An empty RefreshToken means none was issued.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the access token can still be used at now, keeping
// margin in reserve.
func (c Credential) Valid(now time.Time, margin time.Duration) bool {
	if c.AccessToken == "" {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-margin))
}

// HasRefreshToken reports whether a refresh exchange is possible.
func (c Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// AuthState is the coarse lifecycle state of the stored credential.
type AuthState string

const (
	AuthStateUnauthenticated AuthState = "unauthenticated"
	AuthStateAuthenticated   AuthState = "authenticated"
	AuthStateExpiring        AuthState = "expiring"
)
