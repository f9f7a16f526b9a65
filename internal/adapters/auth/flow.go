// Package auth implements the OAuth 2.0 authorization code flow with PKCE
// against the provider's accounts service and keeps the resulting bearer
// credential fresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	grantAuthorizationCode = "authorization_code"
	grantRefreshToken      = "refresh_token"

	// used when the token endpoint omits expires_in
	defaultTokenLifetime = time.Hour
)

// Config describes the public OAuth client. There is no client secret: the
// exchange relies on the PKCE verifier alone.
type Config struct {
	ClientID       string
	RedirectURL    string
	Scopes         []string
	AuthURL        string
	TokenURL       string
	VerifierLength int
}

// AuthorizationRequest is where the user agent must be sent to grant access.
type AuthorizationRequest struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// Flow performs the authorization and refresh exchanges.
type Flow struct {
	oauth          *oauth2.Config
	tokens         ports.TokenStore
	verifiers      ports.VerifierStore
	httpClient     *http.Client
	logger         *zap.Logger
	now            func() time.Time
	verifierLength int
}

// Option configures a Flow or a Session.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
	margin     time.Duration
}

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithExpiryMargin sets how early a Session refreshes ahead of expiry.
func WithExpiryMargin(d time.Duration) Option {
	return func(o *options) { o.margin = d }
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
		now:        time.Now,
		margin:     domain.DefaultExpiryMargin,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewFlow constructs a Flow backed by the given stores.
func NewFlow(cfg Config, tokens ports.TokenStore, verifiers ports.VerifierStore, opts ...Option) *Flow {
	o := buildOptions(opts)

	length := cfg.VerifierLength
	if length == 0 {
		length = DefaultVerifierLength
	}

	return &Flow{
		oauth: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURL,
			Scopes:      cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokens:         tokens,
		verifiers:      verifiers,
		httpClient:     o.httpClient,
		logger:         o.logger,
		now:            o.now,
		verifierLength: length,
	}
}

// BeginAuthorization starts a new attempt: it stores a fresh verifier under
// a random state and returns the authorization URL carrying its challenge.
func (f *Flow) BeginAuthorization(ctx context.Context) (AuthorizationRequest, error) {
	verifier, err := GenerateVerifier(f.verifierLength)
	if err != nil {
		return AuthorizationRequest{}, err
	}

	state := uuid.NewString()
	if err := f.verifiers.SaveVerifier(ctx, state, verifier); err != nil {
		return AuthorizationRequest{}, fmt.Errorf("auth: save verifier: %w", err)
	}

	authURL := f.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	f.logger.Debug("authorization started", zap.String("state", state))
	return AuthorizationRequest{URL: authURL, State: state}, nil
}

// CompleteAuthorization exchanges the authorization code for a credential,
// persists it and consumes the verifier stored for state. The verifier is
// also consumed when the provider rejects the exchange, but kept when the
// token endpoint could not be reached.
func (f *Flow) CompleteAuthorization(ctx context.Context, state, code string) (domain.Credential, error) {
	verifier, err := f.verifiers.LoadVerifier(ctx, state)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Credential{}, &domain.AuthExchangeError{
				GrantType:   grantAuthorizationCode,
				Description: "unknown or expired authorization state",
				Err:         err,
			}
		}
		return domain.Credential{}, fmt.Errorf("auth: load verifier: %w", err)
	}

	tok, err := f.oauth.Exchange(f.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		err = exchangeError(grantAuthorizationCode, err)
		// a rejected grant burns the verifier; a transport failure may be retried
		if errors.Is(err, domain.ErrAuthExchange) {
			f.deleteVerifier(ctx, state)
		}
		return domain.Credential{}, err
	}

	cred := f.credentialFrom(tok, "")
	if err := f.tokens.Set(ctx, cred); err != nil {
		return domain.Credential{}, fmt.Errorf("auth: store credential: %w", err)
	}
	f.deleteVerifier(ctx, state)

	f.logger.Info("authorization completed", zap.Time("expires_at", cred.ExpiresAt))
	return cred, nil
}

func (f *Flow) deleteVerifier(ctx context.Context, state string) {
	if err := f.verifiers.DeleteVerifier(ctx, state); err != nil {
		f.logger.Warn("failed to delete used verifier", zap.String("state", state), zap.Error(err))
	}
}

// Refresh exchanges cred's refresh token for a new credential. The previous
// refresh token is kept when the provider does not rotate it. The result is
// not persisted; Session does that.
func (f *Flow) Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error) {
	if !cred.HasRefreshToken() {
		return domain.Credential{}, domain.ErrNoRefreshToken
	}

	src := f.oauth.TokenSource(f.clientContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return domain.Credential{}, exchangeError(grantRefreshToken, err)
	}

	next := f.credentialFrom(tok, cred.RefreshToken)
	f.logger.Debug("credential refreshed",
		zap.Time("expires_at", next.ExpiresAt),
		zap.Bool("rotated", next.RefreshToken != cred.RefreshToken),
	)
	return next, nil
}

func (f *Flow) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
}

func (f *Flow) credentialFrom(tok *oauth2.Token, previousRefresh string) domain.Credential {
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		f.logger.Warn("token response has no expires_in, assuming default lifetime",
			zap.Duration("lifetime", defaultTokenLifetime))
		expiresAt = f.now().Add(defaultTokenLifetime)
	}

	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previousRefresh
	}

	return domain.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	}
}

// exchangeError maps a token endpoint failure. Transport failures are
// returned as plain wrapped errors so callers can tell them apart from a
// rejected grant.
func exchangeError(grant string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		out := &domain.AuthExchangeError{
			GrantType:   grant,
			Code:        rErr.ErrorCode,
			Description: rErr.ErrorDescription,
			Err:         err,
		}
		if rErr.Response != nil {
			out.Status = rErr.Response.StatusCode
		}
		if out.Code == "" && out.Description == "" && len(rErr.Body) > 0 {
			out.Description = string(rErr.Body)
		}
		return out
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("auth: %s exchange: %w", grant, err)
	}

	// malformed success payloads, e.g. a 200 without access_token
	return &domain.AuthExchangeError{GrantType: grant, Err: err}
}
