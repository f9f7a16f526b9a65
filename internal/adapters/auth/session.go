package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// Refresher performs a refresh exchange. *Flow implements it.
type Refresher interface {
	Refresh(ctx context.Context, cred domain.Credential) (domain.Credential, error)
}

// Session hands out the stored credential and serializes refreshes so that
// concurrent callers share one exchange.
type Session struct {
	refresher Refresher
	store     ports.TokenStore
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
	margin    time.Duration
}

var _ ports.TokenProvider = (*Session)(nil)

// NewSession constructs a Session.
func NewSession(refresher Refresher, store ports.TokenStore, opts ...Option) *Session {
	o := buildOptions(opts)
	return &Session{
		refresher: refresher,
		store:     store,
		logger:    o.logger,
		now:       o.now,
		margin:    o.margin,
	}
}

// Token returns a usable credential, refreshing it first when it is inside
// the expiry margin.
func (s *Session) Token(ctx context.Context) (domain.Credential, error) {
	cred, ok, err := s.store.Get(ctx)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("auth: read credential: %w", err)
	}
	if !ok || cred.AccessToken == "" {
		return domain.Credential{}, domain.ErrNotAuthenticated
	}
	if cred.Valid(s.now(), s.margin) {
		return cred, nil
	}

	next, err := s.Refresh(ctx, cred)
	if err != nil {
		// a transient failure inside the margin still leaves a working token
		if !terminal(err) && cred.Valid(s.now(), 0) {
			s.logger.Warn("proactive refresh failed, using current token", zap.Error(err))
			return cred, nil
		}
		return domain.Credential{}, err
	}
	return next, nil
}

// Refresh replaces stale with a new credential. At most one exchange is in
// flight; callers arriving meanwhile receive its result. A credential that
// already differs from stale is returned without another exchange.
func (s *Session) Refresh(ctx context.Context, stale domain.Credential) (domain.Credential, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return domain.Credential{}, fmt.Errorf("auth: refresh canceled: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return domain.Credential{}, res.Err
		}
		if res.Shared {
			s.logger.Debug("joined in-flight refresh")
		}
		return res.Val.(domain.Credential), nil
	}
}

func (s *Session) refresh(ctx context.Context, stale domain.Credential) (domain.Credential, error) {
	current, ok, err := s.store.Get(ctx)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("auth: read credential: %w", err)
	}
	if !ok {
		return domain.Credential{}, domain.ErrNotAuthenticated
	}

	if current.AccessToken != stale.AccessToken && current.Valid(s.now(), s.margin) {
		return current, nil
	}

	next, err := s.refresher.Refresh(ctx, current)
	if err != nil {
		if terminal(err) {
			s.logger.Warn("refresh rejected, clearing credential", zap.Error(err))
			if clearErr := s.store.Clear(ctx); clearErr != nil {
				return domain.Credential{}, errors.Join(err, fmt.Errorf("auth: clear credential: %w", clearErr))
			}
		}
		return domain.Credential{}, err
	}

	if err := s.store.Set(ctx, next); err != nil {
		return domain.Credential{}, fmt.Errorf("auth: store credential: %w", err)
	}
	return next, nil
}

// Clear forgets the stored credential.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("auth: clear credential: %w", err)
	}
	return nil
}

// State reports the coarse lifecycle state of the stored credential.
func (s *Session) State(ctx context.Context) (domain.AuthState, domain.Credential, error) {
	cred, ok, err := s.store.Get(ctx)
	if err != nil {
		return "", domain.Credential{}, fmt.Errorf("auth: read credential: %w", err)
	}
	now := s.now()
	switch {
	case !ok || cred.AccessToken == "":
		return domain.AuthStateUnauthenticated, domain.Credential{}, nil
	case cred.Valid(now, s.margin):
		return domain.AuthStateAuthenticated, cred, nil
	case cred.HasRefreshToken() || cred.Valid(now, 0):
		return domain.AuthStateExpiring, cred, nil
	default:
		return domain.AuthStateUnauthenticated, cred, nil
	}
}

func terminal(err error) bool {
	return errors.Is(err, domain.ErrAuthExchange) || errors.Is(err, domain.ErrNoRefreshToken)
}
