package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound             = errors.New("domain: not found")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrNoRefreshToken       = errors.New("no refresh token available")
	ErrAuthExchange         = errors.New("auth exchange failed")
	ErrAuthentication       = errors.New("authentication failed")
	ErrRateLimitExceeded    = errors.New("rate limit exceeded")
	ErrAPIRequest           = errors.New("api request failed")
	ErrEmptyProfile         = errors.New("empty profile")
	ErrInsufficientSeedData = errors.New("insufficient seed data")
	ErrInvalidWeights       = errors.New("invalid weights")
	ErrPartialResult        = errors.New("partial result")
)

// AuthExchangeError reports a failed code or refresh exchange at the token
// endpoint. Status is zero when no HTTP response was received.
type AuthExchangeError struct {
	GrantType   string
	Status      int
	Code        string
	Description string
	Err         error
}

func (e *AuthExchangeError) Error() string {
	msg := fmt.Sprintf("auth exchange (%s) failed", e.GrantType)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(": %s", e.Code)
	}
	if e.Description != "" {
		msg += fmt.Sprintf(" (%s)", e.Description)
	}
	if e.Err != nil && e.Status == 0 && e.Code == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthExchangeError) Is(target error) bool { return target == ErrAuthExchange }

func (e *AuthExchangeError) Unwrap() error { return e.Err }

// AuthenticationError means the provider kept rejecting the bearer token
// after one refresh. The stored credential has been cleared.
type AuthenticationError struct {
	Status int
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("authentication failed (status %d)", e.Status)
}

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RateLimitExceededError is returned once the 429 backoff budget is spent.
type RateLimitExceededError struct {
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded after %d attempts (retry after %s)", e.Attempts, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded after %d attempts", e.Attempts)
}

func (e *RateLimitExceededError) Is(target error) bool { return target == ErrRateLimitExceeded }

// APIRequestError carries any other non-2xx provider response.
type APIRequestError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIRequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

func (e *APIRequestError) Is(target error) bool { return target == ErrAPIRequest }

// InsufficientSeedDataError means no seed tracks or no seed features were
// available to build a taste profile. Err holds the feature fetch failure
// when that is why no features arrived.
type InsufficientSeedDataError struct {
	Seeds    int
	Features int
	Err      error
}

func (e *InsufficientSeedDataError) Error() string {
	msg := fmt.Sprintf("insufficient seed data: %d seed tracks, %d feature sets", e.Seeds, e.Features)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InsufficientSeedDataError) Is(target error) bool { return target == ErrInsufficientSeedData }

func (e *InsufficientSeedDataError) Unwrap() error { return e.Err }

// PartialResultError reports that some batches of a fan-out failed while
// others succeeded. The successful part of the result is still returned.
type PartialResultError struct {
	Failed int
	Total  int
	Err    error
}

func (e *PartialResultError) Error() string {
	return fmt.Sprintf("%d of %d batches failed: %v", e.Failed, e.Total, e.Err)
}

func (e *PartialResultError) Is(target error) bool { return target == ErrPartialResult }

func (e *PartialResultError) Unwrap() error { return e.Err }
