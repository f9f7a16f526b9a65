package spotify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
	defaultMaxDelay   = 30 * time.Second
)

// NoRetries disables retrying; the first 429 becomes a RateLimitExceededError.
const NoRetries = -1

// RetryPolicy bounds how long a rate-limited request is retried. Only 429
// responses are retried; the delay is the server's Retry-After when present,
// otherwise BaseDelay doubled per attempt, and never more than MaxDelay.
// Zero fields take the package defaults; a negative MaxRetries disables
// retries.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration

	logger  *zap.Logger
	onRetry func(delay time.Duration)
	sleep   func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries three times starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: defaultMaxRetries, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// Do calls fn until it returns something other than a 429 or the retry
// budget is spent. Transport errors are returned immediately. Every
// discarded 429 response body is closed.
func (p RetryPolicy) Do(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	maxRetries := p.MaxRetries
	switch {
	case maxRetries < 0:
		maxRetries = 0
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	logger := p.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("spotify adapter: request canceled: %w", err)
		}

		resp, err := fn()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		retryAfter := parseRetryAfter(resp)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		if attempt >= maxRetries {
			return nil, &domain.RateLimitExceededError{Attempts: attempt + 1, RetryAfter: retryAfter}
		}

		delay := p.delay(attempt, retryAfter)
		logger.Warn("rate limited, backing off",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("delay", delay),
		)
		if p.onRetry != nil {
			p.onRetry(delay)
		}

		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func (p RetryPolicy) delay(attempt int, retryAfter time.Duration) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	ceiling := p.MaxDelay
	if ceiling <= 0 {
		ceiling = defaultMaxDelay
	}

	d := retryAfter
	if d <= 0 {
		d = base * time.Duration(1<<attempt)
	}
	return min(d, ceiling)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if when, err := http.ParseTime(retryAfter); err == nil {
		until := time.Until(when)
		if until > 0 {
			return until
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("spotify adapter: request canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
