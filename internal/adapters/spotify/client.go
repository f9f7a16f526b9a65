package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const (
	// DefaultBaseURL is the Spotify Web API root.
	DefaultBaseURL = "https://api.spotify.com/v1"

	defaultBatchSize = 100
	maxErrorBody     = 64 << 10
)

// Client is an authenticated HTTP client for the Spotify Web API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     ports.TokenProvider
	retry      RetryPolicy
	limiter    *rate.Limiter
	metrics    *Metrics
	logger     *zap.Logger
	batchSize  int
}

// compile-time interface assertion
var _ ports.SpotifyProvider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLimiter paces outgoing requests.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMetrics records request metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithBatchSize sets how many IDs go into one audio features request.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if n > 0 && n <= defaultBatchSize {
			c.batchSize = n
		}
	}
}

// NewClient constructs a new Spotify client that takes bearer credentials
// from tokens.
func NewClient(httpClient *http.Client, baseURL string, tokens ports.TokenProvider, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		retry:      DefaultRetryPolicy(),
		logger:     zap.NewNop(),
		batchSize:  defaultBatchSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.logger = c.logger
	c.retry.onRetry = func(time.Duration) { c.metrics.rateLimited() }
	return c
}

// Request performs an authenticated call and decodes a JSON response into
// out when out is non-nil. A 401 triggers exactly one refresh and retry; a
// second 401 clears the stored credential and returns
// *domain.AuthenticationError. 429 responses are retried per the retry
// policy. Any other non-2xx status returns *domain.APIRequestError.
func (c *Client) Request(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("spotify adapter: encode request: %w", err)
		}
		payload = b
	}

	cred, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("spotify adapter: %w", err)
	}

	resp, err := c.send(ctx, method, path, query, payload, cred.AccessToken)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		c.metrics.refreshed()
		c.logger.Info("access token rejected, refreshing", zap.String("path", path))

		next, err := c.tokens.Refresh(ctx, cred)
		if err != nil {
			if errors.Is(err, domain.ErrAuthExchange) || errors.Is(err, domain.ErrNoRefreshToken) || errors.Is(err, domain.ErrNotAuthenticated) {
				return c.authFailure(ctx, err)
			}
			return fmt.Errorf("spotify adapter: refresh after 401: %w", err)
		}

		resp, err = c.send(ctx, method, path, query, payload, next.AccessToken)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return c.authFailure(ctx, nil)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.APIRequestError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("spotify adapter: decode %s: %w", path, err)
	}
	return nil
}

// send runs one logical request through the retry policy.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) (*http.Response, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return c.retry.Do(ctx, func() (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("spotify adapter: rate limiter: %w", err)
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("spotify adapter: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		// #nosec G107 -- URL constructed from the configured API base URL
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.observeResponse(0, time.Since(start))
			return nil, fmt.Errorf("spotify adapter: %s %s: %w", method, path, err)
		}
		c.metrics.observeResponse(resp.StatusCode, time.Since(start))
		return resp, nil
	})
}

func (c *Client) authFailure(ctx context.Context, cause error) error {
	c.metrics.authFailed()
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Error("failed to clear credential", zap.Error(err))
	}
	c.logger.Warn("authentication failed after refresh, credential cleared", zap.Error(cause))
	return &domain.AuthenticationError{Status: http.StatusUnauthorized, Err: cause}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
}
