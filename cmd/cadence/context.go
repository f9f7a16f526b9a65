package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ewilliams-labs/cadence/internal/adapters/auth"
	"github.com/ewilliams-labs/cadence/internal/adapters/catalog"
	"github.com/ewilliams-labs/cadence/internal/adapters/memory"
	"github.com/ewilliams-labs/cadence/internal/adapters/postgres"
	"github.com/ewilliams-labs/cadence/internal/adapters/spotify"
	"github.com/ewilliams-labs/cadence/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cadence/internal/config"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/logging"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	mu      sync.Mutex
	logger  *zap.Logger
	store   ports.CredentialStore
	runs    ports.RecommendationRepository
	closers []func() error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	c.logger = logger
	c.closers = append(c.closers, func() error {
		_ = logger.Sync()
		return nil
	})
	return logger, nil
}

// ensureStore opens the configured credential store. The returned
// repository is nil for the memory driver.
func (c *commandContext) ensureStore(ctx context.Context) (ports.CredentialStore, ports.RecommendationRepository, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		return c.store, c.runs, nil
	}

	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		adapter, err := sqlite.NewAdapter(cfg.Storage.Path, sqlite.WithVerifierTTL(cfg.Storage.VerifierTTL()))
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		c.store, c.runs = adapter, adapter
	case config.DriverPostgres:
		store, err := postgres.NewStore(ctx, cfg.Storage.DatabaseURL, cfg.Storage.VerifierTTL())
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		c.store, c.runs = store, store
	case config.DriverMemory:
		c.store = memory.NewStore(cfg.Storage.VerifierTTL())
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	c.closers = append(c.closers, c.store.Close)
	return c.store, c.runs, nil
}

// stack is the wired application graph shared by the commands.
type stack struct {
	cfg         *config.Config
	logger      *zap.Logger
	flow        *auth.Flow
	session     *auth.Session
	client      *spotify.Client
	recommender *services.Recommender
	catalog     *catalog.Source
	runs        ports.RecommendationRepository
	defaults    services.Options
}

type stackOptions struct {
	registerer prometheus.Registerer
	recorder   services.RunRecorder
}

func (c *commandContext) build(ctx context.Context, so stackOptions) (*stack, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	store, runs, err := c.ensureStore(ctx)
	if err != nil {
		return nil, err
	}
	defaults, err := cfg.Recommend.Options()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Spotify.Timeout()}
	flow := auth.NewFlow(auth.Config{
		ClientID:       cfg.Spotify.ClientID,
		RedirectURL:    cfg.Spotify.RedirectURI,
		Scopes:         cfg.Spotify.Scopes,
		AuthURL:        cfg.Spotify.AuthURL,
		TokenURL:       cfg.Spotify.TokenURL,
		VerifierLength: cfg.Spotify.VerifierLength,
	}, store, store,
		auth.WithHTTPClient(httpClient),
		auth.WithLogger(logger.Named("auth")),
	)
	session := auth.NewSession(flow, store,
		auth.WithLogger(logger.Named("session")),
		auth.WithExpiryMargin(cfg.Spotify.ExpiryMargin()),
	)

	clientOpts := []spotify.Option{
		spotify.WithRetryPolicy(retryPolicy(cfg.Spotify)),
		spotify.WithBatchSize(cfg.Spotify.BatchSize),
		spotify.WithLogger(logger.Named("spotify")),
	}
	if cfg.Spotify.RequestsPerSecond > 0 {
		burst := max(1, int(cfg.Spotify.RequestsPerSecond))
		clientOpts = append(clientOpts, spotify.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Spotify.RequestsPerSecond), burst)))
	}
	if so.registerer != nil {
		clientOpts = append(clientOpts, spotify.WithMetrics(spotify.NewMetrics(so.registerer)))
	}
	client := spotify.NewClient(httpClient, cfg.Spotify.APIBaseURL, session, clientOpts...)

	svcOpts := []services.Option{services.WithLogger(logger.Named("recommender"))}
	if runs != nil {
		svcOpts = append(svcOpts, services.WithRunRepository(runs))
	}
	if so.recorder != nil {
		svcOpts = append(svcOpts, services.WithRecorder(so.recorder))
	}

	return &stack{
		cfg:         cfg,
		logger:      logger,
		flow:        flow,
		session:     session,
		client:      client,
		recommender: services.NewRecommender(client, svcOpts...),
		catalog:     catalog.NewSource(cfg.Catalog.Source, catalog.WithLogger(logger.Named("catalog"))),
		runs:        runs,
		defaults:    defaults,
	}, nil
}

// Close releases everything opened by the context, newest first.
func (c *commandContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	c.store, c.runs, c.logger = nil, nil, nil
	return errors.Join(errs...)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// retryPolicy maps the configured budget; a configured 0 turns retries off
// rather than falling back to the client default.
func retryPolicy(s config.Spotify) spotify.RetryPolicy {
	maxRetries := s.MaxRetries
	if maxRetries == 0 {
		maxRetries = spotify.NoRetries
	}
	return spotify.RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  s.RetryBackoff(),
		MaxDelay:   s.MaxBackoff(),
	}
}
