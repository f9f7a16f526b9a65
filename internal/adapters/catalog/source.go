package catalog

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const reloadDebounce = 250 * time.Millisecond

var _ ports.CatalogSource = (*Source)(nil)

// Source serves catalog entries from a local CSV file or an http(s) URL.
// Entries are loaded on first use and cached until Reload.
type Source struct {
	location string
	http     *resty.Client
	logger   *zap.Logger

	mu       sync.RWMutex
	entries  []domain.CatalogEntry
	loaded   bool
	loadedAt time.Time
}

type Option func(*Source)

// WithLogger sets the logger used for reload events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHTTPClient replaces the resty client used for remote catalogs.
func WithHTTPClient(c *resty.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.http = c
		}
	}
}

func NewSource(location string, opts ...Option) *Source {
	s := &Source{
		location: location,
		http:     resty.New().SetTimeout(60 * time.Second),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Remote reports whether the catalog is fetched over HTTP.
func (s *Source) Remote() bool {
	return isRemote(s.location)
}

// Entries returns the cached catalog, loading it on first call.
func (s *Source) Entries(ctx context.Context) ([]domain.CatalogEntry, error) {
	s.mu.RLock()
	if s.loaded {
		entries := s.entries
		s.mu.RUnlock()
		return entries, nil
	}
	s.mu.RUnlock()

	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries, nil
}

// Rows streams the catalog straight from its location, bypassing the cache.
func (s *Source) Rows(ctx context.Context) iter.Seq2[domain.CatalogEntry, error] {
	return Entries(ctx, s.open)
}

// Reload reads the catalog again and swaps the cache. A failed reload keeps
// the previous entries.
func (s *Source) Reload(ctx context.Context) error {
	entries, err := Collect(s.Rows(ctx))
	if err != nil {
		return fmt.Errorf("catalog: load %s: %w", s.location, err)
	}

	s.mu.Lock()
	s.entries = entries
	s.loaded = true
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("catalog loaded",
		zap.String("source", s.location),
		zap.Int("entries", len(entries)),
	)
	return nil
}

// LoadedAt reports when the cache was last filled.
func (s *Source) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Watch reloads a local catalog whenever the file is written or replaced.
// It blocks until ctx is done. Remote catalogs are not watched.
func (s *Source) Watch(ctx context.Context) error {
	if s.Remote() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: create watcher: %w", err)
	}
	defer watcher.Close()

	// watch the directory so editors that replace the file are still seen
	target := filepath.Clean(s.location)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", target, err)
	}
	s.logger.Info("watching catalog for changes", zap.String("path", target))

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			reload = timer.C
		case <-reload:
			reload = nil
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("catalog reload failed", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("catalog watcher error", zap.Error(err))
		}
	}
}

func (s *Source) open(ctx context.Context) (io.ReadCloser, error) {
	if !isRemote(s.location) {
		return os.Open(s.location)
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(s.location)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", s.location, err)
	}
	body := resp.RawBody()
	if resp.StatusCode() != http.StatusOK {
		body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", s.location, resp.StatusCode())
	}
	return body, nil
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
