// Package worker persists recommendation runs in the background.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

const defaultSaveTimeout = 10 * time.Second

// Pool manages background workers that save runs.
type Pool struct {
	repo    ports.RecommendationRepository
	jobs    chan domain.RecommendationSet
	wg      sync.WaitGroup
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a pool whose queue holds at most queueSize runs.
func NewPool(repo ports.RecommendationRepository, queueSize int, logger *zap.Logger) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		repo:    repo,
		jobs:    make(chan domain.RecommendationSet, queueSize),
		logger:  logger,
		timeout: defaultSaveTimeout,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for set := range p.jobs {
				p.process(set)
			}
		}()
	}
}

// Stop closes the queue and waits for queued runs to be saved.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// Submit queues a run without blocking. It reports false when the queue is
// full or the pool has stopped.
func (p *Pool) Submit(set domain.RecommendationSet) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- set:
		return true
	default:
		p.logger.Warn("worker: dropping run", zap.String("run_id", set.ID))
		return false
	}
}

func (p *Pool) process(set domain.RecommendationSet) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.repo.SaveRun(ctx, set); err != nil {
		p.logger.Warn("worker: failed to save run", zap.String("run_id", set.ID), zap.Error(err))
		return
	}
	p.logger.Debug("worker: run saved",
		zap.String("run_id", set.ID),
		zap.Int("results", len(set.Results)),
	)
}
