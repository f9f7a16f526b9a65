package spotify

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// GetAudioFeatures fetches features for trackIDs in concurrent batches.
// A failed batch does not cancel the others: the features that did arrive
// are returned together with a *domain.PartialResultError. When every batch
// fails the result is nil and the error wraps all batch errors.
func (c *Client) GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]domain.AudioFeatures, error) {
	result := make(map[string]domain.AudioFeatures, len(trackIDs))
	chunks := chunk(dedupeIDs(trackIDs), c.batchSize)
	if len(chunks) == 0 {
		return result, nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		errs = make([]error, len(chunks))
	)
	for i, ids := range chunks {
		wg.Add(1)
		go func(i int, ids []string) {
			defer wg.Done()
			features, err := c.getAudioFeaturesBatch(ctx, ids)
			c.metrics.featureBatch(err == nil)
			if err != nil {
				errs[i] = err
				c.logger.Warn("audio feature batch failed",
					zap.Int("batch", i),
					zap.Int("size", len(ids)),
					zap.Error(err),
				)
				return
			}
			mu.Lock()
			for id, f := range features {
				result[id] = f
			}
			mu.Unlock()
		}(i, ids)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == 0 {
		return result, nil
	}

	joined := errors.Join(errs...)
	if failed == len(chunks) {
		return nil, joined
	}
	return result, &domain.PartialResultError{Failed: failed, Total: len(chunks), Err: joined}
}

// getAudioFeaturesBatch fetches audio features for at most batchSize tracks
// in a single request.
func (c *Client) getAudioFeaturesBatch(ctx context.Context, ids []string) (map[string]domain.AudioFeatures, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	var body audioFeaturesResponse
	if err := c.Request(ctx, http.MethodGet, "/audio-features", query, nil, &body); err != nil {
		return nil, err
	}

	out := make(map[string]domain.AudioFeatures, len(body.AudioFeatures))
	for _, f := range body.AudioFeatures {
		// Spotify returns null for tracks without an analysis
		if f == nil || f.ID == "" {
			continue
		}
		out[f.ID] = mapFeaturesToDomain(*f)
	}
	return out, nil
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = defaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
