package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// GetRun loads a stored run. Results are kept as one JSONB document in rank order.
func (s *Store) GetRun(ctx context.Context, id string) (domain.RecommendationSet, error) {
	var (
		set     domain.RecommendationSet
		results []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, generated_at, seed_count, feature_count, strategy, fallback, results
		FROM recommendation_runs WHERE id = $1
	`, id).Scan(&set.ID, &set.GeneratedAt, &set.SeedCount, &set.FeatureCount, &set.Strategy, &set.Fallback, &results)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RecommendationSet{}, domain.ErrNotFound
		}
		return domain.RecommendationSet{}, fmt.Errorf("postgres: load run: %w", err)
	}
	if err := json.Unmarshal(results, &set.Results); err != nil {
		return domain.RecommendationSet{}, fmt.Errorf("postgres: decode run results: %w", err)
	}
	if set.Results == nil {
		set.Results = []domain.Recommendation{}
	}
	set.GeneratedAt = set.GeneratedAt.UTC()
	return set, nil
}

// SaveRun upserts a run.
func (s *Store) SaveRun(ctx context.Context, set domain.RecommendationSet) error {
	if set.ID == "" {
		return fmt.Errorf("postgres: run id is required")
	}
	results := set.Results
	if results == nil {
		results = []domain.Recommendation{}
	}
	b, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("postgres: encode run results: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO recommendation_runs (id, generated_at, seed_count, feature_count, strategy, fallback, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			seed_count = EXCLUDED.seed_count,
			feature_count = EXCLUDED.feature_count,
			strategy = EXCLUDED.strategy,
			fallback = EXCLUDED.fallback,
			results = EXCLUDED.results
	`, set.ID, set.GeneratedAt, set.SeedCount, set.FeatureCount, set.Strategy, set.Fallback, b)
	if err != nil {
		return fmt.Errorf("postgres: save run %s: %w", set.ID, err)
	}
	return nil
}
