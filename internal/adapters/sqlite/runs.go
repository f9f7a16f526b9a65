package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

const artistSeparator = ";"

// GetRun loads a stored recommendation run with its results in rank order.
func (a *Adapter) GetRun(ctx context.Context, id string) (domain.RecommendationSet, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, generated_at, seed_count, feature_count, IFNULL(strategy, ''), fallback
		FROM recommendation_runs WHERE id = ?
	`, id)

	var set domain.RecommendationSet
	var generatedAt string
	if err := row.Scan(&set.ID, &generatedAt, &set.SeedCount, &set.FeatureCount, &set.Strategy, &set.Fallback); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RecommendationSet{}, domain.ErrNotFound
		}
		return domain.RecommendationSet{}, fmt.Errorf("sqlite: load run: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, generatedAt)
	if err != nil {
		return domain.RecommendationSet{}, fmt.Errorf("sqlite: parse run timestamp: %w", err)
	}
	set.GeneratedAt = ts
	set.Results = []domain.Recommendation{}

	rows, err := a.db.QueryContext(ctx, `
		SELECT IFNULL(track_id, ''), IFNULL(track_name, ''), IFNULL(artists, ''),
			IFNULL(album_name, ''), IFNULL(genre, ''), IFNULL(popularity, 0),
			IFNULL(similarity, 0), IFNULL(combined_score, 0), IFNULL(features, '')
		FROM recommendation_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return domain.RecommendationSet{}, fmt.Errorf("sqlite: load run results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.Recommendation
		var artists, features string
		if err := rows.Scan(
			&rec.Entry.ID,
			&rec.Entry.TrackName,
			&artists,
			&rec.Entry.AlbumName,
			&rec.Entry.Genre,
			&rec.Entry.Popularity,
			&rec.Similarity,
			&rec.CombinedScore,
			&features,
		); err != nil {
			return domain.RecommendationSet{}, fmt.Errorf("sqlite: scan run result: %w", err)
		}
		if artists != "" {
			rec.Entry.Artists = strings.Split(artists, artistSeparator)
		}
		if features != "" {
			if err := json.Unmarshal([]byte(features), &rec.Entry.Features); err != nil {
				return domain.RecommendationSet{}, fmt.Errorf("sqlite: decode features: %w", err)
			}
		}
		set.Results = append(set.Results, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.RecommendationSet{}, fmt.Errorf("sqlite: iterate run results: %w", err)
	}

	return set, nil
}

// SaveRun upserts a run and replaces its results.
func (a *Adapter) SaveRun(ctx context.Context, set domain.RecommendationSet) error {
	if set.ID == "" {
		return errors.New("sqlite: run id is required")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}
	defer tx.Rollback()

	queryRun := `
		INSERT INTO recommendation_runs (id, generated_at, seed_count, feature_count, strategy, fallback)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			generated_at=excluded.generated_at,
			seed_count=excluded.seed_count,
			feature_count=excluded.feature_count,
			strategy=excluded.strategy,
			fallback=excluded.fallback;
	`
	if _, err := tx.ExecContext(ctx, queryRun,
		set.ID,
		set.GeneratedAt.UTC().Format(time.RFC3339Nano),
		set.SeedCount,
		set.FeatureCount,
		set.Strategy,
		set.Fallback,
	); err != nil {
		return fmt.Errorf("sqlite: save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM recommendation_results WHERE run_id = ?", set.ID); err != nil {
		return fmt.Errorf("sqlite: clear old results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO recommendation_results (
			run_id, position, track_id, track_name, artists, album_name, genre,
			popularity, similarity, combined_score, features
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range set.Results {
		features, err := json.Marshal(rec.Entry.Features)
		if err != nil {
			return fmt.Errorf("sqlite: encode features: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			set.ID,
			i,
			rec.Entry.ID,
			rec.Entry.TrackName,
			strings.Join(rec.Entry.Artists, artistSeparator),
			rec.Entry.AlbumName,
			rec.Entry.Genre,
			rec.Entry.Popularity,
			rec.Similarity,
			rec.CombinedScore,
			string(features),
		); err != nil {
			return fmt.Errorf("sqlite: save result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}
