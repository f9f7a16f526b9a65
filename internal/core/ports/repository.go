package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// RecommendationRepository persists pipeline runs.
type RecommendationRepository interface {
	GetRun(ctx context.Context, id string) (domain.RecommendationSet, error)
	SaveRun(ctx context.Context, set domain.RecommendationSet) error
}
