package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// CatalogSource yields the candidate pool.
type CatalogSource interface {
	Entries(ctx context.Context) ([]domain.CatalogEntry, error)
}
