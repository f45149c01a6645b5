package ports

import (
	"context"

	"github.com/navarlu/Historian/internal/domain"
)

// CatalogProvider resolves the currently configured sources. The sampling
// loops call it on every cycle, so the backing document may change at any
// time without restarting a loop.
type CatalogProvider interface {
	Selection(ctx context.Context) ([]domain.Tag, error)
	LoopAssignments(ctx context.Context) ([]domain.LoopAssignment, error)
}

// CatalogStore extends CatalogProvider with writes; the control surface uses
// it, the sampling loops never do.
type CatalogStore interface {
	CatalogProvider
	SaveSelection(ctx context.Context, tags []domain.Tag) error
	SaveLoopAssignments(ctx context.Context, loops []domain.LoopAssignment) error
}
