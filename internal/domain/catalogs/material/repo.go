package material

import (
	"context"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
)

// Repository defines persistence for materials.
// GetByID returns apperror MATERIAL_NOT_FOUND when the row is missing.
type Repository interface {
	Create(ctx context.Context, m *Material) error

	GetByID(ctx context.Context, materialID id.ID) (*Material, error)

	// GetForUpdate reads the material and takes its exclusive lock for the
	// rest of the current transaction. This lock serializes every mutation of
	// the material and its lots.
	GetForUpdate(ctx context.Context, materialID id.ID) (*Material, error)

	// UpdateAggregates writes the derived availableQuantities and stock fields.
	UpdateAggregates(ctx context.Context, materialID id.ID, available, stock types.Quantity) error

	// ListIDs returns all material IDs (used by reconciliation).
	ListIDs(ctx context.Context) ([]id.ID, error)
}
