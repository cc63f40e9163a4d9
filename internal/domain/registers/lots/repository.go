package lots

import (
	"context"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
)

// Repository is the lot store.
// Every mutation must run inside a transaction that holds the material lock
// (material.Repository.GetForUpdate).
type Repository interface {
	// ListActive returns lots with Remaining > 0 in unspecified order.
	// An unknown material yields an empty list.
	ListActive(ctx context.Context, materialID id.ID) ([]*Lot, error)

	// ListAll returns every lot of the material, exhausted ones included.
	ListAll(ctx context.Context, materialID id.ID) ([]*Lot, error)

	// Decrement subtracts by from Remaining of one lot. It returns
	// CONCURRENT_MODIFICATION if the lot is missing or would go negative.
	Decrement(ctx context.Context, lotID id.ID, by types.Quantity) error

	// DeleteExhausted removes lots of the material with Remaining <= 0 and
	// returns how many were removed.
	DeleteExhausted(ctx context.Context, materialID id.ID) (int64, error)

	// Create inserts a new lot.
	Create(ctx context.Context, lot *Lot) error
}

// BulkCreator loads many lots at once, for imports. Material aggregates are
// not touched; the caller resyncs the affected materials afterwards.
type BulkCreator interface {
	CreateMany(ctx context.Context, list []*Lot) (int64, error)
}
