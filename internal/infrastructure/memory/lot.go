package memory

import (
	"context"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/registers/lots"
)

// Compile-time checks.
var (
	_ lots.Repository  = (*LotRepo)(nil)
	_ lots.BulkCreator = (*LotRepo)(nil)
)

// LotRepo implements lots.Repository.
type LotRepo struct {
	store *Store
}

// ListActive returns copies of lots with Remaining > 0.
func (r *LotRepo) ListActive(ctx context.Context, materialID id.ID) ([]*lots.Lot, error) {
	return r.list(ctx, materialID, true)
}

// ListAll returns copies of every lot of the material.
func (r *LotRepo) ListAll(ctx context.Context, materialID id.ID) ([]*lots.Lot, error) {
	return r.list(ctx, materialID, false)
}

func (r *LotRepo) list(ctx context.Context, materialID id.ID, activeOnly bool) ([]*lots.Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*lots.Lot
	for _, l := range r.store.lots {
		if l.MaterialID != materialID {
			continue
		}
		if activeOnly && !l.IsActive() {
			continue
		}
		out = append(out, cloneLot(l))
	}
	return out, nil
}

// Decrement subtracts by from the lot's remaining quantity.
func (r *LotRepo) Decrement(ctx context.Context, lotID id.ID, by types.Quantity) error {
	if !by.IsPositive() {
		return apperror.NewInvalidQuantity(by.String())
	}
	return r.store.mutate(ctx, func() (func(), error) {
		l, ok := r.store.lots[lotID]
		if !ok || l.Remaining < by {
			return nil, apperror.NewConcurrentModification("lot", lotID)
		}
		l.Remaining -= by
		return func() { l.Remaining += by }, nil
	})
}

// DeleteExhausted removes the material's lots with Remaining <= 0.
func (r *LotRepo) DeleteExhausted(ctx context.Context, materialID id.ID) (int64, error) {
	var deleted int64
	err := r.store.mutate(ctx, func() (func(), error) {
		var removed []*lots.Lot
		for lotID, l := range r.store.lots {
			if l.MaterialID == materialID && !l.IsActive() {
				removed = append(removed, l)
				delete(r.store.lots, lotID)
			}
		}
		deleted = int64(len(removed))
		return func() {
			for _, l := range removed {
				r.store.lots[l.ID] = l
			}
		}, nil
	})
	return deleted, err
}

// Create inserts a lot.
func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	return r.store.mutate(ctx, func() (func(), error) {
		if _, ok := r.store.materials[lot.MaterialID]; !ok {
			return nil, apperror.NewMaterialNotFound(lot.MaterialID)
		}
		if _, exists := r.store.lots[lot.ID]; exists {
			return nil, apperror.NewValidation("lot already exists").WithDetail("id", lot.ID)
		}
		r.store.lots[lot.ID] = cloneLot(lot)
		return func() { delete(r.store.lots, lot.ID) }, nil
	})
}

// CreateMany inserts lots one by one inside the current transaction.
func (r *LotRepo) CreateMany(ctx context.Context, list []*lots.Lot) (int64, error) {
	for _, l := range list {
		if err := r.Create(ctx, l); err != nil {
			return 0, err
		}
	}
	return int64(len(list)), nil
}
