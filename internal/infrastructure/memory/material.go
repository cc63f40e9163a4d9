package memory

import (
	"context"
	"slices"
	"time"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
)

// Compile-time check that MaterialRepo implements material.Repository.
var _ material.Repository = (*MaterialRepo)(nil)

// MaterialRepo implements material.Repository.
type MaterialRepo struct {
	store *Store
}

// Create inserts a material.
func (r *MaterialRepo) Create(ctx context.Context, m *material.Material) error {
	return r.store.mutate(ctx, func() (func(), error) {
		if _, exists := r.store.materials[m.ID]; exists {
			return nil, apperror.NewValidation("material already exists").WithDetail("id", m.ID)
		}
		r.store.materials[m.ID] = cloneMaterial(m)
		return func() { delete(r.store.materials, m.ID) }, nil
	})
}

// GetByID returns a copy of the material. Inside a transaction it also takes
// the material lock, so later reads in that transaction see a stable lot set.
func (r *MaterialRepo) GetByID(ctx context.Context, materialID id.ID) (*material.Material, error) {
	if stateFrom(ctx) != nil {
		return r.GetForUpdate(ctx, materialID)
	}
	return r.get(materialID)
}

// GetForUpdate locks the material for the rest of the transaction.
func (r *MaterialRepo) GetForUpdate(ctx context.Context, materialID id.ID) (*material.Material, error) {
	if _, err := r.get(materialID); err != nil {
		return nil, err
	}
	if err := r.store.lockMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	return r.get(materialID)
}

func (r *MaterialRepo) get(materialID id.ID) (*material.Material, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	m, ok := r.store.materials[materialID]
	if !ok {
		return nil, apperror.NewMaterialNotFound(materialID)
	}
	return cloneMaterial(m), nil
}

// UpdateAggregates writes the derived fields and bumps the version.
func (r *MaterialRepo) UpdateAggregates(ctx context.Context, materialID id.ID, available, stock types.Quantity) error {
	return r.store.mutate(ctx, func() (func(), error) {
		m, ok := r.store.materials[materialID]
		if !ok {
			return nil, apperror.NewMaterialNotFound(materialID)
		}
		prev := *m
		m.AvailableQuantities = available
		m.Stock = stock
		m.Version++
		m.UpdatedAt = time.Now().UTC()
		return func() { *m = prev }, nil
	})
}

// ListIDs returns material IDs in ascending order.
func (r *MaterialRepo) ListIDs(_ context.Context) ([]id.ID, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	ids := make([]id.ID, 0, len(r.store.materials))
	for materialID := range r.store.materials {
		ids = append(ids, materialID)
	}
	slices.SortFunc(ids, id.Compare)
	return ids, nil
}
