package material_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/infrastructure/memory"
)

func TestService_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := material.NewService(store.Materials(), store.TxManager())
	org := id.New()

	m := material.NewMaterial(org, "flour").WithPack("g", types.NewQuantity(500))
	m.AvailableQuantities = types.NewQuantity(99)
	require.NoError(t, svc.Create(ctx, m))

	got, err := svc.Get(ctx, org, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "flour", got.Name)
	assert.True(t, got.AvailableQuantities.IsZero())

	_, err = svc.Get(ctx, id.New(), m.ID)
	assert.True(t, apperror.IsMaterialNotFound(err))

	_, err = svc.Get(ctx, org, id.New())
	assert.True(t, apperror.IsMaterialNotFound(err))
}

func TestService_CreateInvalid(t *testing.T) {
	store := memory.NewStore()
	svc := material.NewService(store.Materials(), store.TxManager())

	err := svc.Create(context.Background(), material.NewMaterial(id.New(), " "))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	ids, err := store.Materials().ListIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
