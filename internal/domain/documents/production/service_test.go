package production

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/numerator"
	"lotcost/internal/core/tx"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/internal/infrastructure/memory"
)

type fixture struct {
	store   *memory.Store
	engine  *costing.Engine
	service *Service
	org     id.ID
}

func newFixture(t *testing.T, method costing.Method) *fixture {
	t.Helper()
	store := memory.NewStore()
	engine := costing.NewEngine(store.TxManager(), store.Materials(), store.Lots(),
		costing.WithRetryPolicy(tx.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}))
	return &fixture{
		store:   store,
		engine:  engine,
		service: NewService(engine, store.Materials(), costing.Settings{Default: method}, numerator.NewMemoryGenerator()),
		org:     id.New(),
	}
}

func (f *fixture) material(t *testing.T, name string, kind material.Kind, lots ...[2]int64) *material.Material {
	t.Helper()
	ctx := context.Background()

	m := material.NewMaterial(f.org, name)
	m.Kind = kind
	require.NoError(t, f.store.Materials().Create(ctx, m))

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, l := range lots {
		_, err := f.engine.Receive(ctx, costing.ReceiveInput{
			MaterialID: m.ID,
			Quantity:   types.NewQuantity(l[0]),
			CostPrice:  types.NewMoneyFromInt(l[1]),
			ReceivedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	return m
}

func (f *fixture) available(t *testing.T, materialID id.ID) types.Quantity {
	t.Helper()
	m, err := f.store.Materials().GetByID(context.Background(), materialID)
	require.NoError(t, err)
	return m.AvailableQuantities
}

func TestComplete_CreditsFinishedGoodAtComponentCost(t *testing.T) {
	f := newFixture(t, costing.FIFO)
	flour := f.material(t, "flour", material.KindRawMaterial, [2]int64{10, 1}, [2]int64{10, 2})
	salt := f.material(t, "salt", material.KindRawMaterial, [2]int64{5, 4})
	bread := f.material(t, "bread", material.KindFinishedGood)

	order := NewOrder(f.org, bread.ID, types.NewQuantity(3))
	order.AddComponent(flour.ID, types.NewQuantity(4))
	order.AddComponent(salt.ID, types.NewQuantityFromInt64Scaled(5000))

	c, err := f.service.Complete(context.Background(), order)
	require.NoError(t, err)

	// flour: 12 = 10@1 + 2@2 = 14; salt: 1.5@4 = 6
	assert.True(t, types.MustMoney("20").Equal(c.TotalCost), c.TotalCost.String())
	assert.True(t, types.MustMoney("6.666667").Equal(c.UnitCost), c.UnitCost.String())
	require.Len(t, c.Consumptions, 2)

	require.NotNil(t, c.Lot)
	assert.Equal(t, bread.ID, c.Lot.MaterialID)
	assert.Equal(t, types.NewQuantity(3), c.Lot.Quantity)
	assert.Equal(t, order.Number, c.Lot.BatchRef)
	assert.Equal(t, "MO-"+order.Date.Format("2006")+"-00001", order.Number)

	assert.Equal(t, types.NewQuantity(8), f.available(t, flour.ID))
	assert.Equal(t, types.NewQuantityFromInt64Scaled(35000), f.available(t, salt.ID))
	assert.Equal(t, types.NewQuantity(3), f.available(t, bread.ID))
}

func TestComplete_ShortComponentAbortsOrder(t *testing.T) {
	f := newFixture(t, costing.WAC)
	flour := f.material(t, "flour", material.KindRawMaterial, [2]int64{10, 1})
	salt := f.material(t, "salt", material.KindRawMaterial, [2]int64{1, 4})
	bread := f.material(t, "bread", material.KindFinishedGood)

	order := NewOrder(f.org, bread.ID, types.NewQuantity(2))
	order.AddComponent(flour.ID, types.NewQuantity(1))
	order.AddComponent(salt.ID, types.NewQuantity(1))

	_, err := f.service.Complete(context.Background(), order)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, types.NewQuantity(10), f.available(t, flour.ID))
	assert.Equal(t, types.NewQuantity(1), f.available(t, salt.ID))
	assert.True(t, f.available(t, bread.ID).IsZero())

	all, err := f.store.Lots().ListAll(context.Background(), bread.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestComplete_ProductMustBeFinishedGood(t *testing.T) {
	f := newFixture(t, costing.FIFO)
	flour := f.material(t, "flour", material.KindRawMaterial, [2]int64{10, 1})
	dough := f.material(t, "dough", material.KindRawMaterial)

	order := NewOrder(f.org, dough.ID, types.NewQuantity(1))
	order.AddComponent(flour.ID, types.NewQuantity(1))

	_, err := f.service.Complete(context.Background(), order)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Equal(t, types.NewQuantity(10), f.available(t, flour.ID))
}

func TestOrder_Validate(t *testing.T) {
	ctx := context.Background()
	org, product := id.New(), id.New()

	order := NewOrder(org, product, types.NewQuantity(1))
	assert.Error(t, order.Validate(ctx), "no components")

	order.AddComponent(product, types.NewQuantity(1))
	assert.Error(t, order.Validate(ctx), "self component")

	order = NewOrder(org, product, 0)
	order.AddComponent(id.New(), types.NewQuantity(1))
	assert.True(t, apperror.IsInvalidQuantity(order.Validate(ctx)))

	// 0.0001 per unit for half a unit truncates to nothing.
	order = NewOrder(org, product, types.NewQuantityFromInt64Scaled(5000))
	order.AddComponent(id.New(), types.NewQuantityFromInt64Scaled(1))
	assert.True(t, apperror.IsInvalidQuantity(order.Validate(ctx)))

	order = NewOrder(org, product, types.NewQuantityFromInt64Scaled(5000))
	order.AddComponent(id.New(), types.NewQuantityFromInt64Scaled(2))
	assert.NoError(t, order.Validate(ctx))
}

func TestComplete_ZeroRequirementIsRejected(t *testing.T) {
	f := newFixture(t, costing.FIFO)
	salt := f.material(t, "salt", material.KindRawMaterial, [2]int64{1, 4})
	bread := f.material(t, "bread", material.KindFinishedGood)

	order := NewOrder(f.org, bread.ID, types.NewQuantityFromInt64Scaled(5000))
	order.AddComponent(salt.ID, types.NewQuantityFromInt64Scaled(1))

	_, err := f.service.Complete(context.Background(), order)
	assert.True(t, apperror.IsInvalidQuantity(err))
	assert.Empty(t, order.Number)
	assert.Equal(t, types.NewQuantity(1), f.available(t, salt.ID))
	assert.True(t, f.available(t, bread.ID).IsZero())
}

func TestComplete_RejectedOrderTakesNoNumber(t *testing.T) {
	f := newFixture(t, costing.FIFO)
	flour := f.material(t, "flour", material.KindRawMaterial, [2]int64{10, 1})
	bread := f.material(t, "bread", material.KindFinishedGood)

	short := NewOrder(f.org, bread.ID, types.NewQuantity(11))
	short.AddComponent(flour.ID, types.NewQuantity(1))
	_, err := f.service.Complete(context.Background(), short)
	require.True(t, apperror.IsInsufficientStock(err))
	assert.Empty(t, short.Number)

	order := NewOrder(f.org, bread.ID, types.NewQuantity(2))
	order.AddComponent(flour.ID, types.NewQuantity(1))
	c, err := f.service.Complete(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, "MO-"+order.Date.Format("2006")+"-00001", c.Number)
	assert.Equal(t, c.Number, c.Lot.BatchRef)
}

func TestOrder_Requirements(t *testing.T) {
	flour := id.New()
	order := NewOrder(id.New(), id.New(), types.NewQuantity(4))
	order.AddComponent(flour, types.NewQuantityFromInt64Scaled(2500))
	order.AddComponent(flour, types.NewQuantity(1))

	assert.Equal(t, types.NewQuantity(5), order.Requirements()[flour])
}
