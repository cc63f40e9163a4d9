package costing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/registers/lots"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// threeLots returns lots received at T1 < T2 < T3, deliberately shuffled.
func threeLots() (l1, l2, l3 *lots.Lot, all []*lots.Lot) {
	materialID := id.New()
	l1 = lots.NewLot(materialID, types.NewQuantity(10), types.MustMoney("1.00"), t0)
	l2 = lots.NewLot(materialID, types.NewQuantity(20), types.MustMoney("2.00"), t0.Add(time.Hour))
	l3 = lots.NewLot(materialID, types.NewQuantity(30), types.MustMoney("3.00"), t0.Add(2*time.Hour))
	return l1, l2, l3, []*lots.Lot{l3, l1, l2}
}

func TestAllocate_FIFO(t *testing.T) {
	l1, l2, _, all := threeLots()

	t.Run("within first lot", func(t *testing.T) {
		a := Allocate(all, types.NewQuantity(7), FIFO)
		require.True(t, a.Satisfied())
		require.Len(t, a.Takes, 1)
		assert.Equal(t, l1.ID, a.Takes[0].LotID)
		assert.True(t, types.MustMoney("7").Equal(a.Cost))
	})

	t.Run("spills into second lot", func(t *testing.T) {
		a := Allocate(all, types.NewQuantity(25), FIFO)
		require.True(t, a.Satisfied())
		require.Len(t, a.Takes, 2)
		assert.Equal(t, Take{LotID: l1.ID, Quantity: types.NewQuantity(10), CostPrice: l1.CostPrice}, a.Takes[0])
		assert.Equal(t, l2.ID, a.Takes[1].LotID)
		assert.Equal(t, types.NewQuantity(15), a.Takes[1].Quantity)
		assert.True(t, types.MustMoney("40").Equal(a.Cost), a.Cost.String())
	})
}

func TestAllocate_LIFO(t *testing.T) {
	_, l2, l3, all := threeLots()

	a := Allocate(all, types.NewQuantity(35), LIFO)
	require.True(t, a.Satisfied())
	require.Len(t, a.Takes, 2)
	assert.Equal(t, l3.ID, a.Takes[0].LotID)
	assert.Equal(t, types.NewQuantity(30), a.Takes[0].Quantity)
	assert.Equal(t, l2.ID, a.Takes[1].LotID)
	assert.Equal(t, types.NewQuantity(5), a.Takes[1].Quantity)
	assert.True(t, types.MustMoney("100").Equal(a.Cost), a.Cost.String())
}

func TestAllocate_WAC(t *testing.T) {
	materialID := id.New()
	a1 := lots.NewLot(materialID, types.NewQuantity(20), types.MustMoney("15.50"), t0)
	a2 := lots.NewLot(materialID, types.NewQuantity(32), types.MustMoney("12.00"), t0.Add(time.Minute))

	a := Allocate([]*lots.Lot{a2, a1}, types.NewQuantity(10), WAC)
	require.True(t, a.Satisfied())

	want := types.MustMoney("694").Div(types.MustMoney("52")).Mul(decimal.NewFromInt(10))
	assert.True(t, want.Equal(a.Cost), "got %s want %s", a.Cost, want)
	assert.Equal(t, "133.46", a.Cost.StringFixed(2))

	// Depletion under WAC is oldest first.
	require.Len(t, a.Takes, 1)
	assert.Equal(t, a1.ID, a.Takes[0].LotID)
}

func TestAllocate_Insufficient(t *testing.T) {
	_, _, _, all := threeLots()

	a := Allocate(all, types.NewQuantity(61), FIFO)
	assert.False(t, a.Satisfied())
	assert.Equal(t, types.NewQuantity(1), a.Shortfall)
	assert.Equal(t, types.NewQuantity(60), a.Available)
	assert.True(t, a.Cost.IsZero())
}

func TestAllocate_IgnoresExhaustedAndBreaksTies(t *testing.T) {
	materialID := id.New()
	first := lots.NewLot(materialID, types.NewQuantity(5), types.MustMoney("1"), t0)
	second := lots.NewLot(materialID, types.NewQuantity(5), types.MustMoney("2"), t0)
	empty := lots.NewLot(materialID, types.NewQuantity(5), types.MustMoney("9"), t0.Add(-time.Hour))
	empty.Remaining = 0

	// UUIDv7 ids are increasing, so first sorts before second on equal receivedAt.
	require.Negative(t, id.Compare(first.ID, second.ID))

	a := Allocate([]*lots.Lot{second, empty, first}, types.NewQuantity(6), FIFO)
	require.Len(t, a.Takes, 2)
	assert.Equal(t, first.ID, a.Takes[0].LotID)
	assert.Equal(t, second.ID, a.Takes[1].LotID)

	a = Allocate([]*lots.Lot{second, empty, first}, types.NewQuantity(6), LIFO)
	assert.Equal(t, second.ID, a.Takes[0].LotID)
}

func TestAllocate_DoesNotMutate(t *testing.T) {
	_, _, _, all := threeLots()
	before := lots.TotalRemaining(all)

	Allocate(all, types.NewQuantity(45), FIFO)
	assert.Equal(t, before, lots.TotalRemaining(all))
}
