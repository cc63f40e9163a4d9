package costing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/tx"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
	"lotcost/internal/infrastructure/memory"
)

type fixture struct {
	store    *memory.Store
	engine   *Engine
	material *material.Material
	lots     []*lots.Lot
}

type lotSpec struct {
	qty  int64
	cost string
}

func fastRetry() tx.RetryPolicy {
	return tx.RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}
}

func newFixture(t *testing.T, specs []lotSpec, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, specs, nil, opts...)
}

// newFixtureWithRepo builds an engine whose lot repository may be wrapped.
func newFixtureWithRepo(t *testing.T, specs []lotSpec, wrap func(lots.Repository) lots.Repository, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	var lotRepo lots.Repository = store.Lots()
	if wrap != nil {
		lotRepo = wrap(lotRepo)
	}
	opts = append([]Option{WithRetryPolicy(fastRetry())}, opts...)
	engine := NewEngine(store.TxManager(), store.Materials(), lotRepo, opts...)

	m := material.NewMaterial(id.New(), "flour")
	require.NoError(t, store.Materials().Create(ctx, m))

	f := &fixture{store: store, engine: engine, material: m}
	for i, s := range specs {
		l, err := engine.Receive(ctx, ReceiveInput{
			MaterialID: m.ID,
			Quantity:   types.NewQuantity(s.qty),
			CostPrice:  types.MustMoney(s.cost),
			ReceivedAt: t0.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
		f.lots = append(f.lots, l)
	}
	return f
}

func (f *fixture) remaining(t *testing.T) map[id.ID]types.Quantity {
	t.Helper()
	all, err := f.store.Lots().ListAll(context.Background(), f.material.ID)
	require.NoError(t, err)
	out := make(map[id.ID]types.Quantity, len(all))
	for _, l := range all {
		out[l.ID] = l.Remaining
	}
	return out
}

func (f *fixture) reload(t *testing.T) *material.Material {
	t.Helper()
	m, err := f.store.Materials().GetByID(context.Background(), f.material.ID)
	require.NoError(t, err)
	return m
}

func sum(m map[id.ID]types.Quantity) types.Quantity {
	var total types.Quantity
	for _, q := range m {
		total += q
	}
	return total
}

func TestConsume_ConservationAndFIFO(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}, {20, "2"}, {30, "3"}})
	before := sum(f.remaining(t))

	c, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(25), FIFO)
	require.NoError(t, err)

	after := f.remaining(t)
	assert.Equal(t, before-types.NewQuantity(25), sum(after))
	assert.True(t, types.MustMoney("40").Equal(c.Cost))

	// Lot 1 drained and pruned, lot 2 partially consumed, lot 3 untouched.
	assert.NotContains(t, after, f.lots[0].ID)
	assert.Equal(t, types.NewQuantity(5), after[f.lots[1].ID])
	assert.Equal(t, types.NewQuantity(30), after[f.lots[2].ID])
	assert.Equal(t, int64(1), c.Pruned)

	m := f.reload(t)
	assert.Equal(t, types.NewQuantity(35), m.AvailableQuantities)
	assert.Equal(t, types.NewQuantity(35), m.Stock)
	assert.Equal(t, m.AvailableQuantities, c.Available)
}

func TestConsume_LIFO(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}, {20, "2"}, {30, "3"}})

	c, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(35), LIFO)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("100").Equal(c.Cost))

	after := f.remaining(t)
	assert.NotContains(t, after, f.lots[2].ID)
	assert.Equal(t, types.NewQuantity(15), after[f.lots[1].ID])
	assert.Equal(t, types.NewQuantity(10), after[f.lots[0].ID])
}

func TestConsume_WACMatchesEstimateAndDepletesOldestFirst(t *testing.T) {
	f := newFixture(t, []lotSpec{{20, "15.50"}, {32, "12.00"}})
	ctx := context.Background()

	estimate, err := f.engine.EstimateCost(ctx, f.material.ID, types.NewQuantity(10), WAC)
	require.NoError(t, err)

	c, err := f.engine.Consume(ctx, f.material.ID, types.NewQuantity(10), WAC)
	require.NoError(t, err)
	assert.True(t, estimate.Equal(c.Cost))
	assert.Equal(t, "133.46", c.Cost.StringFixed(2))

	after := f.remaining(t)
	assert.Equal(t, types.NewQuantity(10), after[f.lots[0].ID])
	assert.Equal(t, types.NewQuantity(32), after[f.lots[1].ID])
}

func TestConsume_InsufficientLeavesLotsUnchanged(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}, {20, "2"}})
	before := f.remaining(t)
	materialBefore := f.reload(t)

	_, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(31), FIFO)
	require.True(t, apperror.IsInsufficientStock(err))

	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "31.0000", appErr.Details["requested"])
	assert.Equal(t, "30.0000", appErr.Details["available"])

	assert.Equal(t, before, f.remaining(t))
	assert.Equal(t, materialBefore.AvailableQuantities, f.reload(t).AvailableQuantities)
}

// failingLots fails selected operations of the wrapped repository.
type failingLots struct {
	lots.Repository
	decrements      atomic.Int32
	failDecrementAt int32
	decrementErr    error
	pruneErr        error
}

func (r *failingLots) Decrement(ctx context.Context, lotID id.ID, by types.Quantity) error {
	if n := r.decrements.Add(1); n == r.failDecrementAt {
		return r.decrementErr
	}
	return r.Repository.Decrement(ctx, lotID, by)
}

func (r *failingLots) DeleteExhausted(ctx context.Context, materialID id.ID) (int64, error) {
	if r.pruneErr != nil {
		return 0, r.pruneErr
	}
	return r.Repository.DeleteExhausted(ctx, materialID)
}

func TestConsume_FailureMidwayRollsBackEarlierDecrements(t *testing.T) {
	repo := &failingLots{decrementErr: errors.New("disk on fire")}
	f := newFixtureWithRepo(t, []lotSpec{{10, "1"}, {20, "2"}}, func(r lots.Repository) lots.Repository {
		repo.Repository = r
		return repo
	})
	repo.failDecrementAt = 2
	before := f.remaining(t)

	_, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(15), FIFO)
	require.Error(t, err)
	assert.Equal(t, int32(2), repo.decrements.Load())
	assert.Equal(t, before, f.remaining(t))
}

func TestConsume_RetriesOnConflict(t *testing.T) {
	repo := &failingLots{}
	f := newFixtureWithRepo(t, []lotSpec{{10, "1"}}, func(r lots.Repository) lots.Repository {
		repo.Repository = r
		return repo
	})
	repo.failDecrementAt = 1
	repo.decrementErr = apperror.NewConcurrentModification("lot", "x")

	c, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(4), FIFO)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(6), c.Available)
	assert.Equal(t, int32(2), repo.decrements.Load())
}

func TestConsume_PruneFailureIsTolerated(t *testing.T) {
	repo := &failingLots{}
	f := newFixtureWithRepo(t, []lotSpec{{10, "1"}, {5, "1"}}, func(r lots.Repository) lots.Repository {
		repo.Repository = r
		return repo
	})
	repo.pruneErr = errors.New("prune failed")

	c, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(10), FIFO)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Pruned)

	after := f.remaining(t)
	assert.Equal(t, types.Quantity(0), after[f.lots[0].ID])
	assert.Equal(t, types.NewQuantity(5), f.reload(t).AvailableQuantities)
}

func TestConsume_PrunedLotsDisappear(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}, {5, "1"}})
	ctx := context.Background()

	_, err := f.engine.Consume(ctx, f.material.ID, types.NewQuantity(10), FIFO)
	require.NoError(t, err)

	active, err := f.engine.ListLots(ctx, f.material.ID, false)
	require.NoError(t, err)
	all, err := f.engine.ListLots(ctx, f.material.ID, true)
	require.NoError(t, err)

	for _, list := range [][]*lots.Lot{active, all} {
		require.Len(t, list, 1)
		assert.Equal(t, f.lots[1].ID, list[0].ID)
	}
}

func TestConsume_InvalidInput(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}})
	ctx := context.Background()

	_, err := f.engine.Consume(ctx, f.material.ID, 0, FIFO)
	assert.True(t, apperror.IsInvalidQuantity(err))

	_, err = f.engine.Consume(ctx, f.material.ID, types.NewQuantity(-1), FIFO)
	assert.True(t, apperror.IsInvalidQuantity(err))

	_, err = f.engine.Consume(ctx, f.material.ID, types.NewQuantity(1), Method(0))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.engine.Consume(ctx, id.New(), types.NewQuantity(1), FIFO)
	assert.True(t, apperror.IsMaterialNotFound(err))

	_, err = f.engine.EstimateCost(ctx, id.New(), types.NewQuantity(1), FIFO)
	assert.True(t, apperror.IsMaterialNotFound(err))
}

func TestConsume_CancelledContextLeavesState(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}})
	before := f.remaining(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Consume(ctx, f.material.ID, types.NewQuantity(3), FIFO)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, before, f.remaining(t))
}

func TestConsume_Concurrent(t *testing.T) {
	const workers = 8
	f := newFixture(t, []lotSpec{{3, "1"}, {5, "2"}})

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(1), FIFO)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, types.Quantity(0), sum(f.remaining(t)))
	assert.Equal(t, types.Quantity(0), f.reload(t).AvailableQuantities)

	_, err := f.engine.Consume(context.Background(), f.material.ID, types.NewQuantity(1), FIFO)
	assert.True(t, apperror.IsInsufficientStock(err))
}

func TestConsume_OtherMaterialNotBlocked(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}})
	ctx := context.Background()

	sugar := material.NewMaterial(f.material.OrganizationID, "sugar")
	require.NoError(t, f.store.Materials().Create(ctx, sugar))
	_, err := f.engine.Receive(ctx, ReceiveInput{
		MaterialID: sugar.ID,
		Quantity:   types.NewQuantity(5),
		CostPrice:  types.MustMoney("3"),
		ReceivedAt: t0,
	})
	require.NoError(t, err)

	locked := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		held <- f.store.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
			_, err := f.store.Materials().GetForUpdate(ctx, f.material.ID)
			close(locked)
			<-release
			return err
		})
	}()
	<-locked

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = f.engine.Consume(waitCtx, f.material.ID, types.NewQuantity(1), FIFO)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "flour must stay locked")

	otherCtx, cancelOther := context.WithTimeout(ctx, time.Second)
	defer cancelOther()
	c, err := f.engine.Consume(otherCtx, sugar.ID, types.NewQuantity(2), FIFO)
	require.NoError(t, err, "sugar must not wait for the flour lock")
	assert.True(t, types.MustMoney("6").Equal(c.Cost))

	close(release)
	require.NoError(t, <-held)
	assert.Equal(t, types.NewQuantity(10), sum(f.remaining(t)))
}

func TestEstimateCost_IsReadOnly(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}, {20, "2"}})
	ctx := context.Background()
	before := f.remaining(t)
	materialBefore := f.reload(t)

	for _, m := range Methods {
		_, err := f.engine.EstimateCost(ctx, f.material.ID, types.NewQuantity(30), m)
		require.NoError(t, err)
	}

	_, err := f.engine.EstimateCost(ctx, f.material.ID, types.NewQuantity(31), FIFO)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, before, f.remaining(t))
	assert.Equal(t, materialBefore, f.reload(t))
}

func TestResync_PackConversion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	m := material.NewMaterial(id.New(), "sugar").WithPack("g", types.NewQuantity(500))
	require.NoError(t, f.store.Materials().Create(ctx, m))
	require.NoError(t, f.store.Lots().Create(ctx, lots.NewLot(m.ID, types.NewQuantity(1000), types.MustMoney("0.01"), t0)))
	require.NoError(t, f.store.Lots().Create(ctx, lots.NewLot(m.ID, types.NewQuantity(600), types.MustMoney("0.01"), t0)))

	got, err := f.engine.Resync(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantity(1600), got.AvailableQuantities)
	assert.Equal(t, types.NewQuantity(3), got.Stock)

	_, err = f.engine.Resync(ctx, id.New())
	assert.True(t, apperror.IsMaterialNotFound(err))
}

func TestResyncAll_RepairsDrift(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}})
	ctx := context.Background()

	require.NoError(t, f.store.Materials().UpdateAggregates(ctx, f.material.ID, types.NewQuantity(99), types.NewQuantity(99)))

	report, err := f.engine.ResyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Drifted: 1}, report)
	assert.Equal(t, types.NewQuantity(10), f.reload(t).AvailableQuantities)

	report, err = f.engine.ResyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Drifted)
}

func TestReceive(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}})
	ctx := context.Background()

	l, err := f.engine.Receive(ctx, ReceiveInput{
		MaterialID: f.material.ID,
		Quantity:   types.NewQuantity(4),
		CostPrice:  types.MustMoney("2.5"),
		BatchRef:   "PO-42",
	})
	require.NoError(t, err)
	require.NotNil(t, l.BatchRef)
	assert.Equal(t, "PO-42", *l.BatchRef)
	assert.Equal(t, types.NewQuantity(14), f.reload(t).AvailableQuantities)

	_, err = f.engine.Receive(ctx, ReceiveInput{MaterialID: f.material.ID, CostPrice: types.MustMoney("1")})
	assert.True(t, apperror.IsInvalidQuantity(err))

	_, err = f.engine.Receive(ctx, ReceiveInput{MaterialID: id.New(), Quantity: types.NewQuantity(1), CostPrice: types.MustMoney("1")})
	assert.True(t, apperror.IsMaterialNotFound(err))
}

type recordingJournal struct {
	mu           sync.Mutex
	consumptions []*Consumption
	receipts     []*lots.Lot
	fail         error
}

func (j *recordingJournal) RecordConsumption(_ context.Context, c *Consumption) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	j.consumptions = append(j.consumptions, c)
	return nil
}

func (j *recordingJournal) RecordReceipt(_ context.Context, l *lots.Lot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.receipts = append(j.receipts, l)
	return nil
}

func TestJournal(t *testing.T) {
	journal := &recordingJournal{}
	f := newFixture(t, []lotSpec{{10, "1"}}, WithJournal(journal))
	ctx := context.Background()

	assert.Len(t, journal.receipts, 1)

	_, err := f.engine.Consume(ctx, f.material.ID, types.NewQuantity(2), FIFO)
	require.NoError(t, err)
	require.Len(t, journal.consumptions, 1)
	assert.Equal(t, f.material.OrganizationID, journal.consumptions[0].OrganizationID)

	// A failing journal aborts the consumption.
	journal.fail = errors.New("outbox unavailable")
	before := f.remaining(t)
	_, err = f.engine.Consume(ctx, f.material.ID, types.NewQuantity(2), FIFO)
	require.Error(t, err)
	assert.Equal(t, before, f.remaining(t))
}

func TestConsume_NestedInCallerTransaction(t *testing.T) {
	f := newFixture(t, []lotSpec{{10, "1"}})
	txm := f.store.TxManager()
	boom := errors.New("later step failed")

	err := txm.RunInTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := f.engine.Consume(ctx, f.material.ID, types.NewQuantity(4), FIFO); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, types.NewQuantity(10), sum(f.remaining(t)))
}
