package memory

import (
	"context"
	"errors"
	"sync"

	"lotcost/internal/core/id"
	"lotcost/internal/core/tx"
)

var (
	errNoTransaction = errors.New("memory: locking read outside a transaction")
	errReadOnly      = errors.New("memory: write in a read-only transaction")
)

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.Manager = (*TxManager)(nil)

// TxManager implements tx.Manager over a Store.
// Writes are applied in place and undone on rollback; material locks are held
// until the outermost transaction ends.
type TxManager struct {
	store *Store
}

type txKey struct{}

type txState struct {
	readOnly bool

	mu   sync.Mutex
	undo []func()
	held map[id.ID]chan struct{}
}

func stateFrom(ctx context.Context) *txState {
	st, _ := ctx.Value(txKey{}).(*txState)
	return st
}

func (st *txState) holds(materialID id.ID) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.held[materialID]
	return ok
}

func (st *txState) hold(materialID id.ID, ch chan struct{}) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.held[materialID] = ch
}

func (st *txState) record(undo func()) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.undo = append(st.undo, undo)
}

func (st *txState) mark() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.undo)
}

// takeUndo detaches undo entries recorded after mark.
func (st *txState) takeUndo(mark int) []func() {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.undo[mark:]
	st.undo = st.undo[:mark]
	return out
}

func (st *txState) release() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for materialID, ch := range st.held {
		<-ch
		delete(st.held, materialID)
	}
}

// RunInTransaction executes fn in a transaction, reusing one found in ctx.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, false, fn)
}

// ReadOnly executes fn in a read-only transaction. Locking reads inside it
// serialize with writers of the same material, which gives a consistent snapshot.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, true, fn)
}

// RunInSavepoint executes fn and undoes only its own writes when it fails.
func (m *TxManager) RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	st := stateFrom(ctx)
	if st == nil {
		return m.RunInTransaction(ctx, fn)
	}

	mark := st.mark()
	if err := fn(ctx); err != nil {
		m.store.rollback(st.takeUndo(mark))
		return err
	}
	return nil
}

// InTransaction reports whether ctx carries a transaction.
func (m *TxManager) InTransaction(ctx context.Context) bool {
	return stateFrom(ctx) != nil
}

func (m *TxManager) run(ctx context.Context, readOnly bool, fn func(ctx context.Context) error) (err error) {
	if stateFrom(ctx) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st := &txState{readOnly: readOnly, held: make(map[id.ID]chan struct{})}
	txCtx := context.WithValue(ctx, txKey{}, st)

	defer func() {
		if p := recover(); p != nil {
			m.store.rollback(st.takeUndo(0))
			st.release()
			panic(p)
		}
	}()

	err = fn(txCtx)
	if err == nil {
		// A cancelled caller never commits.
		err = ctx.Err()
	}
	if err != nil {
		m.store.rollback(st.takeUndo(0))
	}
	st.release()
	return err
}
