// Package memory provides an in-process implementation of the material and
// lot stores with transactions, savepoints and per-material locks.
//
// It backs tests and the STORAGE=memory server mode. Data does not survive a restart.
package memory

import (
	"context"
	"sync"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
)

// Store holds materials and lots.
type Store struct {
	mu        sync.RWMutex
	materials map[id.ID]*material.Material
	lots      map[id.ID]*lots.Lot

	locksMu sync.Mutex
	locks   map[id.ID]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		materials: make(map[id.ID]*material.Material),
		lots:      make(map[id.ID]*lots.Lot),
		locks:     make(map[id.ID]chan struct{}),
	}
}

// TxManager returns a transaction manager bound to the store.
func (s *Store) TxManager() *TxManager { return &TxManager{store: s} }

// Materials returns the material repository.
func (s *Store) Materials() *MaterialRepo { return &MaterialRepo{store: s} }

// Lots returns the lot repository.
func (s *Store) Lots() *LotRepo { return &LotRepo{store: s} }

// lockFor returns the lock channel of a material, creating it on first use.
func (s *Store) lockFor(materialID id.ID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[materialID]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[materialID] = ch
	}
	return ch
}

// lockMaterial takes the exclusive material lock for the transaction in ctx.
// The lock is reentrant within one transaction and released when it ends.
func (s *Store) lockMaterial(ctx context.Context, materialID id.ID) error {
	st := stateFrom(ctx)
	if st == nil {
		return apperror.NewInternal(errNoTransaction)
	}
	if st.holds(materialID) {
		return nil
	}

	ch := s.lockFor(materialID)
	select {
	case ch <- struct{}{}:
		st.hold(materialID, ch)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// mutate applies change under the write lock and records its undo in the
// transaction carried by ctx, if any.
func (s *Store) mutate(ctx context.Context, change func() (undo func(), err error)) error {
	st := stateFrom(ctx)
	if st != nil && st.readOnly {
		return apperror.NewInternal(errReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	undo, err := change()
	if err != nil {
		return err
	}
	if st != nil && undo != nil {
		st.record(undo)
	}
	return nil
}

// rollback runs undo functions newest first.
func (s *Store) rollback(undo []func()) {
	if len(undo) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func cloneMaterial(m *material.Material) *material.Material {
	c := *m
	if m.MeasurementUnit != nil {
		unit := *m.MeasurementUnit
		c.MeasurementUnit = &unit
	}
	if m.MeasurementValue != nil {
		value := *m.MeasurementValue
		c.MeasurementValue = &value
	}
	return &c
}

func cloneLot(l *lots.Lot) *lots.Lot {
	c := *l
	if l.BatchRef != nil {
		ref := *l.BatchRef
		c.BatchRef = &ref
	}
	return &c
}
