// Package numerator provides the PostgreSQL implementation of document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	corenumerator "lotcost/internal/core/numerator"
	"lotcost/internal/infrastructure/storage/postgres"
)

type cachedRange struct {
	current int64
	max     int64
}

// Service allocates numbers from the sys_sequences table.
type Service struct {
	txManager *postgres.TxManager

	// cacheMu protects ranges
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator service. Queries run in the caller's transaction
// when ctx carries one.
func New(txManager *postgres.TxManager) *Service {
	return &Service{
		txManager: txManager,
		ranges:    make(map[string]*cachedRange),
	}
}

// GetNextNumber implements corenumerator.Generator.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time) (string, error) {
	key := cfg.Key(period)

	var (
		num int64
		err error
	)
	switch cfg.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, key, cfg.RangeSize)
	default:
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}

	return cfg.Format(period, num), nil
}

// reserve bumps the sequence by n and returns its new value.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var num int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&num)
	if err != nil {
		return 0, postgres.TranslateError(fmt.Errorf("next %s: %w", key, err))
	}
	return num, nil
}

// getNextCached hands out numbers from a reserved range, refilling it when exhausted.
func (s *Service) getNextCached(ctx context.Context, key string, size int64) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		if size <= 0 {
			size = 50
		}
		newMax, err := s.reserve(ctx, key, size)
		if err != nil {
			return 0, err
		}
		// The reserved range is (newMax-size, newMax].
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}
