package numerator

import (
	"context"
	"sync"
	"time"
)

// Generator generates sequential document numbers.
type Generator interface {
	// GetNextNumber returns the next number for cfg in the period.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., SL-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, period time.Time) (string, error)
}

// MemoryGenerator keeps sequences in process memory.
// Used with in-memory storage and in tests.
type MemoryGenerator struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// Ensure compile-time interface compliance.
var _ Generator = (*MemoryGenerator)(nil)

// NewMemoryGenerator creates an empty generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{seqs: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (g *MemoryGenerator) GetNextNumber(_ context.Context, cfg Config, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := cfg.Key(period)
	g.seqs[key]++
	return cfg.Format(period, g.seqs[key]), nil
}
