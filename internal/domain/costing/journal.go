package costing

import (
	"context"
	"time"

	"lotcost/internal/domain/registers/lots"
)

// Journal records stock movements in the same transaction as the movement.
// The Postgres implementation writes an outbox event and an audit entry.
type Journal interface {
	RecordConsumption(ctx context.Context, c *Consumption) error
	RecordReceipt(ctx context.Context, lot *lots.Lot) error
}

// Recorder receives engine metrics.
type Recorder interface {
	ObserveConsumption(method, outcome string, elapsed time.Duration)
	ObserveEstimate(method, outcome string)
	IncRetry(operation string)
	AddPruned(n int64)
}

type nopJournal struct{}

func (nopJournal) RecordConsumption(context.Context, *Consumption) error { return nil }
func (nopJournal) RecordReceipt(context.Context, *lots.Lot) error        { return nil }

type nopRecorder struct{}

func (nopRecorder) ObserveConsumption(string, string, time.Duration) {}
func (nopRecorder) ObserveEstimate(string, string)                   {}
func (nopRecorder) IncRetry(string)                                  {}
func (nopRecorder) AddPruned(int64)                                  {}
