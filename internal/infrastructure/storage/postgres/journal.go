package postgres

import (
	"context"
	"fmt"

	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/registers/lots"
)

// Event types written to the outbox.
const (
	EventStockConsumed = "stock.consumed"
	EventStockReceived = "stock.received"

	aggregateMaterial = "material"
)

// Compile-time check that Journal implements costing.Journal.
var _ costing.Journal = (*Journal)(nil)

// Journal records every stock movement as an outbox event and an audit
// entry, both inside the movement's transaction.
type Journal struct {
	outbox *OutboxPublisher
	audit  *AuditService
}

// NewJournal creates a journal.
func NewJournal(outbox *OutboxPublisher, audit *AuditService) *Journal {
	return &Journal{outbox: outbox, audit: audit}
}

// RecordConsumption journals a consumption.
func (j *Journal) RecordConsumption(ctx context.Context, c *costing.Consumption) error {
	if err := j.outbox.Publish(ctx, DomainEvent{
		AggregateType: aggregateMaterial,
		AggregateID:   c.MaterialID,
		EventType:     EventStockConsumed,
		Payload:       c,
	}); err != nil {
		return err
	}

	if err := j.audit.LogChange(ctx, aggregateMaterial, c.MaterialID, AuditActionConsume, c); err != nil {
		return fmt.Errorf("audit consumption: %w", err)
	}
	return nil
}

// RecordReceipt journals a new lot.
func (j *Journal) RecordReceipt(ctx context.Context, lot *lots.Lot) error {
	if err := j.outbox.Publish(ctx, DomainEvent{
		AggregateType: aggregateMaterial,
		AggregateID:   lot.MaterialID,
		EventType:     EventStockReceived,
		Payload:       lot,
	}); err != nil {
		return err
	}

	if err := j.audit.LogChange(ctx, aggregateMaterial, lot.MaterialID, AuditActionReceive, lot); err != nil {
		return fmt.Errorf("audit receipt: %w", err)
	}
	return nil
}
