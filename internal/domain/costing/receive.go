package costing

import (
	"context"
	"fmt"
	"time"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/registers/lots"
	"lotcost/pkg/logger"
)

// ReceiveInput describes a confirmed purchase (or a produced batch).
type ReceiveInput struct {
	MaterialID id.ID
	Quantity   types.Quantity
	CostPrice  types.Money
	ReceivedAt time.Time
	BatchRef   string
}

// Receive creates a lot for the material and resyncs its aggregates.
func (e *Engine) Receive(ctx context.Context, in ReceiveInput) (result *lots.Lot, err error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewInvalidQuantity(in.Quantity.String())
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = e.now()
	}

	ctx, span := e.startSpan(ctx, "costing.receive", in.MaterialID)
	defer func() { endSpan(span, err) }()

	err = e.withRetry(ctx, "receive", func(ctx context.Context) error {
		return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			m, err := e.materials.GetForUpdate(ctx, in.MaterialID)
			if err != nil {
				return err
			}

			lot := lots.NewLot(in.MaterialID, in.Quantity, in.CostPrice, in.ReceivedAt).WithBatchRef(in.BatchRef)
			if err := lot.Validate(ctx); err != nil {
				return err
			}
			if err := e.lots.Create(ctx, lot); err != nil {
				return fmt.Errorf("create lot: %w", err)
			}

			if err := e.resync(ctx, m); err != nil {
				return err
			}
			if err := e.journal.RecordReceipt(ctx, lot); err != nil {
				return fmt.Errorf("journal receipt: %w", err)
			}
			result = lot
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lot received",
		"material_id", in.MaterialID,
		"lot_id", result.ID,
		"quantity", in.Quantity.String(),
		"cost_price", in.CostPrice.String())
	return result, nil
}

// ListLots returns the material's lots in FIFO order; exhausted lots only
// when all is set.
func (e *Engine) ListLots(ctx context.Context, materialID id.ID, all bool) ([]*lots.Lot, error) {
	var out []*lots.Lot
	err := e.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		if _, err := e.materials.GetByID(ctx, materialID); err != nil {
			return err
		}
		var err error
		if all {
			out, err = e.lots.ListAll(ctx, materialID)
		} else {
			out, err = e.lots.ListActive(ctx, materialID)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	sortLots(out)
	return out, nil
}
