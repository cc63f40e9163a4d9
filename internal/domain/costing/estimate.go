package costing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
)

// EstimateCost returns the cost of consuming qty of the material under method
// without changing any state.
func (e *Engine) EstimateCost(ctx context.Context, materialID id.ID, qty types.Quantity, method Method) (types.Money, error) {
	alloc, err := e.Preview(ctx, materialID, qty, method)
	if err != nil {
		return types.ZeroMoney(), err
	}
	return alloc.Cost, nil
}

// Preview is EstimateCost with the per-lot breakdown.
// It fails with INSUFFICIENT_STOCK instead of returning a partial cost.
func (e *Engine) Preview(ctx context.Context, materialID id.ID, qty types.Quantity, method Method) (alloc *Allocation, err error) {
	if err := validateRequest(qty, method); err != nil {
		return nil, err
	}

	ctx, span := e.startSpan(ctx, "costing.estimate", materialID, attribute.String("costing.method", method.String()))
	defer func() {
		e.recorder.ObserveEstimate(method.String(), outcomeOf(err))
		endSpan(span, err)
	}()

	err = e.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		if _, err := e.materials.GetByID(ctx, materialID); err != nil {
			return err
		}

		active, err := e.lots.ListActive(ctx, materialID)
		if err != nil {
			return fmt.Errorf("list active lots: %w", err)
		}

		alloc = Allocate(active, qty, method)
		if !alloc.Satisfied() {
			return apperror.NewInsufficientStock(materialID.String(), qty.String(), alloc.Available.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return alloc, nil
}
