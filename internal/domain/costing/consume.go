package costing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/pkg/logger"
)

// Consumption is the result of a successful Consume.
type Consumption struct {
	MaterialID     id.ID          `json:"materialId"`
	OrganizationID id.ID          `json:"organizationId"`
	Method         Method         `json:"method"`
	Quantity       types.Quantity `json:"quantity"`

	// Cost is what EstimateCost would have returned just before the call.
	Cost  types.Money `json:"cost"`
	Takes []Take      `json:"takes"`

	// Aggregates of the material after resync.
	Available types.Quantity `json:"availableQuantities"`
	Stock     types.Quantity `json:"stock"`

	// Pruned is the number of exhausted lots removed.
	Pruned int64 `json:"pruned"`

	ConsumedAt time.Time `json:"consumedAt"`
}

// Consume removes qty of the material from its lots in the method's
// depletion order, resyncs the material aggregates and prunes exhausted lots.
//
// It is all-or-nothing: on any error no lot is changed. Conflicts are retried
// with the engine's retry policy unless ctx already carries a transaction.
func (e *Engine) Consume(ctx context.Context, materialID id.ID, qty types.Quantity, method Method) (result *Consumption, err error) {
	if err := validateRequest(qty, method); err != nil {
		return nil, err
	}

	ctx, span := e.startSpan(ctx, "costing.consume", materialID,
		attribute.String("costing.method", method.String()),
		attribute.String("costing.quantity", qty.String()))
	start := time.Now()
	defer func() {
		e.recorder.ObserveConsumption(method.String(), outcomeOf(err), time.Since(start))
		endSpan(span, err)
	}()

	err = e.withRetry(ctx, "consume", func(ctx context.Context) error {
		return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			c, err := e.consume(ctx, materialID, qty, method)
			if err != nil {
				return err
			}
			result = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.recorder.AddPruned(result.Pruned)
	logger.Debug(ctx, "material consumed",
		"material_id", materialID,
		"method", method.String(),
		"quantity", qty.String(),
		"cost", result.Cost.String(),
		"lots", len(result.Takes))
	return result, nil
}

// consume runs one attempt. It must be called inside a transaction.
func (e *Engine) consume(ctx context.Context, materialID id.ID, qty types.Quantity, method Method) (*Consumption, error) {
	m, err := e.materials.GetForUpdate(ctx, materialID)
	if err != nil {
		return nil, err
	}

	active, err := e.lots.ListActive(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("list active lots: %w", err)
	}

	alloc := Allocate(active, qty, method)
	if !alloc.Satisfied() {
		return nil, apperror.NewInsufficientStock(materialID.String(), qty.String(), alloc.Available.String())
	}

	for _, take := range alloc.Takes {
		if err := e.lots.Decrement(ctx, take.LotID, take.Quantity); err != nil {
			return nil, fmt.Errorf("decrement lot %s: %w", take.LotID, err)
		}
	}

	if err := e.resync(ctx, m); err != nil {
		return nil, err
	}

	c := &Consumption{
		MaterialID:     materialID,
		OrganizationID: m.OrganizationID,
		Method:         method,
		Quantity:       qty,
		Cost:           alloc.Cost,
		Takes:          alloc.Takes,
		Available:      m.AvailableQuantities,
		Stock:          m.Stock,
		Pruned:         e.prune(ctx, materialID),
		ConsumedAt:     e.now().UTC(),
	}

	if err := e.journal.RecordConsumption(ctx, c); err != nil {
		return nil, fmt.Errorf("journal consumption: %w", err)
	}
	return c, nil
}

// prune deletes exhausted lots in a savepoint. A failure is logged and
// leaves the surrounding consumption intact.
func (e *Engine) prune(ctx context.Context, materialID id.ID) int64 {
	var pruned int64
	err := e.txManager.RunInSavepoint(ctx, func(ctx context.Context) error {
		n, err := e.lots.DeleteExhausted(ctx, materialID)
		if err != nil {
			return err
		}
		pruned = n
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "prune exhausted lots failed", "material_id", materialID, "error", err)
		return 0
	}
	return pruned
}
