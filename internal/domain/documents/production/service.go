package production

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/numerator"
	"lotcost/internal/core/tx"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/pkg/logger"
)

// NumberPrefix prefixes manufacturing order numbers.
const NumberPrefix = "MO"

// unitCostPlaces is the precision of the produced lot's cost price.
const unitCostPlaces = 6

// Service completes manufacturing orders.
type Service struct {
	engine    *costing.Engine
	materials material.Repository
	settings  costing.Settings
	numerator numerator.Generator
}

// NewService creates a production service.
func NewService(engine *costing.Engine, materials material.Repository, settings costing.Settings, gen numerator.Generator) *Service {
	return &Service{
		engine:    engine,
		materials: materials,
		settings:  settings,
		numerator: gen,
	}
}

// Complete consumes every component and receives the finished good at
// totalCost / quantity per unit, batch-referenced by the order number.
// Everything happens in one transaction; a short component aborts the order.
func (s *Service) Complete(ctx context.Context, order *Order) (*Completion, error) {
	if err := order.Validate(ctx); err != nil {
		return nil, err
	}

	method := s.settings.MethodFor(order.OrganizationID)
	required := order.Requirements()
	componentIDs := id.SortedUnique(slices.Collect(maps.Keys(required)))
	lockOrder := id.SortedUnique(append(slices.Clone(componentIDs), order.ProductID))

	var result *Completion
	txm := s.engine.TxManager()
	err := tx.Retry(ctx, s.engine.RetryPolicy(), nil, func(ctx context.Context) error {
		return txm.RunInTransaction(ctx, func(ctx context.Context) error {
			locked := make(map[id.ID]*material.Material, len(lockOrder))
			for _, materialID := range lockOrder {
				m, err := s.materials.GetForUpdate(ctx, materialID)
				if err != nil {
					return err
				}
				if m.OrganizationID != order.OrganizationID {
					return apperror.NewMaterialNotFound(materialID)
				}
				locked[materialID] = m
			}
			if locked[order.ProductID].Kind != material.KindFinishedGood {
				return apperror.NewValidation("product must be a finished good").
					WithDetail("field", "productId").
					WithDetail("kind", string(locked[order.ProductID].Kind))
			}

			c := &Completion{
				OrderID:   order.ID,
				Method:    method,
				TotalCost: types.ZeroMoney(),
			}
			for _, materialID := range componentIDs {
				consumption, err := s.engine.Consume(ctx, materialID, required[materialID], method)
				if err != nil {
					return err
				}
				c.Consumptions = append(c.Consumptions, consumption)
				c.TotalCost = c.TotalCost.Add(consumption.Cost)
			}

			number, err := s.number(ctx, order)
			if err != nil {
				return err
			}
			c.Number = number

			c.UnitCost = c.TotalCost.DivRound(order.Quantity.Decimal(), unitCostPlaces)
			lot, err := s.engine.Receive(ctx, costing.ReceiveInput{
				MaterialID: order.ProductID,
				Quantity:   order.Quantity,
				CostPrice:  c.UnitCost,
				BatchRef:   number,
			})
			if err != nil {
				return fmt.Errorf("credit finished good: %w", err)
			}
			c.Lot = lot

			result = c
			return nil
		})
	})
	if err != nil {
		logger.Warn(ctx, "manufacturing order not completed", "order_id", order.ID, "error", err)
		return nil, err
	}
	order.Number = result.Number

	logger.Info(ctx, "manufacturing order completed",
		"number", order.Number,
		"product_id", order.ProductID,
		"quantity", order.Quantity.String(),
		"total_cost", result.TotalCost.String(),
		"unit_cost", result.UnitCost.String())
	return result, nil
}

// number returns the order's number, allocating one in the transaction in ctx
// when it has none. It runs after the components are consumed, so a rejected
// order never takes a number.
func (s *Service) number(ctx context.Context, order *Order) (string, error) {
	if order.Number != "" {
		return order.Number, nil
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix), order.Date)
	if err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}
	return number, nil
}
