package sale

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

// NumberPrefix prefixes sale numbers.
const NumberPrefix = "SL"

// Service completes sales.
type Service struct {
	engine    *costing.Engine
	materials material.Repository
	settings  costing.Settings
	numerator numerator.Generator
}

// NewService creates a sale service.
func NewService(engine *costing.Engine, materials material.Repository, settings costing.Settings, gen numerator.Generator) *Service {
	return &Service{
		engine:    engine,
		materials: materials,
		settings:  settings,
		numerator: gen,
	}
}

// Complete consumes the lots of every directly sold raw material on the sale.
//
// The whole sale is one transaction: if any line fails (for example with
// INSUFFICIENT_STOCK) nothing is consumed. Materials are locked in ascending
// ID order, and lines of the same material are consumed together.
func (s *Service) Complete(ctx context.Context, sale *Sale) (*Completion, error) {
	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}

	method := s.settings.MethodFor(sale.OrganizationID)
	quantities := sale.quantities()
	materialIDs := id.SortedUnique(slices.Collect(maps.Keys(quantities)))

	var result *Completion
	txm := s.engine.TxManager()
	err := tx.Retry(ctx, s.engine.RetryPolicy(), nil, func(ctx context.Context) error {
		return txm.RunInTransaction(ctx, func(ctx context.Context) error {
			locked, err := lockAll(ctx, s.materials, sale.OrganizationID, materialIDs)
			if err != nil {
				return err
			}

			c := &Completion{
				SaleID:  sale.ID,
				Method:  method,
				Revenue: sale.Revenue(),
				Cost:    types.ZeroMoney(),
			}
			for _, materialID := range materialIDs {
				if !locked[materialID].IsDirectSaleRawMaterial() {
					c.Skipped = append(c.Skipped, materialID)
					continue
				}
				consumption, err := s.engine.Consume(ctx, materialID, quantities[materialID], method)
				if err != nil {
					return err
				}
				c.Consumptions = append(c.Consumptions, consumption)
				c.Cost = c.Cost.Add(consumption.Cost)
			}

			c.Number, err = s.number(ctx, sale)
			if err != nil {
				return err
			}
			result = c
			return nil
		})
	})
	if err != nil {
		logger.Warn(ctx, "sale not completed", "sale_id", sale.ID, "error", err)
		return nil, err
	}
	sale.Number = result.Number

	logger.Info(ctx, "sale completed",
		"number", sale.Number,
		"method", method.String(),
		"consumed", len(result.Consumptions),
		"cost", result.Cost.String())
	return result, nil
}

// number returns the sale's number, allocating one in the transaction in ctx
// once every line is consumed.
func (s *Service) number(ctx context.Context, sale *Sale) (string, error) {
	if sale.Number != "" {
		return sale.Number, nil
	}
	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(NumberPrefix), sale.Date)
	if err != nil {
		return "", fmt.Errorf("generate number: %w", err)
	}
	return number, nil
}

// lockAll locks the materials in the given order and checks that they belong
// to the organization. A foreign material is reported as not found.
func lockAll(ctx context.Context, repo material.Repository, organizationID id.ID, ids []id.ID) (map[id.ID]*material.Material, error) {
	out := make(map[id.ID]*material.Material, len(ids))
	for _, materialID := range ids {
		m, err := repo.GetForUpdate(ctx, materialID)
		if err != nil {
			return nil, err
		}
		if m.OrganizationID != organizationID {
			return nil, apperror.NewMaterialNotFound(materialID)
		}
		out[materialID] = m
	}
	return out, nil
}
