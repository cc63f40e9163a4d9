package costing

import (
	"context"
	"errors"
	"fmt"

	"lotcost/internal/core/id"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
	"lotcost/pkg/logger"
)

// Resync recomputes availableQuantities and stock of the material from all of
// its lots and writes them back. It returns the updated material.
func (e *Engine) Resync(ctx context.Context, materialID id.ID) (result *material.Material, err error) {
	ctx, span := e.startSpan(ctx, "costing.resync", materialID)
	defer func() { endSpan(span, err) }()

	err = e.withRetry(ctx, "resync", func(ctx context.Context) error {
		return e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			m, err := e.materials.GetForUpdate(ctx, materialID)
			if err != nil {
				return err
			}
			if err := e.resync(ctx, m); err != nil {
				return err
			}
			result = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resync updates m in place. The caller holds the material lock.
func (e *Engine) resync(ctx context.Context, m *material.Material) error {
	all, err := e.lots.ListAll(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("list lots: %w", err)
	}

	available, stock := m.ComputeAggregates(lots.TotalRemaining(all))
	if err := e.materials.UpdateAggregates(ctx, m.ID, available, stock); err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}

	m.AvailableQuantities = available
	m.Stock = stock
	return nil
}

// ReconcileReport summarizes a ResyncAll run.
type ReconcileReport struct {
	Checked int `json:"checked"`
	Drifted int `json:"drifted"`
	Failed  int `json:"failed"`
}

// ResyncAll resyncs every material, each in its own transaction. Materials
// whose cached aggregates differed from the lot store are counted as drifted.
// Errors for single materials are collected and do not stop the run.
func (e *Engine) ResyncAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	ids, err := e.materials.ListIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list materials: %w", err)
	}

	var errs []error
	for _, materialID := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		report.Checked++
		before, err := e.materials.GetByID(ctx, materialID)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("material %s: %w", materialID, err))
			continue
		}

		after, err := e.Resync(ctx, materialID)
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("material %s: %w", materialID, err))
			continue
		}

		if before.AvailableQuantities != after.AvailableQuantities || before.Stock != after.Stock {
			report.Drifted++
			logger.Warn(ctx, "material aggregates drifted",
				"material_id", materialID,
				"available_before", before.AvailableQuantities.String(),
				"available_after", after.AvailableQuantities.String(),
				"stock_before", before.Stock.String(),
				"stock_after", after.Stock.String())
		}
	}

	return report, errors.Join(errs...)
}
