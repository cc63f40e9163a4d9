package importer

import (
	"context"
	"fmt"
	"strings"

	"lotcost/internal/core/id"
	"lotcost/internal/core/tx"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/registers/lots"
	"lotcost/pkg/logger"
)

// Receiver creates lots; *costing.Engine satisfies it.
type Receiver interface {
	Receive(ctx context.Context, in costing.ReceiveInput) (*lots.Lot, error)
}

// Report summarizes an import.
type Report struct {
	Materials int
	Lots      int
}

// Resyncer recomputes material aggregates; *costing.Engine satisfies it.
type Resyncer interface {
	Resync(ctx context.Context, materialID id.ID) (*material.Material, error)
}

// Loader writes a parsed workbook into storage.
type Loader struct {
	txManager tx.Manager
	materials material.Repository
	receiver  Receiver

	bulk     lots.BulkCreator
	resyncer Resyncer
}

// NewLoader creates a loader that receives lots one by one.
func NewLoader(txManager tx.Manager, materials material.Repository, receiver Receiver) *Loader {
	return &Loader{txManager: txManager, materials: materials, receiver: receiver}
}

// WithBulk makes the loader insert all lots in one batch and resync each
// material once afterwards. Receipts are not journaled on this path.
func (l *Loader) WithBulk(bulk lots.BulkCreator, resyncer Resyncer) *Loader {
	l.bulk = bulk
	l.resyncer = resyncer
	return l
}

// Load creates the workbook's materials for the organization and receives
// their lots, all in one transaction.
func (l *Loader) Load(ctx context.Context, organizationID id.ID, wb *Workbook) (Report, error) {
	var report Report

	err := l.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		byName := make(map[string]id.ID, len(wb.Materials))

		for _, row := range wb.Materials {
			m := material.NewMaterial(organizationID, row.Name)
			m.Kind = row.Kind
			m.SoldDirectly = row.SoldDirectly
			m.UnitCost = row.UnitCost
			if row.MeasurementValue != nil {
				m.WithPack(row.MeasurementUnit, *row.MeasurementValue)
			}

			if err := m.Validate(ctx); err != nil {
				return fmt.Errorf("%s row %d: %w", SheetMaterials, row.Row, err)
			}
			if err := l.materials.Create(ctx, m); err != nil {
				return fmt.Errorf("create material %q: %w", row.Name, err)
			}
			byName[strings.ToLower(row.Name)] = m.ID
		}

		if l.bulk != nil {
			if err := l.loadBulk(ctx, byName, wb.Lots); err != nil {
				return err
			}
		} else {
			for _, row := range wb.Lots {
				materialID, err := materialFor(byName, row)
				if err != nil {
					return err
				}
				_, err = l.receiver.Receive(ctx, costing.ReceiveInput{
					MaterialID: materialID,
					Quantity:   row.Quantity,
					CostPrice:  row.CostPrice,
					ReceivedAt: row.ReceivedAt,
					BatchRef:   row.BatchRef,
				})
				if err != nil {
					return fmt.Errorf("%s row %d: %w", SheetLots, row.Row, err)
				}
			}
		}

		report = Report{Materials: len(wb.Materials), Lots: len(wb.Lots)}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	logger.Info(ctx, "workbook imported",
		"organization_id", organizationID,
		"materials", report.Materials,
		"lots", report.Lots)
	return report, nil
}

func (l *Loader) loadBulk(ctx context.Context, byName map[string]id.ID, rows []LotRow) error {
	list := make([]*lots.Lot, 0, len(rows))
	var touched []id.ID
	for _, row := range rows {
		materialID, err := materialFor(byName, row)
		if err != nil {
			return err
		}
		lot := lots.NewLot(materialID, row.Quantity, row.CostPrice, row.ReceivedAt).WithBatchRef(row.BatchRef)
		if err := lot.Validate(ctx); err != nil {
			return fmt.Errorf("%s row %d: %w", SheetLots, row.Row, err)
		}
		list = append(list, lot)
		touched = append(touched, materialID)
	}

	if _, err := l.bulk.CreateMany(ctx, list); err != nil {
		return fmt.Errorf("bulk insert lots: %w", err)
	}
	for _, materialID := range id.SortedUnique(touched) {
		if _, err := l.resyncer.Resync(ctx, materialID); err != nil {
			return fmt.Errorf("resync %s: %w", materialID, err)
		}
	}
	return nil
}

func materialFor(byName map[string]id.ID, row LotRow) (id.ID, error) {
	materialID, ok := byName[strings.ToLower(row.Material)]
	if !ok {
		return id.Nil, &RowError{Sheet: SheetLots, Row: row.Row, Column: "Material",
			Err: fmt.Errorf("unknown material %q", row.Material)}
	}
	return materialID, nil
}
