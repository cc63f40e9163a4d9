// Package catalog_repo provides the PostgreSQL material repository.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/infrastructure/storage/postgres"
)

const materialsTable = "cat_materials"

// Compile-time check that MaterialRepo implements material.Repository.
var _ material.Repository = (*MaterialRepo)(nil)

// MaterialRepo implements material.Repository.
type MaterialRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewMaterialRepo creates a new material repository.
func NewMaterialRepo(txManager *postgres.TxManager) *MaterialRepo {
	return &MaterialRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[material.Material](),
	}
}

// Create inserts a new material using its "db" tags.
func (r *MaterialRepo) Create(ctx context.Context, m *material.Material) error {
	sql, args, err := r.insertQuery(m)
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert %s: %w", materialsTable, err))
	}
	return nil
}

func (r *MaterialRepo) insertQuery(m *material.Material) (string, []any, error) {
	return r.builder.
		Insert(materialsTable).
		Columns(r.selectCols...).
		Values(postgres.StructValues(m, r.selectCols)...).
		ToSql()
}

// GetByID retrieves a material.
func (r *MaterialRepo) GetByID(ctx context.Context, materialID id.ID) (*material.Material, error) {
	return r.get(ctx, r.selectQuery(materialID), materialID)
}

// GetForUpdate retrieves a material and locks its row until the transaction
// ends. The row lock is the per-material lock of every stock mutation.
func (r *MaterialRepo) GetForUpdate(ctx context.Context, materialID id.ID) (*material.Material, error) {
	if !r.txManager.InTransaction(ctx) {
		return nil, apperror.NewInternal(fmt.Errorf("GetForUpdate requires transaction context"))
	}
	return r.get(ctx, r.forUpdateQuery(materialID), materialID)
}

func (r *MaterialRepo) forUpdateQuery(materialID id.ID) squirrel.SelectBuilder {
	return r.selectQuery(materialID).Suffix("FOR UPDATE")
}

func (r *MaterialRepo) selectQuery(materialID id.ID) squirrel.SelectBuilder {
	return r.builder.
		Select(r.selectCols...).
		From(materialsTable).
		Where(squirrel.Eq{"id": materialID})
}

func (r *MaterialRepo) get(ctx context.Context, q squirrel.SelectBuilder, materialID id.ID) (*material.Material, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var m material.Material
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &m, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewMaterialNotFound(materialID)
		}
		return nil, postgres.TranslateError(fmt.Errorf("get material: %w", err))
	}
	return &m, nil
}

// UpdateAggregates writes the derived stock fields.
func (r *MaterialRepo) UpdateAggregates(ctx context.Context, materialID id.ID, available, stock types.Quantity) error {
	sql, args, err := r.updateAggregatesQuery(materialID, available, stock, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("update aggregates: %w", err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewMaterialNotFound(materialID)
	}
	return nil
}

func (r *MaterialRepo) updateAggregatesQuery(materialID id.ID, available, stock types.Quantity, now time.Time) (string, []any, error) {
	return r.builder.
		Update(materialsTable).
		Set("available_quantities", available).
		Set("stock", stock).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": materialID}).
		ToSql()
}

// ListIDs returns all material IDs in ascending order.
func (r *MaterialRepo) ListIDs(ctx context.Context) ([]id.ID, error) {
	sql, args, err := r.builder.Select("id").From(materialsTable).OrderBy("id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list material ids: %w", err))
	}
	return ids, nil
}
