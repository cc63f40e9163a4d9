// Package register_repo provides the PostgreSQL lot register.
package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgtype"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/registers/lots"
	"lotcost/internal/infrastructure/storage/postgres"
)

const lotsTable = "mat_lots"

// Compile-time checks.
var (
	_ lots.Repository  = (*LotRepo)(nil)
	_ lots.BulkCreator = (*LotRepo)(nil)
)

// LotRepo implements lots.Repository.
type LotRepo struct {
	txManager  *postgres.TxManager
	builder    squirrel.StatementBuilderType
	selectCols []string
}

// NewLotRepo creates a new lot repository.
func NewLotRepo(txManager *postgres.TxManager) *LotRepo {
	return &LotRepo{
		txManager:  txManager,
		builder:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		selectCols: postgres.ExtractDBColumns[lots.Lot](),
	}
}

// ListActive returns lots with remaining > 0, oldest first.
func (r *LotRepo) ListActive(ctx context.Context, materialID id.ID) ([]*lots.Lot, error) {
	return r.list(ctx, r.listQuery(materialID).Where(squirrel.Gt{"remaining": 0}))
}

// ListAll returns every lot of the material, oldest first.
func (r *LotRepo) ListAll(ctx context.Context, materialID id.ID) ([]*lots.Lot, error) {
	return r.list(ctx, r.listQuery(materialID))
}

func (r *LotRepo) listQuery(materialID id.ID) squirrel.SelectBuilder {
	return r.builder.
		Select(r.selectCols...).
		From(lotsTable).
		Where(squirrel.Eq{"material_id": materialID}).
		OrderBy("received_at", "id")
}

func (r *LotRepo) list(ctx context.Context, q squirrel.SelectBuilder) ([]*lots.Lot, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []*lots.Lot
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, postgres.TranslateError(fmt.Errorf("list lots: %w", err))
	}
	return out, nil
}

// Decrement subtracts by from remaining, guarded so it never goes negative.
func (r *LotRepo) Decrement(ctx context.Context, lotID id.ID, by types.Quantity) error {
	if !by.IsPositive() {
		return apperror.NewInvalidQuantity(by.String())
	}

	sql, args, err := r.decrementQuery(lotID, by)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return postgres.TranslateError(fmt.Errorf("decrement lot: %w", err))
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("lot", lotID)
	}
	return nil
}

func (r *LotRepo) decrementQuery(lotID id.ID, by types.Quantity) (string, []any, error) {
	return r.builder.
		Update(lotsTable).
		Set("remaining", squirrel.Expr("remaining - ?", by)).
		Where(squirrel.Eq{"id": lotID}).
		Where(squirrel.GtOrEq{"remaining": by}).
		ToSql()
}

// DeleteExhausted removes the material's lots with remaining <= 0.
func (r *LotRepo) DeleteExhausted(ctx context.Context, materialID id.ID) (int64, error) {
	sql, args, err := r.deleteExhaustedQuery(materialID)
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, postgres.TranslateError(fmt.Errorf("delete exhausted lots: %w", err))
	}
	return result.RowsAffected(), nil
}

func (r *LotRepo) deleteExhaustedQuery(materialID id.ID) (string, []any, error) {
	return r.builder.
		Delete(lotsTable).
		Where(squirrel.Eq{"material_id": materialID}).
		Where(squirrel.LtOrEq{"remaining": 0}).
		ToSql()
}

// Create inserts a lot.
func (r *LotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	sql, args, err := r.builder.
		Insert(lotsTable).
		Columns(r.selectCols...).
		Values(postgres.StructValues(lot, r.selectCols)...).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("insert lot: %w", err))
	}
	return nil
}

// CreateMany bulk-loads lots with COPY. MUST be called inside a transaction.
// Material aggregates are not touched; callers resync afterwards.
func (r *LotRepo) CreateMany(ctx context.Context, list []*lots.Lot) (int64, error) {
	if len(list) == 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(list))
	for _, l := range list {
		rows = append(rows, copyRow(l, r.selectCols))
	}

	n, err := postgres.NewBatchInserter(r.txManager).CopyFromSlice(ctx, lotsTable, r.selectCols, rows)
	if err != nil {
		return 0, postgres.TranslateError(fmt.Errorf("copy lots: %w", err))
	}
	return n, nil
}

// copyRow returns the lot's values for COPY; cost_price goes over the wire as
// pgtype.Numeric because the binary protocol needs a concrete numeric.
func copyRow(l *lots.Lot, columns []string) []any {
	values := postgres.StructValues(l, columns)
	for i, col := range columns {
		if col == "cost_price" {
			values[i] = pgtype.Numeric{
				Int:   l.CostPrice.Coefficient(),
				Exp:   l.CostPrice.Exponent(),
				Valid: true,
			}
		}
	}
	return values
}
