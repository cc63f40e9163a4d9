package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"lotcost/internal/core/apperror"
)

func TestTranslateError(t *testing.T) {
	for _, code := range []string{"40001", "40P01", "55P03"} {
		t.Run(code, func(t *testing.T) {
			err := TranslateError(fmt.Errorf("select for update: %w", &pgconn.PgError{Code: code}))
			assert.True(t, apperror.IsConcurrentModification(err))

			var pgErr *pgconn.PgError
			assert.True(t, errors.As(err, &pgErr))
		})
	}

	err := TranslateError(&pgconn.PgError{Code: "23505", ConstraintName: "mat_lots_pkey"})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	plain := errors.New("connection reset")
	assert.Same(t, plain, TranslateError(plain))

	appErr := apperror.NewInsufficientStock("m", "2", "1")
	assert.Same(t, appErr, TranslateError(appErr))

	assert.Nil(t, TranslateError(nil))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", pgx.ErrNoRows)))
}
