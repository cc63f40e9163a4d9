package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lotcost/internal/core/apperror"
)

// SQLSTATE codes that mean "another transaction got in the way".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateLockNotAvailable     = "55P03"
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"
)

// TranslateError maps contention SQLSTATEs to CONCURRENT_MODIFICATION and
// constraint violations to validation errors. AppErrors and other errors are
// returned unchanged.
func TranslateError(err error) error {
	if err == nil || apperror.IsAppError(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateLockNotAvailable:
		return apperror.NewConcurrentModification("transaction", pgErr.Code).WithCause(err)
	case sqlStateUniqueViolation:
		return apperror.NewValidation("record already exists").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	case sqlStateForeignKeyViolation, sqlStateCheckViolation:
		return apperror.NewValidation("constraint violated").
			WithDetail("constraint", pgErr.ConstraintName).
			WithCause(err)
	}
	return err
}

// IsNoRows reports whether err is pgx.ErrNoRows.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
