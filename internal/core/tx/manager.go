// Package tx provides transaction management abstractions.
// Domain services depend on these interfaces; the Postgres and in-memory
// implementations live under internal/infrastructure.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// ReadOnly executes fn against a consistent read-only snapshot.
	// Inside an existing transaction it reuses that transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error

	// RunInSavepoint executes fn inside a savepoint of the current transaction.
	// A failing fn rolls back only its own work; the outer transaction stays usable.
	// Without an outer transaction it behaves like RunInTransaction.
	RunInSavepoint(ctx context.Context, fn func(ctx context.Context) error) error

	// InTransaction reports whether ctx carries an active transaction.
	InTransaction(ctx context.Context) bool
}
