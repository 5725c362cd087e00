// Package tx provides transaction management abstractions so that domain
// services do not depend on pgx directly.
package tx

import (
	"context"
)

// Manager runs a unit of work inside a database transaction.
// Nested calls reuse the transaction already carried by ctx.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs fn directly. Used by tests and by services wired without a database.
type Nop struct{}

func (Nop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
