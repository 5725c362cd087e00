package opname

import (
	"context"

	"workshop/internal/core/id"
	"workshop/internal/domain"
)

// Repository persists opnames with their items and snapshot.
type Repository interface {
	Create(ctx context.Context, o *Opname) error
	Update(ctx context.Context, o *Opname) error
	GetByID(ctx context.Context, opnameID id.ID) (*Opname, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Opname], error)

	// MarkAdjusted sets status Adjusted only if the opname is still
	// Submitted and returns InvalidStateTransition otherwise.
	MarkAdjusted(ctx context.Context, opnameID, adjustmentID id.ID) error
}
