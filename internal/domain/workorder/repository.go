package workorder

import (
	"context"

	"workshop/internal/core/id"
	"workshop/internal/domain"
)

// Repository persists work orders with their lines.
type Repository interface {
	Create(ctx context.Context, w *WorkOrder) error
	Update(ctx context.Context, w *WorkOrder) error
	GetByID(ctx context.Context, workOrderID id.ID) (*WorkOrder, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*WorkOrder], error)

	// SetBillingStatus updates only billing_status.
	SetBillingStatus(ctx context.Context, workOrderID id.ID, status BillingStatus) error

	// AddConsumedQty applies material issue and return quantities to part
	// rows and bumps the work order version.
	AddConsumedQty(ctx context.Context, workOrderID id.ID, deltas []ConsumedDelta) error
}
