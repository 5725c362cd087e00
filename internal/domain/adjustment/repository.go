package adjustment

import (
	"context"

	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/opname"
)

// Repository persists adjustments with their lines and stock entry logs.
type Repository interface {
	Create(ctx context.Context, a *Adjustment) error
	Update(ctx context.Context, a *Adjustment) error
	GetByID(ctx context.Context, adjustmentID id.ID) (*Adjustment, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Adjustment], error)

	// ActiveForOpname lists draft and submitted adjustments that reference
	// the opname.
	ActiveForOpname(ctx context.Context, opnameID id.ID) ([]opname.AdjustmentRef, error)

	// ClaimPosting moves a submitted adjustment from a retryable posting
	// status to PostingInProgress. It reports false when another run holds
	// the adjustment or there is nothing left to post.
	ClaimPosting(ctx context.Context, adjustmentID id.ID) (bool, error)

	// SetPostingResult replaces the stock entry logs and posting state
	// without touching the document version.
	SetPostingResult(ctx context.Context, adjustmentID id.ID, result PostingResult) error
}

// PostingResult is the outcome of posting an adjustment's stock entries.
type PostingResult struct {
	Status PostingStatus
	Error  *string
	Logs   []StockEntryLog
}
