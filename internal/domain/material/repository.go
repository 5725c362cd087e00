package material

import (
	"context"

	"workshop/internal/core/id"
	"workshop/internal/domain"
)

// IssueRepository persists material issues with their rows.
type IssueRepository interface {
	Create(ctx context.Context, i *Issue) error
	Update(ctx context.Context, i *Issue) error
	GetByID(ctx context.Context, issueID id.ID) (*Issue, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Issue], error)

	// IssuedParts lists parts of draft and submitted issues of the work
	// order other than exclude.
	IssuedParts(ctx context.Context, workOrderID, exclude id.ID, parts []string) ([]IssuedPart, error)
}

// ReturnRepository persists material returns with their rows.
type ReturnRepository interface {
	Create(ctx context.Context, r *Return) error
	Update(ctx context.Context, r *Return) error
	GetByID(ctx context.Context, returnID id.ID) (*Return, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Return], error)
}
