package catalog

import (
	"context"
)

// Repository reads catalog master data.
// Get* methods return apperror NotFound for unknown codes;
// Find* methods return nil without error when nothing matches.
type Repository interface {
	GetPart(ctx context.Context, code string) (*Part, error)
	GetJobType(ctx context.Context, code string) (*JobType, error)
	GetServicePackage(ctx context.Context, code string) (*ServicePackage, error)

	// FindItemByBarcode looks up the item barcode table.
	FindItemByBarcode(ctx context.Context, barcode string) (string, error)
	FindPartByItem(ctx context.Context, itemCode string) (*Part, error)
	FindPartByBarcode(ctx context.Context, barcode string) (*Part, error)

	ListParts(ctx context.Context, search string, limit, offset int) ([]Part, error)

	// SetItemLink points a part, job type or package at itemCode (nil clears it)
	// and announces the change to price caches. NotFound when ref is unknown.
	SetItemLink(ctx context.Context, ref Reference, itemCode *string) error
}
