package pricing

import (
	"context"
	"time"

	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/catalog"
)

// ItemPriceReader reads the primary selling price table.
type ItemPriceReader interface {
	// FindItemPrice returns the selling price of itemCode valid on date,
	// latest valid_from first, then latest created. nil when none.
	FindItemPrice(ctx context.Context, itemCode, priceList string, date time.Time) (*ItemPrice, error)

	// DefaultTaxTemplate returns the item's default tax template or "".
	DefaultTaxTemplate(ctx context.Context, itemCode string) (string, error)
}

// Repository persists service price rows.
type Repository interface {
	Create(ctx context.Context, p *ServicePrice) error
	Update(ctx context.Context, p *ServicePrice) error
	Delete(ctx context.Context, priceID id.ID) error
	GetByID(ctx context.Context, priceID id.ID) (*ServicePrice, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*ServicePrice], error)

	// FindActive returns the active row for ref valid on date, or nil.
	FindActive(ctx context.Context, ref catalog.Reference, priceList string, date time.Time) (*ServicePrice, error)

	// FindOverlapping returns active rows of the same (reference, price list)
	// whose window overlaps p's, excluding p itself.
	FindOverlapping(ctx context.Context, p *ServicePrice) ([]*ServicePrice, error)

	// CountActive counts active rows of the same pair, excluding exclude.
	CountActive(ctx context.Context, ref catalog.Reference, priceList string, exclude id.ID) (int, error)

	// Deactivate clears is_active on the given rows.
	Deactivate(ctx context.Context, ids []id.ID) error
}

// ItemLinker resolves the stock item behind a catalog reference.
type ItemLinker interface {
	ItemCode(ctx context.Context, ref catalog.Reference) (string, error)
	Exists(ctx context.Context, ref catalog.Reference) (bool, error)
}

// Cache memoizes resolutions. Implementations must call load on a miss.
type Cache interface {
	FetchResolution(ctx context.Context, key string, load func(ctx context.Context) (Resolution, error)) (Resolution, error)
	Invalidate(ctx context.Context) error
}
