package material

import (
	"context"
	"fmt"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/workorder"
)

// WorkOrders reads work orders and records consumed part quantities.
type WorkOrders interface {
	GetByID(ctx context.Context, workOrderID id.ID) (*workorder.WorkOrder, error)
	RecordConsumption(ctx context.Context, workOrderID id.ID, deltas []workorder.ConsumedDelta) error
}

// Parts resolves the stock item of a part.
type Parts interface {
	GetPart(ctx context.Context, code string) (*catalog.Part, error)
}

// StockEntries is the inventory movement service.
type StockEntries interface {
	Post(ctx context.Context, e *stock.StockEntry) error
	Cancel(ctx context.Context, entryID id.ID) error
	Balance(ctx context.Context, warehouse, itemCode string) (entity.StockBalance, bool, error)
}

// Deps are shared by the issue and return services.
type Deps struct {
	WorkOrders WorkOrders
	Parts      Parts
	Stock      StockEntries
	Numerator  numerator.Generator
	TxManager  tx.Manager
}

func (d Deps) loadWorkOrder(ctx context.Context, workOrderID id.ID) (*workorder.WorkOrder, error) {
	wo, err := d.WorkOrders.GetByID(ctx, workOrderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewReferenceNotFound(workorder.EntityName, workOrderID)
		}
		return nil, err
	}
	if err := wo.AcceptsMaterial(); err != nil {
		return nil, err
	}
	return wo, nil
}

// stockPart returns the part and its item code; a part without an item
// cannot move stock.
func (d Deps) stockPart(ctx context.Context, code string, row int) (*catalog.Part, string, error) {
	part, err := d.Parts.GetPart(ctx, code)
	if err != nil {
		return nil, "", err
	}
	itemCode := part.Item()
	if itemCode == "" {
		return nil, "", apperror.NewMissingRequiredField("item_code").
			WithDetail("part", code).
			WithDetail("row", row).
			WithCause(fmt.Errorf("part %s is not linked to any item", code))
	}
	return part, itemCode, nil
}

// valuationRate is the warehouse valuation rate of the item, falling back
// to the part's own rate when the item never moved there.
func (d Deps) valuationRate(ctx context.Context, warehouse string, part *catalog.Part) (types.Money, types.Quantity, error) {
	bal, found, err := d.Stock.Balance(ctx, warehouse, part.Item())
	if err != nil {
		return types.Zero(), types.Zero(), fmt.Errorf("read balance of %s: %w", part.Item(), err)
	}
	rate := part.ValuationRate
	if found && !bal.ValuationRate.IsZero() {
		rate = bal.ValuationRate
	}
	available := types.Zero()
	if found {
		available = bal.Quantity
	}
	return rate, available, nil
}

func (d Deps) nextNumber(ctx context.Context, prefix string, doc *entity.Document) error {
	if doc.Number != "" {
		return nil
	}
	number, err := d.Numerator.GetNextNumber(ctx, numerator.DefaultConfig(prefix), nil, doc.PostingDate)
	if err != nil {
		return fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number
	return nil
}

// postingError keeps business errors of the stock service (shortage,
// closed period) and wraps the rest.
func postingError(operation string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewDownstreamPostingFailure(operation, err)
}
