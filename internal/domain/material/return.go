package material

import (
	"context"
	"fmt"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/types"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/pkg/logger"
)

// ReturnService provides business operations for material returns.
type ReturnService struct {
	Deps
	repo       ReturnRepository
	validation *domain.Pipeline[*Return]
}

// NewReturnService creates a material return service.
func NewReturnService(repo ReturnRepository, deps Deps) *ReturnService {
	s := &ReturnService{Deps: deps, repo: repo}
	s.validation = domain.NewPipeline[*Return]().
		Then("validate", func(ctx context.Context, r *Return) error { return r.Validate(ctx) }).
		Then("validate_qty_against_work_order", s.validateAgainstWorkOrder).
		Then("set_valuation_rates", s.setValuationRates).
		Pure("calculate_totals", (*Return).CalculateTotals).
		Pure("update_status", (*Return).SyncStatus)
	return s
}

// validateAgainstWorkOrder caps each part at the quantity the work order
// still holds. Consumed quantities are already net of submitted returns.
func (s *ReturnService) validateAgainstWorkOrder(ctx context.Context, r *Return) error {
	wo, err := s.loadWorkOrder(ctx, r.WorkOrder)
	if err != nil {
		return err
	}
	r.WorkOrderNumber = wo.Number

	left := make(map[string]types.Quantity)
	for n := range r.Items {
		it := &r.Items[n]
		row := n + 1
		line := wo.PartLineFor(it.Part)
		if line == nil || !wo.ConsumedQty(it.Part).IsPositive() {
			return apperror.NewValidation(fmt.Sprintf(
				"Part %s at row %d was not issued in Work Order %s", it.Part, row, wo.Number)).
				WithDetail("row", row)
		}
		available, seen := left[it.Part]
		if !seen {
			available = wo.ConsumedQty(it.Part)
		}
		if it.Qty.GreaterThan(available) {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"Return quantity %s for Part %s at row %d exceeds available quantity %s",
				it.Qty.String(), it.Part, row, available.String())).
				WithDetail("row", row)
		}
		left[it.Part] = available.Sub(it.Qty)
		it.WorkOrderItem = line.LineID
	}
	return nil
}

// setValuationRates resolves item codes and fills missing rates from the
// receiving warehouse or the part.
func (s *ReturnService) setValuationRates(ctx context.Context, r *Return) error {
	for n := range r.Items {
		it := &r.Items[n]
		part, itemCode, err := s.stockPart(ctx, it.Part, n+1)
		if err != nil {
			return err
		}
		it.ItemCode = itemCode
		if it.UOM == "" {
			it.UOM = part.UnitOfMeasure()
		}
		if it.ValuationRate.IsZero() {
			rate, _, err := s.valuationRate(ctx, it.Warehouse, part)
			if err != nil {
				return err
			}
			it.ValuationRate = rate
		}
	}
	return nil
}

// Create validates and stores a new return.
func (s *ReturnService) Create(ctx context.Context, r *Return) error {
	if err := s.validation.Run(ctx, r); err != nil {
		return err
	}
	audit.StampCreated(ctx, &r.BaseDocument)
	if err := s.nextNumber(ctx, numerator.PrefixMaterialReturn, &r.Document); err != nil {
		return err
	}
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, r)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "material return created", "id", r.ID, "number", r.Number, "work_order", r.WorkOrderNumber)
	return nil
}

// Update re-validates and stores a draft return.
func (s *ReturnService) Update(ctx context.Context, r *Return) error {
	if err := r.CanModify(ReturnEntityName); err != nil {
		return err
	}
	if err := s.validation.Run(ctx, r); err != nil {
		return err
	}
	audit.StampUpdated(ctx, &r.BaseDocument)
	return s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, r)
	})
}

// Submit posts the Material Receipt stock entry and takes the returned
// quantities off the work order.
func (s *ReturnService) Submit(ctx context.Context, returnID id.ID) (*Return, error) {
	var r *Return
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetByID(ctx, returnID)
		if err != nil {
			return err
		}
		if err := r.CanModify(ReturnEntityName); err != nil {
			return apperror.NewInvalidStateTransition(ReturnEntityName, string(r.Status), "submit")
		}
		if err := s.validation.Run(ctx, r); err != nil {
			return err
		}
		if err := r.MarkSubmitted(ReturnEntityName); err != nil {
			return err
		}
		r.SyncStatus()

		entry := r.BuildStockEntry()
		if err := s.Stock.Post(ctx, entry); err != nil {
			logger.Error(ctx, "stock entry creation failed", "material_return", r.Number, "error", err)
			return postingError("Create Stock Entry", err)
		}
		r.StockEntry = &entry.ID
		r.StockEntryNumber = entry.Number

		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		return s.WorkOrders.RecordConsumption(ctx, r.WorkOrder, r.Consumption(-1))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "material return submitted", "id", r.ID, "number", r.Number, "stock_entry", r.StockEntryNumber)
	return r, nil
}

// Cancel cancels the return and its stock entry and restores the work
// order consumed quantities.
func (s *ReturnService) Cancel(ctx context.Context, returnID id.ID) (*Return, error) {
	var r *Return
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.repo.GetByID(ctx, returnID)
		if err != nil {
			return err
		}
		if r.DocStatus != entity.DocStatusSubmitted {
			return apperror.NewInvalidStateTransition(ReturnEntityName, string(r.Status), "cancel")
		}
		if r.StockEntry != nil {
			if err := s.Stock.Cancel(ctx, *r.StockEntry); err != nil {
				return postingError("Cancel Stock Entry", err)
			}
		}
		if err := r.MarkCancelled(ReturnEntityName); err != nil {
			return err
		}
		r.SyncStatus()
		audit.StampUpdated(ctx, &r.BaseDocument)
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		return s.WorkOrders.RecordConsumption(ctx, r.WorkOrder, r.Consumption(1))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "material return cancelled", "id", r.ID, "number", r.Number)
	return r, nil
}

// GetByID returns a return with its rows.
func (s *ReturnService) GetByID(ctx context.Context, returnID id.ID) (*Return, error) {
	return s.repo.GetByID(ctx, returnID)
}

// List returns material returns.
func (s *ReturnService) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Return], error) {
	return s.repo.List(ctx, f)
}

// ReturnableParts lists the consumed parts of a work order.
func (s *ReturnService) ReturnableParts(ctx context.Context, workOrderID id.ID) ([]ReturnablePart, error) {
	wo, err := s.WorkOrders.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	var out []ReturnablePart
	for _, line := range wo.Parts {
		if !line.ConsumedQty.IsPositive() {
			continue
		}
		part, err := s.Parts.GetPart(ctx, line.Part)
		if err != nil {
			return nil, err
		}
		if part.Item() == "" {
			continue
		}
		rate := part.ValuationRate
		if rate.IsZero() {
			rate = line.Rate
		}
		out = append(out, ReturnablePart{
			Part:          line.Part,
			PartName:      part.PartName,
			ItemCode:      part.Item(),
			ConsumedQty:   line.ConsumedQty,
			UOM:           part.UnitOfMeasure(),
			ValuationRate: rate,
			Amount:        line.ConsumedQty.Mul(rate),
			WorkOrderItem: line.LineID,
		})
	}
	return out, nil
}
