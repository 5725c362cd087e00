package material

import (
	"context"
	"fmt"
	"strings"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/types"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/internal/domain/workorder"
	"workshop/pkg/logger"
)

// IssueService provides business operations for workshop material issues.
type IssueService struct {
	Deps
	repo       IssueRepository
	validation *domain.Pipeline[*Issue]
}

// NewIssueService creates a material issue service.
func NewIssueService(repo IssueRepository, deps Deps) *IssueService {
	s := &IssueService{Deps: deps, repo: repo}
	s.validation = domain.NewPipeline[*Issue]().
		Then("validate", func(ctx context.Context, i *Issue) error { return i.Validate(ctx) }).
		Then("validate_work_order", s.validateWorkOrder).
		Then("check_for_duplicates", s.checkForDuplicates).
		Then("validate_items", s.validateItems).
		Pure("calculate_totals", (*Issue).CalculateTotals).
		Pure("update_status", (*Issue).SyncStatus)
	return s
}

func (s *IssueService) validateWorkOrder(ctx context.Context, i *Issue) error {
	wo, err := s.loadWorkOrder(ctx, i.WorkOrder)
	if err != nil {
		return err
	}
	for n, it := range i.Items {
		if wo.PartLineFor(it.Part) == nil {
			return apperror.NewReferenceMismatch(fmt.Sprintf(
				"Part %s at row %d is not on Work Order %s", it.Part, n+1, wo.Number)).
				WithDetail("row", n+1)
		}
	}
	i.WorkOrderNumber = wo.Number
	return nil
}

// checkForDuplicates rejects parts already on another draft or submitted
// issue of the same work order.
func (s *IssueService) checkForDuplicates(ctx context.Context, i *Issue) error {
	parts := make([]string, 0, len(i.Items))
	for _, it := range i.Items {
		parts = append(parts, it.Part)
	}
	found, err := s.repo.IssuedParts(ctx, i.WorkOrder, i.ID, parts)
	if err != nil {
		return fmt.Errorf("find issued parts: %w", err)
	}
	if len(found) == 0 {
		return nil
	}
	dup := found[0]
	var msg string
	if dup.DocStatus == entity.DocStatusSubmitted {
		msg = fmt.Sprintf("Part %s has already been issued for Work Order %s in Material Issue %s",
			dup.Part, i.WorkOrderNumber, dup.IssueNumber)
	} else {
		msg = fmt.Sprintf("Part %s already exists in draft Material Issue %s for Work Order %s",
			dup.Part, dup.IssueNumber, i.WorkOrderNumber)
	}
	return apperror.NewValidation(msg).
		WithDetail("part", dup.Part).
		WithDetail("material_issue", dup.IssueID)
}

// validateItems resolves item codes and rates and checks the warehouse
// holds enough of each part. Posting checks availability again under lock.
func (s *IssueService) validateItems(ctx context.Context, i *Issue) error {
	for n := range i.Items {
		it := &i.Items[n]
		part, itemCode, err := s.stockPart(ctx, it.Part, n+1)
		if err != nil {
			return err
		}
		it.ItemCode = itemCode
		it.PartName = part.PartName
		if it.UOM == "" {
			it.UOM = part.UnitOfMeasure()
		}

		rate, available, err := s.valuationRate(ctx, i.Warehouse, part)
		if err != nil {
			return err
		}
		if it.Qty.GreaterThan(available) {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"Insufficient stock for Part %s (Item %s) in %s. Required: %s, Available: %s",
				it.Part, itemCode, i.Warehouse, it.Qty.String(), available.String())).
				WithDetail("row", n+1)
		}
		it.Rate = rate
	}
	return nil
}

// Create validates and stores a new issue.
func (s *IssueService) Create(ctx context.Context, i *Issue) error {
	if err := s.validation.Run(ctx, i); err != nil {
		return err
	}
	audit.StampCreated(ctx, &i.BaseDocument)
	if err := s.nextNumber(ctx, numerator.PrefixMaterialIssue, &i.Document); err != nil {
		return err
	}
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, i)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "material issue created", "id", i.ID, "number", i.Number, "work_order", i.WorkOrderNumber)
	return nil
}

// Update re-validates and stores a draft issue.
func (s *IssueService) Update(ctx context.Context, i *Issue) error {
	if err := i.CanModify(IssueEntityName); err != nil {
		return err
	}
	if err := s.validation.Run(ctx, i); err != nil {
		return err
	}
	audit.StampUpdated(ctx, &i.BaseDocument)
	return s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, i)
	})
}

// Submit posts the Material Issue stock entry and adds the issued
// quantities to the work order. Any failure leaves the issue in draft.
func (s *IssueService) Submit(ctx context.Context, issueID id.ID) (*Issue, error) {
	var i *Issue
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		i, err = s.repo.GetByID(ctx, issueID)
		if err != nil {
			return err
		}
		if err := i.CanModify(IssueEntityName); err != nil {
			return apperror.NewInvalidStateTransition(IssueEntityName, string(i.Status), "submit")
		}
		if err := s.validation.Run(ctx, i); err != nil {
			return err
		}
		if err := i.MarkSubmitted(IssueEntityName); err != nil {
			return err
		}
		i.SyncStatus()

		entry := i.BuildStockEntry()
		if err := s.Stock.Post(ctx, entry); err != nil {
			logger.Error(ctx, "stock entry creation failed", "material_issue", i.Number, "error", err)
			return postingError("Create Stock Entry", err)
		}
		i.StockEntry = &entry.ID
		i.StockEntryNumber = entry.Number

		if err := s.repo.Update(ctx, i); err != nil {
			return err
		}
		return s.WorkOrders.RecordConsumption(ctx, i.WorkOrder, i.Consumption(1))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "material issue submitted", "id", i.ID, "number", i.Number, "stock_entry", i.StockEntryNumber)
	return i, nil
}

// Cancel cancels the issue and its stock entry and takes the issued
// quantities off the work order.
func (s *IssueService) Cancel(ctx context.Context, issueID id.ID) (*Issue, error) {
	var i *Issue
	err := s.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		i, err = s.repo.GetByID(ctx, issueID)
		if err != nil {
			return err
		}
		if i.DocStatus != entity.DocStatusSubmitted {
			return apperror.NewInvalidStateTransition(IssueEntityName, string(i.Status), "cancel")
		}
		if i.StockEntry != nil {
			if err := s.Stock.Cancel(ctx, *i.StockEntry); err != nil {
				return postingError("Cancel Stock Entry", err)
			}
		}
		if err := i.MarkCancelled(IssueEntityName); err != nil {
			return err
		}
		i.SyncStatus()
		audit.StampUpdated(ctx, &i.BaseDocument)
		if err := s.repo.Update(ctx, i); err != nil {
			return err
		}
		return s.WorkOrders.RecordConsumption(ctx, i.WorkOrder, i.Consumption(-1))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "material issue cancelled", "id", i.ID, "number", i.Number)
	return i, nil
}

// GetByID returns an issue with its rows.
func (s *IssueService) GetByID(ctx context.Context, issueID id.ID) (*Issue, error) {
	return s.repo.GetByID(ctx, issueID)
}

// List returns issues.
func (s *IssueService) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Issue], error) {
	return s.repo.List(ctx, f)
}

// IssuableParts lists the work order part rows still to be issued with the
// quantity the warehouse can supply. A row's own warehouse wins over
// warehouse.
func (s *IssueService) IssuableParts(ctx context.Context, workOrderID id.ID, warehouse string) ([]IssuablePart, error) {
	wo, err := s.loadWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	var out []IssuablePart
	for _, line := range wo.Parts {
		remaining := line.RemainingQty()
		if !remaining.IsPositive() {
			continue
		}
		part, err := s.Parts.GetPart(ctx, line.Part)
		if err != nil {
			return nil, err
		}
		if part.Item() == "" {
			continue
		}
		wh := line.Warehouse
		if strings.TrimSpace(wh) == "" {
			wh = warehouse
		}
		if wh == "" {
			return nil, apperror.NewMissingRequiredField("warehouse")
		}
		rate, available, err := s.valuationRate(ctx, wh, part)
		if err != nil {
			return nil, err
		}
		qty := remaining
		if available.LessThan(qty) {
			qty = available
		}
		if qty.IsNegative() {
			qty = types.Zero()
		}
		out = append(out, IssuablePart{
			Part:          line.Part,
			PartName:      part.PartName,
			ItemCode:      part.Item(),
			RequiredQty:   line.Quantity,
			ConsumedQty:   line.ConsumedQty,
			AvailableQty:  available,
			Qty:           qty,
			ValuationRate: rate,
		})
	}
	return out, nil
}

var _ WorkOrders = (*workorder.Service)(nil)
