package stock

import (
	"context"
	"fmt"
	"strings"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/security"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain/audit"
	"workshop/pkg/logger"
)

// Service posts and cancels stock entries.
type Service struct {
	repo      Repository
	numerator numerator.Generator
	txManager tx.Manager
	periods   security.PeriodPolicy
}

// NewService creates a stock service. A nil policy leaves all periods open.
func NewService(repo Repository, gen numerator.Generator, txm tx.Manager, periods security.PeriodPolicy) *Service {
	if periods == nil {
		periods = security.OpenPolicy{}
	}
	return &Service{
		repo:      repo,
		numerator: gen,
		txManager: txm,
		periods:   periods,
	}
}

// Post inserts and submits e, recording its register movements.
// Issues fail with QuantityViolation when the warehouse runs short.
func (s *Service) Post(ctx context.Context, e *StockEntry) error {
	if err := e.Validate(ctx); err != nil {
		return err
	}
	if err := s.periods.CanPost(ctx, e.PostingDate); err != nil {
		return err
	}
	audit.StampCreated(ctx, &e.BaseDocument)
	if e.Number == "" {
		opts := &numerator.Options{Strategy: numerator.StrategyCached}
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixStockEntry), opts, e.PostingDate)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		e.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if e.EntryType == EntryMaterialIssue {
			if err := s.checkAvailability(ctx, e); err != nil {
				return err
			}
		}
		if err := e.MarkSubmitted(EntityName); err != nil {
			return err
		}
		if err := s.repo.CreateEntry(ctx, e); err != nil {
			return fmt.Errorf("create stock entry: %w", err)
		}
		return s.repo.CreateMovements(ctx, e.Movements())
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock entry posted",
		"id", e.ID,
		"number", e.Number,
		"type", e.EntryType,
		"items", len(e.Items))
	return nil
}

// checkAvailability locks the balances an issue draws from.
func (s *Service) checkAvailability(ctx context.Context, e *StockEntry) error {
	need := make(map[[2]string]types.Quantity)
	for _, it := range e.Items {
		key := [2]string{it.SourceWarehouse, it.ItemCode}
		need[key] = need[key].Add(it.Qty)
	}
	for _, it := range e.Items {
		key := [2]string{it.SourceWarehouse, it.ItemCode}
		qty, ok := need[key]
		if !ok {
			continue
		}
		delete(need, key)

		bal, err := s.repo.GetBalanceForUpdate(ctx, it.SourceWarehouse, it.ItemCode)
		if err != nil {
			return fmt.Errorf("lock balance: %w", err)
		}
		available := types.Zero()
		if bal != nil {
			available = bal.Quantity
		}
		if available.LessThan(qty) {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"%s units of Item %s needed in Warehouse %s, only %s available",
				qty.String(), it.ItemCode, it.SourceWarehouse, available.String())).
				WithDetail("item_code", it.ItemCode).
				WithDetail("warehouse", it.SourceWarehouse)
		}
	}
	return nil
}

// CheckCancellation reports whether entryID can be cancelled. An entry that
// is already cancelled reports CanCancel so callers can skip it.
func (s *Service) CheckCancellation(ctx context.Context, entryID id.ID) (Eligibility, error) {
	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return Eligibility{}, err
	}
	res := Eligibility{
		EntryID:   e.ID,
		Number:    e.Number,
		EntryType: e.EntryType,
		DocStatus: e.DocStatus,
	}

	switch e.DocStatus {
	case entity.DocStatusCancelled:
		res.CanCancel = true
		return res, nil
	case entity.DocStatusDraft:
		res.Reason = "Not in submitted state"
		return res, nil
	}

	hasJournal, err := s.repo.HasJournalEntries(ctx, e.ID)
	if err != nil {
		return res, err
	}
	if hasJournal {
		res.Reason = "Has linked journal entries"
		return res, nil
	}

	later, err := s.repo.HasSubsequentMovements(ctx, SubsequentFilter{
		ExcludeRecorder: e.ID,
		ItemCodes:       e.ItemCodes(),
		Warehouses:      e.Warehouses(),
		AfterPeriod:     e.PostingDate,
		CreatedAfter:    e.CreatedAt,
	})
	if err != nil {
		return res, err
	}
	if later {
		res.Reason = "Has subsequent stock transactions"
		return res, nil
	}

	if err := s.periods.CanCancel(ctx, e.PostingDate); err != nil {
		if appErr, ok := apperror.AsAppError(err); ok && appErr.Code == apperror.CodePeriodClosed {
			res.Reason = "Posting date is in a closed accounting period"
			return res, nil
		}
		return res, err
	}

	res.CanCancel = true
	return res, nil
}

// Cancel cancels a submitted entry and removes its movements.
func (s *Service) Cancel(ctx context.Context, entryID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		check, err := s.CheckCancellation(ctx, entryID)
		if err != nil {
			return err
		}
		if check.DocStatus == entity.DocStatusCancelled {
			return nil
		}
		if !check.CanCancel {
			appErr := apperror.NewInvalidStateTransition(EntityName, check.DocStatus.String(), "cancel").
				WithDetail("stock_entry", check.Number).
				WithDetail("reason", check.Reason)
			appErr.Message = fmt.Sprintf("Cannot cancel %s %s: %s", EntityName, check.Number, check.Reason)
			return appErr
		}

		e, err := s.repo.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if err := e.MarkCancelled(EntityName); err != nil {
			return err
		}
		audit.StampUpdated(ctx, &e.BaseDocument)
		if err := s.repo.UpdateEntry(ctx, e); err != nil {
			return err
		}
		if err := s.repo.DeleteMovementsByRecorder(ctx, e.ID); err != nil {
			return fmt.Errorf("delete movements: %w", err)
		}
		logger.Info(ctx, "stock entry cancelled", "id", e.ID, "number", e.Number)
		return nil
	})
}

// CancelStandalone cancels an entry posted directly against the register.
// Entries raised by another document (adjustment, material issue or
// return) are cancelled through that document so its state stays in step.
func (s *Service) CancelStandalone(ctx context.Context, entryID id.ID) error {
	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if e.ReferenceType != "" {
		appErr := apperror.NewInvalidStateTransition(EntityName, e.DocStatus.String(), "cancel").
			WithDetail("reference_doctype", e.ReferenceType).
			WithDetail("reference_docname", e.ReferenceID)
		appErr.Message = fmt.Sprintf("%s %s was created by %s %s; cancel that document instead",
			EntityName, e.Number, e.ReferenceType, e.ReferenceID)
		return appErr
	}
	return s.Cancel(ctx, entryID)
}

// GetEntry returns a stock entry with its items.
func (s *Service) GetEntry(ctx context.Context, entryID id.ID) (*StockEntry, error) {
	return s.repo.GetEntry(ctx, entryID)
}

// Balance returns the quantity and valuation rate of an item in a warehouse.
// found is false when the item never moved there.
func (s *Service) Balance(ctx context.Context, warehouse, itemCode string) (entity.StockBalance, bool, error) {
	bal, err := s.repo.GetBalance(ctx, warehouse, itemCode)
	if err != nil {
		return entity.StockBalance{}, false, err
	}
	if bal == nil {
		return entity.StockBalance{Warehouse: warehouse, ItemCode: itemCode}, false, nil
	}
	return *bal, true, nil
}

// Balances lists the balances of a warehouse.
func (s *Service) Balances(ctx context.Context, warehouse string, f BalanceFilter) ([]entity.StockBalance, error) {
	if strings.TrimSpace(warehouse) == "" {
		return nil, apperror.NewMissingRequiredField("warehouse")
	}
	return s.repo.GetBalancesByWarehouse(ctx, warehouse, f)
}

// Movements returns the register lines written by a stock entry.
func (s *Service) Movements(ctx context.Context, entryID id.ID) ([]entity.StockMovement, error) {
	return s.repo.GetMovementsByRecorder(ctx, entryID)
}
