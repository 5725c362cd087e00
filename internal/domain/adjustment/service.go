package adjustment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/tx"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/opname"
	"workshop/internal/domain/registers/stock"
	"workshop/pkg/logger"
)

// Opnames reads the opname an adjustment references and links the
// adjustment to it.
type Opnames interface {
	GetByID(ctx context.Context, opnameID id.ID) (*opname.Opname, error)
	MarkAdjusted(ctx context.Context, opnameID, adjustmentID id.ID) error
}

// Parts resolves the stock item of a part when a line lacks one.
type Parts interface {
	GetPart(ctx context.Context, code string) (*catalog.Part, error)
}

// StockEntries is the inventory movement service.
type StockEntries interface {
	Post(ctx context.Context, e *stock.StockEntry) error
	CheckCancellation(ctx context.Context, entryID id.ID) (stock.Eligibility, error)
	Cancel(ctx context.Context, entryID id.ID) error
}

// Dispatcher hands stock entry posting to a background worker.
type Dispatcher interface {
	EnqueuePosting(ctx context.Context, adjustmentID id.ID, userID string) error
}

// Service provides business operations for stock adjustments.
type Service struct {
	repo       Repository
	opnames    Opnames
	parts      Parts
	stock      StockEntries
	dispatcher Dispatcher
	history    audit.Recorder
	numerator  numerator.Generator
	txManager  tx.Manager
	cfg        Config
	now        func() time.Time
	validation *domain.Pipeline[*Adjustment]
}

// ServiceConfig wires an adjustment Service. A nil Dispatcher posts every
// adjustment synchronously.
type ServiceConfig struct {
	Repo       Repository
	Opnames    Opnames
	Parts      Parts
	Stock      StockEntries
	Dispatcher Dispatcher
	History    audit.Recorder
	Numerator  numerator.Generator
	TxManager  tx.Manager
	Config     Config
}

// NewService creates an adjustment service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Config.AsyncThreshold <= 0 {
		cfg.Config.AsyncThreshold = DefaultAsyncThreshold
	}
	if cfg.Config.ZeroValuation == "" {
		cfg.Config.ZeroValuation = ZeroValuationAllowWhenZero
	}
	s := &Service{
		repo:       cfg.Repo,
		opnames:    cfg.Opnames,
		parts:      cfg.Parts,
		stock:      cfg.Stock,
		dispatcher: cfg.Dispatcher,
		history:    cfg.History,
		numerator:  cfg.Numerator,
		txManager:  cfg.TxManager,
		cfg:        cfg.Config,
		now:        time.Now,
	}
	s.validation = domain.NewPipeline[*Adjustment]().
		Then("validate", func(ctx context.Context, a *Adjustment) error { return a.Validate(ctx) }).
		Then("validate_reference", s.validateReference).
		Pure("calculate_totals", CalculateTotals).
		Pure("update_status", (*Adjustment).SyncStatus)
	return s
}

func (s *Service) validateReference(ctx context.Context, a *Adjustment) error {
	o, err := s.opnames.GetByID(ctx, a.ReferenceOpname)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewReferenceNotFound(opname.EntityName, a.ReferenceOpname)
		}
		return err
	}
	if o.Warehouse != a.Warehouse {
		return apperror.NewReferenceMismatch(fmt.Sprintf(
			"Warehouse %s does not match Stock Opname %s warehouse %s", a.Warehouse, o.Number, o.Warehouse))
	}

	// An opname is reconciled once: only a submitted count can be adjusted,
	// and only by the adjustment it is linked to.
	if o.DocStatus != entity.DocStatusSubmitted {
		return apperror.NewValidation(fmt.Sprintf(
			"Stock Opname %s is %s; only a submitted stock opname can be adjusted", o.Number, o.Status)).
			WithDetail("opname_status", o.Status)
	}
	if o.Status == opname.StatusAdjusted && (o.Adjustment == nil || *o.Adjustment != a.ID) {
		appErr := apperror.NewValidation(fmt.Sprintf("Stock Opname %s has already been adjusted", o.Number))
		if o.Adjustment != nil {
			appErr = appErr.WithDetail("adjustment", *o.Adjustment)
		}
		return appErr
	}
	others, err := s.repo.ActiveForOpname(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("find adjustments of opname: %w", err)
	}
	for _, other := range others {
		if other.ID != a.ID {
			return apperror.NewValidation(fmt.Sprintf(
				"Stock Opname %s is already referenced by Stock Adjustment %s", o.Number, other.Number)).
				WithDetail("adjustment", other.ID)
		}
	}

	a.ReferenceOpnameNumber = o.Number
	return nil
}

// linkOpname marks the referenced opname Adjusted by a unless that already
// happened when a was created from it.
func (s *Service) linkOpname(ctx context.Context, a *Adjustment) error {
	o, err := s.opnames.GetByID(ctx, a.ReferenceOpname)
	if err != nil {
		return err
	}
	if o.Status == opname.StatusAdjusted {
		return nil
	}
	return s.opnames.MarkAdjusted(ctx, o.ID, a.ID)
}

// CreateFromOpname builds and stores a draft adjustment from opname variance lines.
func (s *Service) CreateFromOpname(ctx context.Context, o *opname.Opname, lines []opname.VarianceLine) (opname.AdjustmentRef, error) {
	a := New(o.Warehouse)
	a.PostingDate = s.now()
	a.ReferenceOpname = o.ID
	a.ReferenceOpnameNumber = o.Number
	a.Remarks = fmt.Sprintf("Created from Stock Opname %s", o.Number)
	for _, l := range lines {
		a.Items = append(a.Items, Line{
			Part:          l.Part,
			ItemCode:      l.ItemCode,
			UOM:           l.UOM,
			ActualQty:     l.SystemQty,
			CountedQty:    l.CountedQty,
			ValuationRate: l.ValuationRate,
		})
	}
	if err := s.Create(ctx, a); err != nil {
		return opname.AdjustmentRef{}, err
	}
	return opname.AdjustmentRef{ID: a.ID, Number: a.Number}, nil
}

// Create validates and stores a new adjustment.
func (s *Service) Create(ctx context.Context, a *Adjustment) error {
	if err := s.validation.Run(ctx, a); err != nil {
		return err
	}
	audit.StampCreated(ctx, &a.BaseDocument)
	if a.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixAdjustment), nil, a.PostingDate)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		a.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.recordStatus(ctx, a)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "stock adjustment created", "id", a.ID, "number", a.Number, "items", len(a.Items))
	return nil
}

// Update re-validates and stores a draft adjustment.
func (s *Service) Update(ctx context.Context, a *Adjustment) error {
	if err := a.CanModify(EntityName); err != nil {
		return err
	}
	if err := s.validation.Run(ctx, a); err != nil {
		return err
	}
	audit.StampUpdated(ctx, &a.BaseDocument)
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, a)
	})
}

// Submit submits the adjustment and posts its stock entries. Adjustments
// with more lines than the async threshold are queued for a background
// worker; the rest post in the submitting transaction, so a posting
// failure leaves the adjustment in draft.
func (s *Service) Submit(ctx context.Context, adjustmentID id.ID) (*Adjustment, error) {
	var a *Adjustment
	queued := false
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if err := a.CanModify(EntityName); err != nil {
			return apperror.NewInvalidStateTransition(EntityName, string(a.Status), "submit")
		}
		if err := s.validation.Run(ctx, a); err != nil {
			return err
		}
		if err := s.linkOpname(ctx, a); err != nil {
			return err
		}
		if err := a.MarkSubmitted(EntityName); err != nil {
			return err
		}
		a.SyncStatus()

		queued = s.dispatcher != nil && len(a.Items) > s.cfg.AsyncThreshold
		if queued {
			a.PostingStatus = PostingQueued
		} else {
			logs, err := s.post(ctx, a)
			if err != nil {
				return err
			}
			a.PostingStatus = PostingDone
			a.StockEntryLogs = logs
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		if !queued {
			if err := s.repo.SetPostingResult(ctx, a.ID, PostingResult{Status: PostingDone, Logs: a.StockEntryLogs}); err != nil {
				return err
			}
		}
		return s.recordStatus(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	if queued {
		if err := s.dispatcher.EnqueuePosting(ctx, a.ID, appctx.GetUserID(ctx)); err != nil {
			logger.Error(ctx, "enqueue stock entry posting failed", "adjustment", a.Number, "error", err)
			if markErr := s.MarkPostingFailed(ctx, a.ID, err); markErr != nil {
				logger.Error(ctx, "record posting failure", "adjustment", a.Number, "error", markErr)
			}
			return a, apperror.NewDownstreamPostingFailure("Queue stock entry posting", err)
		}
		logger.Info(ctx, "stock entry creation has been queued", "adjustment", a.Number, "items", len(a.Items))
		return a, nil
	}

	logger.Info(ctx, "stock adjustment submitted", "id", a.ID, "number", a.Number, "entries", len(a.StockEntryLogs))
	return a, nil
}

// PostStockEntries posts the stock entries of a queued adjustment. It is
// the background counterpart of Submit and is safe to repeat: when the
// adjustment is already posted, claimed by another run or cancelled
// meanwhile, nothing is posted.
func (s *Service) PostStockEntries(ctx context.Context, adjustmentID id.ID) error {
	claimed, err := s.claimAndPost(ctx, adjustmentID)
	if err != nil {
		return err
	}
	if !claimed {
		logger.Info(ctx, "skip posting of adjustment not awaiting it", "adjustment", adjustmentID)
	}
	return nil
}

// RetryPosting posts the stock entries of an adjustment whose posting is
// queued or failed. A failed attempt is recorded on the adjustment.
func (s *Service) RetryPosting(ctx context.Context, adjustmentID id.ID) (*Adjustment, error) {
	claimed, err := s.claimAndPost(ctx, adjustmentID)
	if err != nil {
		if claimed {
			if markErr := s.MarkPostingFailed(ctx, adjustmentID, err); markErr != nil {
				logger.Error(ctx, "record posting failure", "adjustment", adjustmentID, "error", markErr)
			}
		}
		return nil, err
	}
	a, err := s.repo.GetByID(ctx, adjustmentID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		state := string(a.PostingStatus)
		if state == "" || a.DocStatus != entity.DocStatusSubmitted {
			state = string(a.Status)
		}
		return nil, apperror.NewInvalidStateTransition(EntityName, state, "retry posting of").
			WithDetail("posting_status", a.PostingStatus)
	}
	logger.Info(ctx, "stock adjustment posted on retry", "adjustment", a.Number, "entries", len(a.StockEntryLogs))
	return a, nil
}

// claimAndPost claims the adjustment for this run and posts it in one
// transaction. claimed is false when the claim was lost.
func (s *Service) claimAndPost(ctx context.Context, adjustmentID id.ID) (claimed bool, err error) {
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.ClaimPosting(ctx, adjustmentID)
		if err != nil {
			return fmt.Errorf("claim posting: %w", err)
		}
		if !ok {
			return nil
		}
		claimed = true

		a, err := s.repo.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		logs, err := s.post(ctx, a)
		if err != nil {
			return err
		}
		return s.repo.SetPostingResult(ctx, a.ID, PostingResult{Status: PostingDone, Logs: logs})
	})
	return claimed, err
}

// MarkPostingFailed records why posting failed so the failure is visible
// on the adjustment.
func (s *Service) MarkPostingFailed(ctx context.Context, adjustmentID id.ID, cause error) error {
	msg := cause.Error()
	return s.repo.SetPostingResult(ctx, adjustmentID, PostingResult{Status: PostingFailed, Error: &msg})
}

// post creates the receipt and issue stock entries of a.
func (s *Service) post(ctx context.Context, a *Adjustment) ([]StockEntryLog, error) {
	for i := range a.Items {
		ln := &a.Items[i]
		if ln.ItemCode != "" {
			continue
		}
		part, err := s.parts.GetPart(ctx, ln.Part)
		if err != nil {
			return nil, err
		}
		if part.Item() == "" {
			return nil, apperror.NewMissingRequiredField("item_code").
				WithDetail("part", ln.Part).
				WithCause(fmt.Errorf("item code not found for part %s", ln.Part))
		}
		ln.ItemCode = part.Item()
	}

	receipt, issue := Split(a.Items)
	var logs []StockEntryLog
	for _, group := range []struct {
		entryType stock.EntryType
		lines     []Line
	}{
		{stock.EntryMaterialReceipt, receipt},
		{stock.EntryMaterialIssue, issue},
	} {
		if len(group.lines) == 0 {
			continue
		}
		entry := BuildStockEntry(a, group.entryType, group.lines, s.cfg.ZeroValuation)
		if err := s.stock.Post(ctx, entry); err != nil {
			logger.Error(ctx, "stock entry creation failed",
				"adjustment", a.Number,
				"type", group.entryType,
				"error", err)
			return nil, apperror.NewDownstreamPostingFailure(string(group.entryType), err)
		}
		logs = append(logs, StockEntryLog{
			StockEntry:       entry.ID,
			StockEntryNumber: entry.Number,
			EntryType:        entry.EntryType,
			PostingDate:      entry.PostingDate,
			CreatedBy:        appctx.GetUserID(ctx),
			CreatedAt:        s.now(),
		})
	}
	return logs, nil
}

// Cancel cancels the adjustment and its stock entries. Every linked entry
// is checked first; if any cannot be cancelled nothing is changed and all
// reasons are reported together.
func (s *Service) Cancel(ctx context.Context, adjustmentID id.ID) (*Adjustment, error) {
	var a *Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repo.GetByID(ctx, adjustmentID)
		if err != nil {
			return err
		}
		if a.DocStatus != entity.DocStatusSubmitted {
			return apperror.NewInvalidStateTransition(EntityName, string(a.Status), "cancel")
		}

		var toCancel []id.ID
		var reasons []string
		for _, log := range a.StockEntryLogs {
			check, err := s.stock.CheckCancellation(ctx, log.StockEntry)
			if err != nil {
				return fmt.Errorf("check stock entry %s: %w", log.StockEntryNumber, err)
			}
			if check.DocStatus == entity.DocStatusCancelled {
				continue
			}
			if !check.CanCancel {
				reasons = append(reasons, fmt.Sprintf("Stock Entry %s: %s", log.StockEntryNumber, check.Reason))
				continue
			}
			toCancel = append(toCancel, log.StockEntry)
		}
		if len(reasons) > 0 {
			appErr := apperror.NewInvalidStateTransition(EntityName, string(a.Status), "cancel").
				WithDetail("reasons", reasons)
			appErr.Message = "Cannot cancel Stock Adjustment due to the following issues:\n" + strings.Join(reasons, "\n")
			return appErr
		}

		for _, entryID := range toCancel {
			if err := s.stock.Cancel(ctx, entryID); err != nil {
				return apperror.NewDownstreamPostingFailure("Cancel Stock Entry", err)
			}
		}

		if err := a.MarkCancelled(EntityName); err != nil {
			return err
		}
		a.SyncStatus()
		audit.StampUpdated(ctx, &a.BaseDocument)
		if err := s.repo.Update(ctx, a); err != nil {
			return err
		}
		return s.recordStatus(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "stock adjustment cancelled", "id", a.ID, "number", a.Number)
	return a, nil
}

// GetByID returns an adjustment with its lines and stock entry logs.
func (s *Service) GetByID(ctx context.Context, adjustmentID id.ID) (*Adjustment, error) {
	return s.repo.GetByID(ctx, adjustmentID)
}

// List returns adjustments.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Adjustment], error) {
	return s.repo.List(ctx, f)
}

// History returns the status history of an adjustment, newest first.
func (s *Service) History(ctx context.Context, adjustmentID id.ID, limit int) ([]audit.Entry, error) {
	return s.history.History(ctx, EntityName, adjustmentID, limit)
}

func (s *Service) recordStatus(ctx context.Context, a *Adjustment) error {
	if err := s.history.Log(ctx, audit.StatusChange(ctx, EntityName, a.ID, string(a.Status), s.now())); err != nil {
		return fmt.Errorf("record status history: %w", err)
	}
	return nil
}
