package opname

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/security"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/internal/domain/catalog"
	"workshop/pkg/logger"
)

// Parts looks up the catalog parts being counted.
type Parts interface {
	GetPart(ctx context.Context, code string) (*catalog.Part, error)
	GetPartFromBarcode(ctx context.Context, barcode string) (*catalog.BarcodeMatch, error)
}

// Balances reads the stock register.
type Balances interface {
	Balance(ctx context.Context, warehouse, itemCode string) (entity.StockBalance, bool, error)
}

// AdjustmentRef identifies the adjustment made from an opname.
type AdjustmentRef struct {
	ID     id.ID  `json:"id"`
	Number string `json:"number"`
}

// Adjuster creates the stock adjustment for the variance of an opname.
type Adjuster interface {
	CreateFromOpname(ctx context.Context, o *Opname, lines []VarianceLine) (AdjustmentRef, error)
}

// Service provides business operations for stock opnames.
type Service struct {
	repo       Repository
	parts      Parts
	balances   Balances
	adjuster   Adjuster
	history    audit.Recorder
	numerator  numerator.Generator
	txManager  tx.Manager
	now        func() time.Time
	validation *domain.Pipeline[*Opname]
}

// ServiceConfig wires an opname Service.
type ServiceConfig struct {
	Repo      Repository
	Parts     Parts
	Balances  Balances
	Adjuster  Adjuster
	History   audit.Recorder
	Numerator numerator.Generator
	TxManager tx.Manager
}

// NewService creates an opname service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		repo:      cfg.Repo,
		parts:     cfg.Parts,
		balances:  cfg.Balances,
		adjuster:  cfg.Adjuster,
		history:   cfg.History,
		numerator: cfg.Numerator,
		txManager: cfg.TxManager,
		now:       time.Now,
	}
	s.validation = domain.NewPipeline[*Opname]().
		Then("validate", func(ctx context.Context, o *Opname) error { return o.Validate(ctx) }).
		Pure("update_status", (*Opname).SyncStatus).
		Then("store_system_quantities", s.storeSnapshot).
		Pure("apply_snapshot", (*Opname).ApplySnapshot)
	return s
}

// StoreSnapshot reads the stock balance and valuation of each counted part
// in warehouse. Parts without a stock item are left out; a part that never
// moved in the warehouse has quantity zero.
func (s *Service) StoreSnapshot(ctx context.Context, items []Item, warehouse string) (Snapshot, error) {
	snap := make(Snapshot, len(items))
	for _, it := range items {
		if it.Part == "" {
			continue
		}
		part, err := s.parts.GetPart(ctx, it.Part)
		if err != nil {
			return nil, err
		}
		itemCode := part.Item()
		if itemCode == "" {
			continue
		}
		bal, found, err := s.balances.Balance(ctx, warehouse, itemCode)
		if err != nil {
			return nil, fmt.Errorf("read balance of %s: %w", itemCode, err)
		}
		entry := SnapshotEntry{
			ItemCode:      itemCode,
			ActualQty:     types.Zero(),
			ValuationRate: part.ValuationRate,
		}
		if found {
			entry.ActualQty = bal.Quantity
			if !bal.ValuationRate.IsZero() {
				entry.ValuationRate = bal.ValuationRate
			}
		}
		snap[it.Part] = entry
	}
	return snap, nil
}

func (s *Service) storeSnapshot(ctx context.Context, o *Opname) error {
	for i := range o.Items {
		it := &o.Items[i]
		if it.PartName != "" && it.UOM != "" {
			continue
		}
		part, err := s.parts.GetPart(ctx, it.Part)
		if err != nil {
			return err
		}
		if it.PartName == "" {
			it.PartName = part.PartName
		}
		if it.UOM == "" {
			it.UOM = part.UnitOfMeasure()
		}
	}

	snap, err := s.StoreSnapshot(ctx, o.Items, o.Warehouse)
	if err != nil {
		return err
	}
	blob, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	o.Snapshot = snap
	o.SnapshotBlob = blob
	return nil
}

// Create validates, snapshots and stores a new opname.
func (s *Service) Create(ctx context.Context, o *Opname) error {
	if err := s.validation.Run(ctx, o); err != nil {
		return err
	}
	audit.StampCreated(ctx, &o.BaseDocument)
	if o.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixOpname), nil, o.PostingDate)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		o.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, o); err != nil {
			return err
		}
		return s.recordStatus(ctx, o)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "stock opname created", "id", o.ID, "number", o.Number, "items", len(o.Items))
	return nil
}

// Update re-validates a draft and refreshes its snapshot.
func (s *Service) Update(ctx context.Context, o *Opname) error {
	if err := o.CanModify(EntityName); err != nil {
		return err
	}
	if err := s.validation.Run(ctx, o); err != nil {
		return err
	}
	audit.StampUpdated(ctx, &o.BaseDocument)
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, o)
	})
}

// Submit locks the count. The snapshot taken here is the one used for the
// adjustment.
func (s *Service) Submit(ctx context.Context, opnameID id.ID) (*Opname, error) {
	var o *Opname
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetByID(ctx, opnameID)
		if err != nil {
			return err
		}
		if o.Status == StatusAdjusted {
			return apperror.NewInvalidStateTransition(EntityName, string(o.Status), "submit")
		}
		if err := s.validation.Run(ctx, o); err != nil {
			return err
		}
		if err := o.MarkSubmitted(EntityName); err != nil {
			return err
		}
		if err := o.TransitionTo(StatusSubmitted, "submit"); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		return s.recordStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "stock opname submitted", "id", o.ID, "number", o.Number)
	return o, nil
}

// Cancel cancels a submitted opname that has not been adjusted.
func (s *Service) Cancel(ctx context.Context, opnameID id.ID) (*Opname, error) {
	var o *Opname
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.repo.GetByID(ctx, opnameID)
		if err != nil {
			return err
		}
		if o.Status == StatusAdjusted {
			return apperror.NewInvalidStateTransition(EntityName, string(o.Status), "cancel")
		}
		if err := o.MarkCancelled(EntityName); err != nil {
			return err
		}
		if err := o.TransitionTo(StatusCancelled, "cancel"); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, o); err != nil {
			return err
		}
		return s.recordStatus(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "stock opname cancelled", "id", o.ID, "number", o.Number)
	return o, nil
}

// CreateAdjustment turns the variance of a submitted opname into a stock
// adjustment and marks the opname Adjusted. It runs once per opname.
// When nothing differs no adjustment is made and nil is returned.
func (s *Service) CreateAdjustment(ctx context.Context, opnameID id.ID) (*AdjustmentRef, error) {
	if err := security.Require(ctx, security.PermStockSubmit, "Part Stock Adjustment"); err != nil {
		return nil, err
	}

	var ref *AdjustmentRef
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.repo.GetByID(ctx, opnameID)
		if err != nil {
			return err
		}
		if o.Status == StatusAdjusted {
			return apperror.NewInvalidStateTransition(EntityName, string(o.Status), "create adjustment for").
				WithDetail("adjustment", o.Adjustment)
		}
		if o.DocStatus != entity.DocStatusSubmitted {
			return apperror.NewInvalidStateTransition(EntityName, string(o.Status), "create adjustment for")
		}
		if len(o.Snapshot) == 0 {
			return apperror.NewValidation("System quantities were not captured for this stock opname")
		}

		lines := Reconcile(o.Snapshot, o.Items)
		if len(lines) == 0 {
			logger.Info(ctx, "no differences between counted and system quantities", "opname", o.Number)
			return nil
		}

		created, err := s.adjuster.CreateFromOpname(ctx, o, lines)
		if err != nil {
			return err
		}
		if err := s.repo.MarkAdjusted(ctx, o.ID, created.ID); err != nil {
			return err
		}
		o.Status = StatusAdjusted
		if err := s.recordStatus(ctx, o); err != nil {
			return err
		}
		ref = &created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ref != nil {
		logger.Info(ctx, "stock adjustment created from opname", "opname", opnameID, "adjustment", ref.Number)
	}
	return ref, nil
}

// Variance returns the non-zero variance lines of an opname.
func (s *Service) Variance(ctx context.Context, opnameID id.ID) ([]VarianceLine, error) {
	o, err := s.repo.GetByID(ctx, opnameID)
	if err != nil {
		return nil, err
	}
	return Reconcile(o.Snapshot, o.Items), nil
}

// GetPartFromBarcode resolves a scanned barcode for count entry.
func (s *Service) GetPartFromBarcode(ctx context.Context, barcode string) (*catalog.BarcodeMatch, error) {
	return s.parts.GetPartFromBarcode(ctx, barcode)
}

// GetByID returns an opname with its items and decoded snapshot.
func (s *Service) GetByID(ctx context.Context, opnameID id.ID) (*Opname, error) {
	return s.repo.GetByID(ctx, opnameID)
}

// List returns opnames.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Opname], error) {
	return s.repo.List(ctx, f)
}

// History returns the status history of an opname, newest first.
func (s *Service) History(ctx context.Context, opnameID id.ID, limit int) ([]audit.Entry, error) {
	return s.history.History(ctx, EntityName, opnameID, limit)
}

func (s *Service) recordStatus(ctx context.Context, o *Opname) error {
	if err := s.history.Log(ctx, audit.StatusChange(ctx, EntityName, o.ID, string(o.Status), s.now())); err != nil {
		return fmt.Errorf("record status history: %w", err)
	}
	return nil
}
