package workorder

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/tx"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/pkg/logger"
)

// Service provides business operations for work orders.
type Service struct {
	repo               Repository
	items              ItemLinker
	rates              RateResolver
	numerator          numerator.Generator
	txManager          tx.Manager
	defaultPriceList   string
	resolveConcurrency int
}

// ServiceConfig wires a work order Service.
type ServiceConfig struct {
	Repo             Repository
	Items            ItemLinker
	Rates            RateResolver
	Numerator        numerator.Generator
	TxManager        tx.Manager
	DefaultPriceList string
	// ResolveConcurrency bounds parallel price lookups (default 4).
	ResolveConcurrency int
}

// NewService creates a work order service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.ResolveConcurrency <= 0 {
		cfg.ResolveConcurrency = 4
	}
	return &Service{
		repo:               cfg.Repo,
		items:              cfg.Items,
		rates:              cfg.Rates,
		numerator:          cfg.Numerator,
		txManager:          cfg.TxManager,
		defaultPriceList:   cfg.DefaultPriceList,
		resolveConcurrency: cfg.ResolveConcurrency,
	}
}

// Create validates and stores a new work order.
func (s *Service) Create(ctx context.Context, w *WorkOrder) error {
	if err := w.Validate(ctx); err != nil {
		return err
	}
	audit.StampCreated(ctx, &w.BaseDocument)
	if w.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixWorkOrder), nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		w.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, w)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "work order created", "id", w.ID, "number", w.Number)
	return nil
}

// Update validates and stores changes to a draft work order.
func (s *Service) Update(ctx context.Context, w *WorkOrder) error {
	if err := w.CanModify(EntityName); err != nil {
		return err
	}
	if err := w.Validate(ctx); err != nil {
		return err
	}
	audit.StampUpdated(ctx, &w.BaseDocument)
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, w)
	})
}

// Submit locks the work order after the mandatory field checks.
func (s *Service) Submit(ctx context.Context, workOrderID id.ID) (*WorkOrder, error) {
	var wo *WorkOrder
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		wo, err = s.repo.GetByID(ctx, workOrderID)
		if err != nil {
			return err
		}
		if err := wo.ValidateForSubmit(ctx); err != nil {
			return err
		}
		if err := wo.MarkSubmitted(EntityName); err != nil {
			return err
		}
		return s.repo.Update(ctx, wo)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "work order submitted", "id", wo.ID, "number", wo.Number)
	return wo, nil
}

// SetStatus moves the workshop status (In Progress, Completed, Closed...).
func (s *Service) SetStatus(ctx context.Context, workOrderID id.ID, next Status) (*WorkOrder, error) {
	var wo *WorkOrder
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		wo, err = s.repo.GetByID(ctx, workOrderID)
		if err != nil {
			return err
		}
		if err := wo.TransitionTo(next); err != nil {
			return err
		}
		return s.repo.Update(ctx, wo)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "work order status changed", "id", wo.ID, "status", wo.Status)
	return wo, nil
}

// GetByID returns a work order with its lines.
func (s *Service) GetByID(ctx context.Context, workOrderID id.ID) (*WorkOrder, error) {
	return s.repo.GetByID(ctx, workOrderID)
}

// List returns work orders.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*WorkOrder], error) {
	return s.repo.List(ctx, f)
}

// RecordConsumption is called by material issues and returns on submit and cancel.
func (s *Service) RecordConsumption(ctx context.Context, workOrderID id.ID, deltas []ConsumedDelta) error {
	if len(deltas) == 0 {
		return nil
	}
	if err := s.repo.AddConsumedQty(ctx, workOrderID, deltas); err != nil {
		return fmt.Errorf("record consumed quantity: %w", err)
	}
	logger.Debug(ctx, "work order consumption recorded", "work_order", workOrderID, "parts", len(deltas))
	return nil
}

// SetBillingStatus is called by billing on submit and cancel.
func (s *Service) SetBillingStatus(ctx context.Context, workOrderID id.ID, status BillingStatus) error {
	return s.repo.SetBillingStatus(ctx, workOrderID, status)
}
