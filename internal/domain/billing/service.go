package billing

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/security"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain"
	"workshop/internal/domain/audit"
	"workshop/internal/domain/workorder"
	"workshop/pkg/logger"
)

// Service provides business operations for work order billings.
type Service struct {
	repo       Repository
	invoices   SalesInvoiceRepository
	workOrders WorkOrders
	items      ItemLinker
	taxes      TaxTemplates
	history    audit.Recorder
	numerator  numerator.Generator
	txManager  tx.Manager
	cfg        Config
	now        func() time.Time
	validation *domain.Pipeline[*Billing]
}

// ServiceConfig wires a billing Service.
type ServiceConfig struct {
	Repo       Repository
	Invoices   SalesInvoiceRepository
	WorkOrders WorkOrders
	Items      ItemLinker
	Taxes      TaxTemplates
	History    audit.Recorder
	Numerator  numerator.Generator
	TxManager  tx.Manager
	Config     Config
}

// NewService creates a billing service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Config.DueDays <= 0 {
		cfg.Config.DueDays = DefaultConfig().DueDays
	}
	if len(cfg.Config.Approval.ApproverRoles) == 0 {
		cfg.Config.Approval.ApproverRoles = []string{DefaultApproverRole}
	}
	s := &Service{
		repo:       cfg.Repo,
		invoices:   cfg.Invoices,
		workOrders: cfg.WorkOrders,
		items:      cfg.Items,
		taxes:      cfg.Taxes,
		history:    cfg.History,
		numerator:  cfg.Numerator,
		txManager:  cfg.TxManager,
		cfg:        cfg.Config,
		now:        time.Now,
	}
	s.validation = s.newValidationPipeline()
	return s
}

// newValidationPipeline lists the checks run on every save, in order.
func (s *Service) newValidationPipeline() *domain.Pipeline[*Billing] {
	return domain.NewPipeline[*Billing]().
		Then("validate", func(ctx context.Context, b *Billing) error { return b.Validate(ctx) }).
		Then("validate_work_order", s.validateWorkOrder).
		Then("validate_returns", s.validateReturns).
		Then("validate_dates", s.validateDates).
		Then("calculate_totals", s.calculateTotals).
		Pure("update_payment_status", UpdatePaymentStatus).
		Pure("set_status", func(b *Billing) { SetStatus(b, s.now()) }).
		Then("validate_discount_approval", func(ctx context.Context, b *Billing) error {
			return ValidateDiscountApproval(b, s.cfg.Approval, appctx.GetRoles(ctx))
		}).
		Then("update_approval_fields", func(ctx context.Context, b *Billing) error {
			UpdateApprovalFields(b, s.cfg.Approval, appctx.GetUserID(ctx), s.now())
			return nil
		})
}

// ValidationSteps lists the save pipeline step names in order.
func (s *Service) ValidationSteps() []string {
	return s.validation.Names()
}

func (s *Service) validateWorkOrder(ctx context.Context, b *Billing) error {
	wo, err := s.workOrders.GetByID(ctx, b.WorkOrder)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewReferenceNotFound("Work Order", b.WorkOrder)
		}
		return fmt.Errorf("get work order: %w", err)
	}
	if !wo.Status.Billable() {
		return apperror.NewInvalidStateTransition("Work Order", string(wo.Status), "bill").
			WithDetail("reason", "Work Order must be 'Completed' or 'Closed' before billing")
	}

	if !b.IsReturn {
		existing, err := s.repo.FindSubmittedForWorkOrder(ctx, b.WorkOrder, b.ID)
		if err != nil {
			return fmt.Errorf("find submitted billings: %w", err)
		}
		if len(existing) > 0 {
			return apperror.NewInvalidStateTransition("Work Order", string(workorder.BillingBilled), "bill").
				WithDetail("reason", fmt.Sprintf("Work Order %s is already billed in %s", wo.Number, existing[0]))
		}
	}

	if b.Customer == "" {
		b.Customer = wo.Customer
	}
	if b.CustomerVehicle == "" {
		b.CustomerVehicle = wo.CustomerVehicle
	}
	return nil
}

// validateReturns checks each return row against the billed part row it
// credits and fills its part and rate from that row.
func (s *Service) validateReturns(ctx context.Context, b *Billing) error {
	if !b.IsReturn {
		return nil
	}
	orig, err := s.repo.GetByID(ctx, *b.ReturnAgainst)
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewReferenceNotFound(EntityName, *b.ReturnAgainst)
		}
		return fmt.Errorf("get returned billing: %w", err)
	}
	if orig.IsReturn || orig.WorkOrder != b.WorkOrder {
		return apperror.NewReferenceMismatch(fmt.Sprintf(
			"%s is not a billing of the same Work Order", orig.Number)).
			WithDetail("return_against", orig.ID)
	}
	if !orig.IsSubmitted() {
		return apperror.NewInvalidStateTransition(EntityName, string(orig.Status), "return against")
	}

	returned := make(map[id.ID]types.Quantity)
	for i := range b.ReturnItems {
		r := &b.ReturnItems[i]
		row := i + 1
		line := orig.PartLine(r.PartItem)
		if line == nil {
			return apperror.NewReferenceMismatch(fmt.Sprintf(
				"Return row %d does not match a part row of %s", row, orig.Number)).
				WithDetail("row", row)
		}
		total := returned[r.PartItem].Add(r.Quantity)
		if total.GreaterThan(line.Quantity) {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"Return quantity %s for Part %s at row %d exceeds billed quantity %s",
				total.String(), line.Part, row, line.Quantity.String())).
				WithDetail("row", row)
		}
		returned[r.PartItem] = total
		r.Part = line.Part
		r.PartName = line.PartName
		if r.Rate.IsZero() {
			r.Rate = line.Rate
		}
	}
	return nil
}

func (s *Service) validateDates(_ context.Context, b *Billing) error {
	if b.PostingDate.IsZero() {
		b.PostingDate = truncateDay(s.now())
	}
	if b.DueDate == nil {
		due := truncateDay(b.PostingDate).AddDate(0, 0, s.cfg.DueDays)
		b.DueDate = &due
	}
	if truncateDay(*b.DueDate).Before(truncateDay(b.PostingDate)) {
		return apperror.NewValidation("Due Date cannot be before Posting Date").
			WithDetail("due_date", b.DueDate.Format("2006-01-02")).
			WithDetail("posting_date", b.PostingDate.Format("2006-01-02"))
	}
	return nil
}

func (s *Service) calculateTotals(ctx context.Context, b *Billing) error {
	var charges []ChargeRow
	if b.TaxesAndCharges != "" {
		rows, err := s.taxes.ChargeRows(ctx, b.TaxesAndCharges)
		if err != nil {
			return err
		}
		charges = rows
	}
	if b.Currency == "" {
		b.Currency = s.cfg.DefaultCurrency
	}
	CalculateTotals(b, charges)
	return nil
}

// Create validates and stores a new draft billing.
func (s *Service) Create(ctx context.Context, b *Billing) error {
	if err := s.validation.Run(ctx, b); err != nil {
		return err
	}
	b.Renumber()
	audit.StampCreated(ctx, &b.BaseDocument)

	if b.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixBilling), nil, b.PostingDate)
		if err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		b.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, b); err != nil {
			return fmt.Errorf("create billing: %w", err)
		}
		return s.recordStatus(ctx, b)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "billing created", "id", b.ID, "number", b.Number, "work_order", b.WorkOrder)
	return nil
}

// CreateFromWorkOrder builds a draft billing from the billing source of a
// completed work order and stores it.
func (s *Service) CreateFromWorkOrder(ctx context.Context, workOrderID id.ID) (*Billing, error) {
	src, err := s.workOrders.GetBillingSource(ctx, workOrderID)
	if err != nil {
		return nil, err
	}

	b := New(workOrderID)
	b.PriceList = src.PriceList
	for _, l := range src.JobTypes {
		b.JobTypes = append(b.JobTypes, JobLine{JobType: l.Reference, JobName: l.Name, Hours: l.QuantityOrHours, Rate: l.Rate})
	}
	for _, l := range src.ServicePackages {
		b.ServicePackages = append(b.ServicePackages, PackageLine{
			ServicePackage: l.Reference, PackageName: l.Name, Quantity: l.QuantityOrHours, Rate: l.Rate,
		})
	}
	for _, l := range src.Parts {
		b.Parts = append(b.Parts, PartLine{
			Part: l.Reference, PartName: l.Name, Quantity: l.QuantityOrHours, Rate: l.Rate, Warehouse: l.Warehouse,
		})
	}
	for _, l := range src.ExternalServices {
		b.ExternalServices = append(b.ExternalServices, ExternalLine{ServiceName: l.Name, Provider: l.Provider, Rate: l.Rate})
	}

	if err := s.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Update validates and stores changes to a draft billing.
// A status change is written to the history.
func (s *Service) Update(ctx context.Context, b *Billing) error {
	if err := b.CanModify(EntityName); err != nil {
		return err
	}
	if err := s.validation.Run(ctx, b); err != nil {
		return err
	}
	b.Renumber()
	audit.StampUpdated(ctx, &b.BaseDocument)

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		prev, err := s.repo.GetByID(ctx, b.ID)
		if err != nil {
			return err
		}
		if err := prev.CanModify(EntityName); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update billing: %w", err)
		}
		if prev.Status != b.Status {
			return s.recordStatus(ctx, b)
		}
		return nil
	})
}

// Submit locks the billing and marks the work order Billed. Return
// billings leave the work order billing status alone.
func (s *Service) Submit(ctx context.Context, billingID id.ID) (*Billing, error) {
	var b *Billing
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if b, err = s.repo.GetByID(ctx, billingID); err != nil {
			return err
		}
		if err := s.validation.Run(ctx, b); err != nil {
			return err
		}
		if err := b.MarkSubmitted(EntityName); err != nil {
			return err
		}
		SetStatus(b, s.now())
		audit.StampUpdated(ctx, &b.BaseDocument)

		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update billing: %w", err)
		}
		if !b.IsReturn {
			if err := s.workOrders.SetBillingStatus(ctx, b.WorkOrder, workorder.BillingBilled); err != nil {
				return fmt.Errorf("set work order billing status: %w", err)
			}
		}
		return s.recordStatus(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "billing submitted", "id", b.ID, "number", b.Number, "grand_total", b.GrandTotal.String())
	return b, nil
}

// Cancel cancels a submitted billing, releases the work order and cancels
// the linked sales invoice.
func (s *Service) Cancel(ctx context.Context, billingID id.ID) (*Billing, error) {
	var b *Billing
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if b, err = s.repo.GetByID(ctx, billingID); err != nil {
			return err
		}
		if err := b.MarkCancelled(EntityName); err != nil {
			return err
		}
		SetStatus(b, s.now())
		audit.StampUpdated(ctx, &b.BaseDocument)

		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update billing: %w", err)
		}
		if !b.IsReturn {
			if err := s.workOrders.SetBillingStatus(ctx, b.WorkOrder, workorder.BillingUnbilled); err != nil {
				return fmt.Errorf("set work order billing status: %w", err)
			}
		}
		if err := s.cancelSalesInvoice(ctx, b); err != nil {
			return err
		}
		return s.recordStatus(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "billing cancelled", "id", b.ID, "number", b.Number)
	return b, nil
}

func (s *Service) cancelSalesInvoice(ctx context.Context, b *Billing) error {
	if b.SalesInvoice == nil {
		return nil
	}
	inv, err := s.invoices.GetByID(ctx, *b.SalesInvoice)
	if err != nil {
		return fmt.Errorf("get sales invoice: %w", err)
	}
	if inv.IsCancelled() {
		return nil
	}
	inv.DocStatus = entity.DocStatusCancelled
	inv.Touch()
	audit.StampUpdated(ctx, &inv.BaseDocument)
	if err := s.invoices.Update(ctx, inv); err != nil {
		return fmt.Errorf("cancel sales invoice: %w", err)
	}
	logger.Info(ctx, "sales invoice cancelled", "id", inv.ID, "number", inv.Number, "billing", b.Number)
	return nil
}

// Approve signs off the discount of a draft billing.
// The acting user must hold an approver role.
func (s *Service) Approve(ctx context.Context, billingID id.ID) (*Billing, error) {
	user := appctx.GetUser(ctx)
	if user == nil || !(user.IsSystem || s.cfg.Approval.CanApprove(user.Roles)) {
		return nil, apperror.NewPermissionDenied("Only discount approvers can approve a billing").
			WithDetail("roles", s.cfg.Approval.ApproverRoles)
	}

	var b *Billing
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if b, err = s.repo.GetByID(ctx, billingID); err != nil {
			return err
		}
		if err := b.CanModify(EntityName); err != nil {
			return err
		}
		b.Approve(user.UserID, s.now())
		if err := s.validation.Run(ctx, b); err != nil {
			return err
		}
		b.Touch()
		audit.StampUpdated(ctx, &b.BaseDocument)
		if err := s.repo.Update(ctx, b); err != nil {
			return fmt.Errorf("update billing: %w", err)
		}
		return s.history.Log(ctx, audit.Entry{
			ID:         id.New(),
			EntityType: EntityName,
			EntityID:   b.ID,
			Action:     audit.ActionApprove,
			UserID:     user.UserID,
			Message:    fmt.Sprintf("Discount approved by %s", user.UserID),
			CreatedAt:  s.now(),
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "billing discount approved", "id", b.ID, "approved_by", b.ApprovedBy)
	return b, nil
}

// MakeSalesInvoice creates the draft sales invoice of a submitted billing
// and links it back.
func (s *Service) MakeSalesInvoice(ctx context.Context, billingID id.ID) (*SalesInvoice, error) {
	if err := security.Require(ctx, security.PermSalesInvoiceCreate, "Sales Invoice"); err != nil {
		return nil, err
	}

	var inv *SalesInvoice
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, billingID)
		if err != nil {
			return err
		}
		if b.SalesInvoice != nil {
			existing, err := s.invoices.GetByID(ctx, *b.SalesInvoice)
			if err != nil {
				return fmt.Errorf("get sales invoice: %w", err)
			}
			if !existing.IsCancelled() {
				return apperror.NewDuplicate("Sales Invoice", "work_order_billing", b.Number).
					WithDetail("sales_invoice", existing.Number)
			}
		}

		if inv, err = BuildSalesInvoice(ctx, b, s.items, s.cfg.ExternalServiceItem); err != nil {
			return err
		}
		audit.StampCreated(ctx, &inv.BaseDocument)
		if inv.Number, err = s.numerator.GetNextNumber(ctx, numerator.DefaultConfig(numerator.PrefixSalesInvoice), nil, inv.PostingDate); err != nil {
			return fmt.Errorf("generate number: %w", err)
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return fmt.Errorf("create sales invoice: %w", err)
		}
		return s.repo.SetSalesInvoice(ctx, b.ID, inv.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sales invoice created", "id", inv.ID, "number", inv.Number, "billing", billingID)
	return inv, nil
}

// GetByID returns a billing with its lines.
func (s *Service) GetByID(ctx context.Context, billingID id.ID) (*Billing, error) {
	return s.repo.GetByID(ctx, billingID)
}

// List returns billings.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Billing], error) {
	return s.repo.List(ctx, f)
}

// History returns the most recent history entries of a billing.
func (s *Service) History(ctx context.Context, billingID id.ID, limit int) ([]audit.Entry, error) {
	return s.history.History(ctx, EntityName, billingID, limit)
}

func (s *Service) recordStatus(ctx context.Context, b *Billing) error {
	if err := s.history.Log(ctx, audit.StatusChange(ctx, EntityName, b.ID, string(b.Status), s.now())); err != nil {
		return fmt.Errorf("record status history: %w", err)
	}
	return nil
}
