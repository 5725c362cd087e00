package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/billing"
	"workshop/internal/infrastructure/storage/postgres"
)

const (
	billingTable         = "doc_work_order_billings"
	taxTemplateRowsTable = "cat_sales_tax_template_rows"
)

// BillingRepo implements billing.Repository and billing.TaxTemplates.
type BillingRepo struct {
	txm       *postgres.TxManager
	docs      *postgres.Table[*billing.Billing]
	jobs      *postgres.Lines[billing.JobLine]
	packages  *postgres.Lines[billing.PackageLine]
	parts     *postgres.Lines[billing.PartLine]
	externals *postgres.Lines[billing.ExternalLine]
	payments  *postgres.Lines[billing.Payment]
	returns   *postgres.Lines[billing.ReturnLine]
}

// NewBillingRepo creates the billing repository.
func NewBillingRepo(txm *postgres.TxManager) *BillingRepo {
	return &BillingRepo{
		txm: txm,
		docs: postgres.NewTable(txm, postgres.TableConfig[*billing.Billing]{
			Name:         billingTable,
			Entity:       billing.EntityName,
			StatusColumn: "status",
			New:          func() *billing.Billing { return &billing.Billing{} },
		}),
		jobs:      postgres.NewLines[billing.JobLine](txm, "doc_billing_job_types", "billing_id", "line_no"),
		packages:  postgres.NewLines[billing.PackageLine](txm, "doc_billing_service_packages", "billing_id", "line_no"),
		parts:     postgres.NewLines[billing.PartLine](txm, "doc_billing_parts", "billing_id", "line_no"),
		externals: postgres.NewLines[billing.ExternalLine](txm, "doc_billing_external_services", "billing_id", "line_no"),
		payments:  postgres.NewLines[billing.Payment](txm, "doc_billing_payments", "billing_id", "line_no"),
		returns:   postgres.NewLines[billing.ReturnLine](txm, "doc_billing_returns", "billing_id", "line_no"),
	}
}

// Create inserts the billing with all line groups.
func (r *BillingRepo) Create(ctx context.Context, b *billing.Billing) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.docs.Insert(ctx, b); err != nil {
			return err
		}
		return r.writeLines(ctx, b)
	})
}

// Update writes the header under optimistic locking and replaces all lines.
func (r *BillingRepo) Update(ctx context.Context, b *billing.Billing) error {
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.docs.Update(ctx, b, b.ID, b.Version); err != nil {
			return err
		}
		return r.writeLines(ctx, b)
	})
	if err != nil {
		return err
	}
	b.BumpVersion()
	return nil
}

func (r *BillingRepo) writeLines(ctx context.Context, b *billing.Billing) error {
	if err := r.jobs.Replace(ctx, b.ID, b.JobTypes); err != nil {
		return err
	}
	if err := r.packages.Replace(ctx, b.ID, b.ServicePackages); err != nil {
		return err
	}
	if err := r.parts.Replace(ctx, b.ID, b.Parts); err != nil {
		return err
	}
	if err := r.externals.Replace(ctx, b.ID, b.ExternalServices); err != nil {
		return err
	}
	if err := r.payments.Replace(ctx, b.ID, b.Payments); err != nil {
		return err
	}
	return r.returns.Replace(ctx, b.ID, b.ReturnItems)
}

// GetByID loads a billing with all line groups.
func (r *BillingRepo) GetByID(ctx context.Context, billingID id.ID) (*billing.Billing, error) {
	b, err := r.docs.GetByID(ctx, billingID)
	if err != nil {
		return nil, err
	}
	if b.JobTypes, err = r.jobs.Load(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.ServicePackages, err = r.packages.Load(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.Parts, err = r.parts.Load(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.ExternalServices, err = r.externals.Load(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.Payments, err = r.payments.Load(ctx, b.ID); err != nil {
		return nil, err
	}
	if b.ReturnItems, err = r.returns.Load(ctx, b.ID); err != nil {
		return nil, err
	}
	return b, nil
}

// List returns billing headers.
func (r *BillingRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*billing.Billing], error) {
	return r.docs.List(ctx, f)
}

func submittedForWorkOrderQuery(workOrder, exclude id.ID) squirrel.SelectBuilder {
	return postgres.Builder().Select("number").
		From(billingTable).
		Where(squirrel.Eq{"work_order": workOrder, "docstatus": entity.DocStatusSubmitted, "is_return": false}).
		Where(squirrel.NotEq{"id": exclude}).
		OrderBy("number")
}

// FindSubmittedForWorkOrder returns numbers of other submitted billings of
// the work order. Returns are not counted.
func (r *BillingRepo) FindSubmittedForWorkOrder(ctx context.Context, workOrder, exclude id.ID) ([]string, error) {
	sql, args, err := submittedForWorkOrderQuery(workOrder, exclude).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var numbers []string
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &numbers, sql, args...); err != nil {
		return nil, fmt.Errorf("select submitted billings: %w", err)
	}
	return numbers, nil
}

// SetSalesInvoice links the invoice made from the billing.
func (r *BillingRepo) SetSalesInvoice(ctx context.Context, billingID, invoiceID id.ID) error {
	sql, args, err := postgres.Builder().Update(billingTable).
		Set("sales_invoice", invoiceID).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": billingID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	res, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set sales invoice: %w", err)
	}
	if res.RowsAffected() == 0 {
		return apperror.NewNotFound(billing.EntityName, billingID)
	}
	return nil
}

// ChargeRows returns the rows of a sales tax template in order.
func (r *BillingRepo) ChargeRows(ctx context.Context, template string) ([]billing.ChargeRow, error) {
	sql, args, err := postgres.Builder().
		Select("charge_type", "account_head", "description", "rate").
		From(taxTemplateRowsTable).
		Where(squirrel.Eq{"template": template}).
		OrderBy("idx").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []billing.ChargeRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select tax template rows: %w", err)
	}
	return rows, nil
}

var (
	_ billing.Repository   = (*BillingRepo)(nil)
	_ billing.TaxTemplates = (*BillingRepo)(nil)
)

const salesInvoiceTable = "doc_sales_invoices"

// SalesInvoiceRepo implements billing.SalesInvoiceRepository.
type SalesInvoiceRepo struct {
	docs  *postgres.Table[*billing.SalesInvoice]
	items *postgres.Lines[billing.InvoiceItem]
	txm   *postgres.TxManager
}

// NewSalesInvoiceRepo creates the sales invoice repository.
func NewSalesInvoiceRepo(txm *postgres.TxManager) *SalesInvoiceRepo {
	return &SalesInvoiceRepo{
		txm: txm,
		docs: postgres.NewTable(txm, postgres.TableConfig[*billing.SalesInvoice]{
			Name:   salesInvoiceTable,
			Entity: "Sales Invoice",
			New:    func() *billing.SalesInvoice { return &billing.SalesInvoice{} },
		}),
		items: postgres.NewLines[billing.InvoiceItem](txm, "doc_sales_invoice_items", "invoice_id", "line_no"),
	}
}

// Create inserts the invoice with its items.
func (r *SalesInvoiceRepo) Create(ctx context.Context, inv *billing.SalesInvoice) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.docs.Insert(ctx, inv); err != nil {
			return err
		}
		return r.items.Insert(ctx, inv.ID, inv.Items)
	})
}

// GetByID loads an invoice with its items.
func (r *SalesInvoiceRepo) GetByID(ctx context.Context, invoiceID id.ID) (*billing.SalesInvoice, error) {
	inv, err := r.docs.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Items, err = r.items.Load(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

// Update writes the invoice header and items.
func (r *SalesInvoiceRepo) Update(ctx context.Context, inv *billing.SalesInvoice) error {
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.docs.Update(ctx, inv, inv.ID, inv.Version); err != nil {
			return err
		}
		return r.items.Replace(ctx, inv.ID, inv.Items)
	})
	if err != nil {
		return err
	}
	inv.BumpVersion()
	return nil
}

var _ billing.SalesInvoiceRepository = (*SalesInvoiceRepo)(nil)
