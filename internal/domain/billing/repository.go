package billing

import (
	"context"

	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/workorder"
)

// Repository persists billings with all line groups.
type Repository interface {
	Create(ctx context.Context, b *Billing) error
	Update(ctx context.Context, b *Billing) error
	GetByID(ctx context.Context, billingID id.ID) (*Billing, error)
	List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*Billing], error)

	// FindSubmittedForWorkOrder returns numbers of submitted non-return
	// billings of workOrder other than exclude.
	FindSubmittedForWorkOrder(ctx context.Context, workOrder, exclude id.ID) ([]string, error)

	SetSalesInvoice(ctx context.Context, billingID, invoiceID id.ID) error
}

// TaxTemplates reads sales tax template charge rows.
type TaxTemplates interface {
	ChargeRows(ctx context.Context, template string) ([]ChargeRow, error)
}

// SalesInvoiceRepository persists the invoices made from billings.
type SalesInvoiceRepository interface {
	Create(ctx context.Context, inv *SalesInvoice) error
	GetByID(ctx context.Context, invoiceID id.ID) (*SalesInvoice, error)
	Update(ctx context.Context, inv *SalesInvoice) error
}

// WorkOrders is the part of the work order service billing depends on.
type WorkOrders interface {
	GetByID(ctx context.Context, workOrderID id.ID) (*workorder.WorkOrder, error)
	GetBillingSource(ctx context.Context, workOrderID id.ID) (*workorder.BillingSource, error)
	SetBillingStatus(ctx context.Context, workOrderID id.ID, status workorder.BillingStatus) error
}
