// Package billingtest provides in-memory billing repositories for tests.
package billingtest

import (
	"context"
	"slices"
	"sync"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/billing"
)

// Memory implements billing.Repository, billing.SalesInvoiceRepository and
// billing.TaxTemplates. Documents are copied in and out so callers cannot
// change stored state without Update.
type Memory struct {
	mu        sync.Mutex
	billings  map[id.ID]*billing.Billing
	invoices  map[id.ID]*billing.SalesInvoice
	Templates map[string][]billing.ChargeRow
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{
		billings:  map[id.ID]*billing.Billing{},
		invoices:  map[id.ID]*billing.SalesInvoice{},
		Templates: map[string][]billing.ChargeRow{},
	}
}

// Invoices is the sales invoice side of Memory.
func (m *Memory) Invoices() *InvoiceMemory { return (*InvoiceMemory)(m) }

func cloneBilling(b *billing.Billing) *billing.Billing {
	c := *b
	c.JobTypes = slices.Clone(b.JobTypes)
	c.ServicePackages = slices.Clone(b.ServicePackages)
	c.Parts = slices.Clone(b.Parts)
	c.ExternalServices = slices.Clone(b.ExternalServices)
	c.Payments = slices.Clone(b.Payments)
	c.ReturnItems = slices.Clone(b.ReturnItems)
	return &c
}

func (m *Memory) Create(_ context.Context, b *billing.Billing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.billings[b.ID] = cloneBilling(b)
	return nil
}

func (m *Memory) Update(_ context.Context, b *billing.Billing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.billings[b.ID]
	if !ok {
		return apperror.NewNotFound(billing.EntityName, b.ID)
	}
	if stored.Version != b.Version {
		return apperror.NewConcurrentModification(billing.EntityName, b.ID)
	}
	b.BumpVersion()
	m.billings[b.ID] = cloneBilling(b)
	return nil
}

func (m *Memory) GetByID(_ context.Context, billingID id.ID) (*billing.Billing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.billings[billingID]; ok {
		return cloneBilling(b), nil
	}
	return nil, apperror.NewNotFound(billing.EntityName, billingID)
}

func (m *Memory) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*billing.Billing], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*billing.Billing
	for _, b := range m.billings {
		out = append(out, cloneBilling(b))
	}
	return domain.ListResult[*billing.Billing]{Items: out, TotalCount: int64(len(out)), Limit: f.Limit}, nil
}

func (m *Memory) FindSubmittedForWorkOrder(_ context.Context, workOrder, exclude id.ID) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, b := range m.billings {
		if b.WorkOrder == workOrder && b.ID != exclude && b.DocStatus == entity.DocStatusSubmitted && !b.IsReturn {
			out = append(out, b.Number)
		}
	}
	return out, nil
}

func (m *Memory) SetSalesInvoice(_ context.Context, billingID, invoiceID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.billings[billingID]
	if !ok {
		return apperror.NewNotFound(billing.EntityName, billingID)
	}
	b.SalesInvoice = &invoiceID
	return nil
}

func (m *Memory) ChargeRows(_ context.Context, template string) ([]billing.ChargeRow, error) {
	rows, ok := m.Templates[template]
	if !ok {
		return nil, apperror.NewReferenceNotFound("Sales Taxes and Charges Template", template)
	}
	return rows, nil
}

// InvoiceMemory implements billing.SalesInvoiceRepository over Memory.
type InvoiceMemory Memory

func (im *InvoiceMemory) Create(_ context.Context, inv *billing.SalesInvoice) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	c := *inv
	im.invoices[inv.ID] = &c
	return nil
}

func (im *InvoiceMemory) GetByID(_ context.Context, invoiceID id.ID) (*billing.SalesInvoice, error) {
	im.mu.Lock()
	defer im.mu.Unlock()
	if inv, ok := im.invoices[invoiceID]; ok {
		c := *inv
		return &c, nil
	}
	return nil, apperror.NewNotFound("Sales Invoice", invoiceID)
}

func (im *InvoiceMemory) Update(_ context.Context, inv *billing.SalesInvoice) error {
	im.mu.Lock()
	defer im.mu.Unlock()
	if _, ok := im.invoices[inv.ID]; !ok {
		return apperror.NewNotFound("Sales Invoice", inv.ID)
	}
	c := *inv
	im.invoices[inv.ID] = &c
	return nil
}

var (
	_ billing.Repository             = (*Memory)(nil)
	_ billing.TaxTemplates           = (*Memory)(nil)
	_ billing.SalesInvoiceRepository = (*InvoiceMemory)(nil)
)
