// Package billing implements work order billing: the invoicing preview raised
// from a completed work order, its totals, payment status and discount gate.
package billing

import (
	"context"
	"strings"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
)

// EntityName is used in errors and history entries.
const EntityName = "Work Order Billing"

// Status is the display status derived by SetStatus.
type Status string

const (
	StatusDraft          Status = "Draft"
	StatusPendingPayment Status = "Pending Payment"
	StatusPartiallyPaid  Status = "Partially Paid"
	StatusFullyPaid      Status = "Fully Paid"
	StatusOverdue        Status = "Overdue"
	StatusCompleted      Status = "Completed"
	StatusCancelled      Status = "Cancelled"
)

// PaymentStatus compares what was paid against the grand total.
type PaymentStatus string

const (
	PaymentUnpaid        PaymentStatus = "Unpaid"
	PaymentPartiallyPaid PaymentStatus = "Partially Paid"
	PaymentPaid          PaymentStatus = "Paid"
)

// ApprovalStatus tracks discount sign-off.
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = ""
	ApprovalPending  ApprovalStatus = "Pending Approval"
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// DownPaymentType selects how DownPaymentAmount is read.
type DownPaymentType string

const (
	DownPaymentAmount     DownPaymentType = "Amount"
	DownPaymentPercentage DownPaymentType = "Percentage"
)

// WorkflowCompleted is the workflow state that overrides payment-derived status.
const WorkflowCompleted = "Completed"

// Billing is a Work Order Billing document.
type Billing struct {
	entity.Document

	WorkOrder       id.ID      `db:"work_order" json:"work_order"`
	Customer        string     `db:"customer" json:"customer"`
	CustomerVehicle string     `db:"customer_vehicle" json:"customer_vehicle"`
	DueDate         *time.Time `db:"due_date" json:"due_date,omitempty"`
	IsReturn        bool       `db:"is_return" json:"is_return"`
	// ReturnAgainst is the submitted billing a return credits.
	ReturnAgainst *id.ID `db:"return_against" json:"return_against,omitempty"`
	PriceList       string     `db:"price_list" json:"price_list"`
	Currency        string     `db:"currency" json:"currency"`

	// TaxesAndCharges names a sales tax template; its charge rows feed TaxAmount.
	TaxesAndCharges string      `db:"taxes_and_charges" json:"taxes_and_charges,omitempty"`
	DiscountAmount  types.Money `db:"discount_amount" json:"discount_amount"`

	TotalServicesAmount         types.Money `db:"total_services_amount" json:"total_services_amount"`
	TotalPartsAmount            types.Money `db:"total_parts_amount" json:"total_parts_amount"`
	TotalExternalServicesAmount types.Money `db:"total_external_services_amount" json:"total_external_services_amount"`
	TotalReturnAmount           types.Money `db:"total_return_amount" json:"total_return_amount"`
	Subtotal                    types.Money `db:"subtotal" json:"subtotal"`
	TaxAmount                   types.Money `db:"tax_amount" json:"tax_amount"`
	GrandTotal                  types.Money `db:"grand_total" json:"grand_total"`
	RoundedTotal                types.Money `db:"rounded_total" json:"rounded_total"`

	DownPaymentType   DownPaymentType `db:"down_payment_type" json:"down_payment_type,omitempty"`
	DownPaymentAmount types.Money     `db:"down_payment_amount" json:"down_payment_amount"`
	PaymentAmount     types.Money     `db:"payment_amount" json:"payment_amount"`
	RemainingBalance  types.Money     `db:"remaining_balance" json:"remaining_balance"`
	BalanceAmount     types.Money     `db:"balance_amount" json:"balance_amount"`
	PaymentStatus     PaymentStatus   `db:"payment_status" json:"payment_status"`

	Status         Status         `db:"status" json:"status"`
	WorkflowState  string         `db:"workflow_state" json:"workflow_state,omitempty"`
	ApprovalStatus ApprovalStatus `db:"approval_status" json:"approval_status,omitempty"`
	ApprovedBy     string         `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedOn     *time.Time     `db:"approved_on" json:"approved_on,omitempty"`

	SalesInvoice *id.ID `db:"sales_invoice" json:"sales_invoice,omitempty"`

	JobTypes         []JobLine      `db:"-" json:"job_type_items"`
	ServicePackages  []PackageLine  `db:"-" json:"service_package_items"`
	Parts            []PartLine     `db:"-" json:"part_items"`
	ExternalServices []ExternalLine `db:"-" json:"external_service_items"`
	Payments         []Payment      `db:"-" json:"payment_details"`
	ReturnItems      []ReturnLine   `db:"-" json:"return_items"`
}

// JobLine is billed labour: Amount = Hours x Rate.
type JobLine struct {
	LineID  id.ID       `db:"line_id" json:"line_id"`
	LineNo  int         `db:"line_no" json:"idx"`
	JobType string      `db:"job_type" json:"job_type"`
	JobName string      `db:"job_type_name" json:"job_type_name"`
	Hours   types.Money `db:"hours" json:"hours"`
	Rate    types.Money `db:"rate" json:"rate"`
	Amount  types.Money `db:"amount" json:"amount"`
}

// PackageLine is a billed service package: Amount = Quantity x Rate.
type PackageLine struct {
	LineID         id.ID          `db:"line_id" json:"line_id"`
	LineNo         int            `db:"line_no" json:"idx"`
	ServicePackage string         `db:"service_package" json:"service_package"`
	PackageName    string         `db:"service_package_name" json:"service_package_name"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	Rate           types.Money    `db:"rate" json:"rate"`
	Amount         types.Money    `db:"amount" json:"amount"`
}

// PartLine is a billed part: Amount = Quantity x Rate.
type PartLine struct {
	LineID    id.ID          `db:"line_id" json:"line_id"`
	LineNo    int            `db:"line_no" json:"idx"`
	Part      string         `db:"part" json:"part"`
	PartName  string         `db:"part_name" json:"part_name"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Rate      types.Money    `db:"rate" json:"rate"`
	Amount    types.Money    `db:"amount" json:"amount"`
	Warehouse string         `db:"warehouse" json:"warehouse,omitempty"`
}

// ExternalLine is an outsourced service billed once at Rate.
type ExternalLine struct {
	LineID      id.ID       `db:"line_id" json:"line_id"`
	LineNo      int         `db:"line_no" json:"idx"`
	ServiceName string      `db:"service_name" json:"service_name"`
	Provider    string      `db:"provider" json:"provider,omitempty"`
	Rate        types.Money `db:"rate" json:"rate"`
	Amount      types.Money `db:"amount" json:"amount"`
}

// ReturnLine credits part of a billed part row: Amount = -(Quantity x Rate).
type ReturnLine struct {
	LineID id.ID `db:"line_id" json:"line_id"`
	LineNo int   `db:"line_no" json:"idx"`
	// PartItem is the line id of the returned part row on ReturnAgainst.
	PartItem id.ID          `db:"part_item" json:"part_item"`
	Part     string         `db:"part" json:"part"`
	PartName string         `db:"part_name" json:"part_name"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	Rate     types.Money    `db:"rate" json:"rate"`
	Amount   types.Money    `db:"amount" json:"amount"`
	Reason   string         `db:"reason" json:"reason"`
}

// Payment is a payment received against the billing.
type Payment struct {
	LineID        id.ID       `db:"line_id" json:"line_id"`
	LineNo        int         `db:"line_no" json:"idx"`
	ModeOfPayment string      `db:"mode_of_payment" json:"mode_of_payment"`
	Amount        types.Money `db:"amount" json:"amount"`
	Reference     string      `db:"reference_no" json:"reference_no,omitempty"`
}

// ChargeOnNetTotal is the only charge type applied to the preview tax.
const ChargeOnNetTotal = "On Net Total"

// ChargeRow is one row of a sales tax template.
type ChargeRow struct {
	ChargeType  string      `db:"charge_type" json:"charge_type"`
	AccountHead string      `db:"account_head" json:"account_head"`
	Description string      `db:"description" json:"description"`
	Rate        types.Money `db:"rate" json:"rate"`
}

// New creates a draft billing for a work order.
func New(workOrder id.ID) *Billing {
	return &Billing{
		Document:      entity.NewDocument(),
		WorkOrder:     workOrder,
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
	}
}

// Validate checks the fields that never depend on other records.
func (b *Billing) Validate(_ context.Context) error {
	if b.WorkOrder == id.Nil() {
		return apperror.NewMissingRequiredField("work_order")
	}
	if b.DiscountAmount.IsNegative() {
		return apperror.NewValidation("Discount amount cannot be negative")
	}
	if b.DownPaymentAmount.IsNegative() {
		return apperror.NewValidation("Down payment cannot be negative")
	}
	for i, p := range b.Payments {
		if !p.Amount.IsPositive() {
			return apperror.NewQuantityViolation("Payment amount must be greater than zero").
				WithDetail("row", i+1)
		}
	}
	return b.validateReturnItems()
}

func (b *Billing) validateReturnItems() error {
	if !b.IsReturn {
		if len(b.ReturnItems) > 0 {
			return apperror.NewValidation("Return items are only allowed on a return billing")
		}
		return nil
	}
	if b.ReturnAgainst == nil || id.IsNil(*b.ReturnAgainst) {
		return apperror.NewMissingRequiredField("return_against")
	}
	if len(b.ReturnItems) == 0 {
		return apperror.NewValidation("At least one return item is required")
	}
	for i, r := range b.ReturnItems {
		row := i + 1
		if id.IsNil(r.PartItem) {
			return apperror.NewMissingRequiredField("part_item").WithDetail("row", row)
		}
		if !r.Quantity.IsPositive() {
			return apperror.NewQuantityViolation("Return quantity must be greater than zero").
				WithDetail("row", row)
		}
		if r.Rate.IsNegative() {
			return apperror.NewValidation("Return rate cannot be negative").WithDetail("row", row)
		}
		if strings.TrimSpace(r.Reason) == "" {
			return apperror.NewMissingRequiredField("reason").WithDetail("row", row)
		}
	}
	return nil
}

// PartLine returns the part row with lineID, or nil.
func (b *Billing) PartLine(lineID id.ID) *PartLine {
	for i := range b.Parts {
		if b.Parts[i].LineID == lineID {
			return &b.Parts[i]
		}
	}
	return nil
}

// Renumber assigns line ids and 1-based positions to every line group.
func (b *Billing) Renumber() {
	for i := range b.JobTypes {
		b.JobTypes[i].LineNo = i + 1
		if id.IsNil(b.JobTypes[i].LineID) {
			b.JobTypes[i].LineID = id.New()
		}
	}
	for i := range b.ServicePackages {
		b.ServicePackages[i].LineNo = i + 1
		if id.IsNil(b.ServicePackages[i].LineID) {
			b.ServicePackages[i].LineID = id.New()
		}
	}
	for i := range b.Parts {
		b.Parts[i].LineNo = i + 1
		if id.IsNil(b.Parts[i].LineID) {
			b.Parts[i].LineID = id.New()
		}
	}
	for i := range b.ExternalServices {
		b.ExternalServices[i].LineNo = i + 1
		if id.IsNil(b.ExternalServices[i].LineID) {
			b.ExternalServices[i].LineID = id.New()
		}
	}
	for i := range b.Payments {
		b.Payments[i].LineNo = i + 1
		if id.IsNil(b.Payments[i].LineID) {
			b.Payments[i].LineID = id.New()
		}
	}
	for i := range b.ReturnItems {
		b.ReturnItems[i].LineNo = i + 1
		if id.IsNil(b.ReturnItems[i].LineID) {
			b.ReturnItems[i].LineID = id.New()
		}
	}
}
