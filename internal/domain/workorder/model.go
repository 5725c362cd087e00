// Package workorder holds service work orders and the billing source
// computed from them.
package workorder

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
)

// EntityName is the document type name used in errors and history.
const EntityName = "Work Order"

// Status is the workshop progress of a work order.
type Status string

const (
	StatusDraft      Status = "Draft"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusClosed     Status = "Closed"
	StatusCancelled  Status = "Cancelled"
)

// Billable reports whether a billing may be raised for the status.
func (s Status) Billable() bool {
	return s == StatusCompleted || s == StatusClosed
}

// BillingStatus tracks whether a submitted billing exists.
type BillingStatus string

const (
	BillingUnbilled BillingStatus = "Unbilled"
	BillingBilled   BillingStatus = "Billed"
)

// PartSourceNewPurchase marks parts bought specifically for the job;
// such lines must reference a purchase order.
const PartSourceNewPurchase = "Beli Baru"

// WorkOrder is a service job for a customer vehicle.
type WorkOrder struct {
	entity.Document

	Customer        string        `db:"customer" json:"customer"`
	CustomerVehicle string        `db:"customer_vehicle" json:"customer_vehicle"`
	ServiceDate     *time.Time    `db:"service_date" json:"service_date,omitempty"`
	ServiceAdvisor  string        `db:"service_advisor" json:"service_advisor"`
	Status          Status        `db:"status" json:"status"`
	BillingStatus   BillingStatus `db:"billing_status" json:"billing_status"`
	TotalAmount     types.Money   `db:"total_amount" json:"total_amount"`

	JobTypes         []JobLine      `db:"-" json:"job_type_detail"`
	ServicePackages  []PackageLine  `db:"-" json:"service_package_detail"`
	Parts            []PartLine     `db:"-" json:"part_detail"`
	ExternalServices []ExternalLine `db:"-" json:"external_services"`
}

// JobLine is a labour row.
type JobLine struct {
	LineID  id.ID       `db:"line_id" json:"line_id"`
	LineNo  int         `db:"line_no" json:"idx"`
	JobType string      `db:"job_type" json:"job_type"`
	JobName string      `db:"job_type_name" json:"job_type_name"`
	Hours   types.Money `db:"hours" json:"hours"`
	Rate    types.Money `db:"rate" json:"rate"`
	Amount  types.Money `db:"amount" json:"amount"`
	IsOPL   bool        `db:"is_opl" json:"is_opl"`
	Vendor  string      `db:"vendor" json:"vendor,omitempty"`
}

// PackageLine is a service package row.
type PackageLine struct {
	LineID         id.ID          `db:"line_id" json:"line_id"`
	LineNo         int            `db:"line_no" json:"idx"`
	ServicePackage string         `db:"service_package" json:"service_package"`
	PackageName    string         `db:"service_package_name" json:"service_package_name"`
	Quantity       types.Quantity `db:"quantity" json:"quantity"`
	Rate           types.Money    `db:"rate" json:"rate"`
	Amount         types.Money    `db:"amount" json:"amount"`
}

// PartLine is a spare part row.
type PartLine struct {
	LineID        id.ID          `db:"line_id" json:"line_id"`
	LineNo        int            `db:"line_no" json:"idx"`
	Part          string         `db:"part" json:"part"`
	PartName      string         `db:"part_name" json:"part_name"`
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	Rate          types.Money    `db:"rate" json:"rate"`
	Amount        types.Money    `db:"amount" json:"amount"`
	Source        string         `db:"source" json:"source,omitempty"`
	PurchaseOrder string         `db:"purchase_order" json:"purchase_order,omitempty"`
	Warehouse     string         `db:"warehouse" json:"warehouse,omitempty"`
	// ConsumedQty is issued minus returned through material documents.
	ConsumedQty types.Quantity `db:"consumed_qty" json:"consumed_qty"`
}

// RemainingQty is the quantity still to be issued, never below zero.
func (p PartLine) RemainingQty() types.Quantity {
	rest := p.Quantity.Sub(p.ConsumedQty)
	if rest.IsNegative() {
		return types.Zero()
	}
	return rest
}

// ExternalLine is an outsourced service billed at a flat rate.
type ExternalLine struct {
	LineID      id.ID       `db:"line_id" json:"line_id"`
	LineNo      int         `db:"line_no" json:"idx"`
	ServiceName string      `db:"service_name" json:"service_name"`
	Provider    string      `db:"provider" json:"provider,omitempty"`
	Rate        types.Money `db:"rate" json:"rate"`
	Amount      types.Money `db:"amount" json:"amount"`
}

// NewWorkOrder creates a draft work order.
func NewWorkOrder(customer, vehicle string) *WorkOrder {
	return &WorkOrder{
		Document:        entity.NewDocument(),
		Customer:        customer,
		CustomerVehicle: vehicle,
		Status:          StatusDraft,
		BillingStatus:   BillingUnbilled,
	}
}

// Validate checks row rules that apply on every save.
func (w *WorkOrder) Validate(_ context.Context) error {
	for i, p := range w.Parts {
		if p.Source == PartSourceNewPurchase && p.PurchaseOrder == "" {
			return apperror.NewMissingRequiredField("purchase_order").
				WithDetail("row", i+1).
				WithDetail("part", p.Part)
		}
	}
	for i, j := range w.JobTypes {
		if j.IsOPL && j.Vendor == "" {
			return apperror.NewMissingRequiredField("vendor").
				WithDetail("row", i+1).
				WithDetail("job_type", j.JobType)
		}
	}
	w.CalculateTotal()
	return nil
}

// ValidateForSubmit checks the fields required before submission.
func (w *WorkOrder) ValidateForSubmit(ctx context.Context) error {
	var missing []string
	if w.Customer == "" {
		missing = append(missing, "customer")
	}
	if w.CustomerVehicle == "" {
		missing = append(missing, "customer_vehicle")
	}
	if w.ServiceDate == nil {
		missing = append(missing, "service_date")
	}
	if w.ServiceAdvisor == "" {
		missing = append(missing, "service_advisor")
	}
	if w.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return apperror.NewMissingRequiredField(missing...)
	}

	if len(w.JobTypes) == 0 && len(w.ServicePackages) == 0 && len(w.Parts) == 0 {
		return apperror.NewValidation("Work Order must have at least one Job Type, Service Package, or Part detail before submitting")
	}

	for i, p := range w.Parts {
		if !p.Quantity.IsPositive() || !p.Rate.IsPositive() || !p.Amount.IsPositive() {
			return apperror.NewQuantityViolation(
				fmt.Sprintf("Row #%d: Quantity, Rate, and Amount are mandatory for Part '%s' before submitting", i+1, p.Part))
		}
	}

	return w.Validate(ctx)
}

// CalculateTotal sums stored line amounts.
func (w *WorkOrder) CalculateTotal() {
	total := types.Zero()
	for _, p := range w.Parts {
		total = total.Add(p.Amount)
	}
	for _, j := range w.JobTypes {
		total = total.Add(j.Amount)
	}
	for _, sp := range w.ServicePackages {
		total = total.Add(sp.Amount)
	}
	for _, e := range w.ExternalServices {
		total = total.Add(e.Amount)
	}
	w.TotalAmount = total
}

// PartLineFor returns the first part row for part, or nil.
func (w *WorkOrder) PartLineFor(part string) *PartLine {
	for i := range w.Parts {
		if w.Parts[i].Part == part {
			return &w.Parts[i]
		}
	}
	return nil
}

// ConsumedQty sums the consumed quantity of every row for part.
func (w *WorkOrder) ConsumedQty(part string) types.Quantity {
	total := types.Zero()
	for _, p := range w.Parts {
		if p.Part == part {
			total = total.Add(p.ConsumedQty)
		}
	}
	return total
}

// AcceptsMaterial reports whether parts may be issued to or returned from
// the work order: it must be submitted and not cancelled.
func (w *WorkOrder) AcceptsMaterial() error {
	if w.DocStatus != entity.DocStatusSubmitted || w.Status == StatusCancelled {
		state := string(w.Status)
		if w.DocStatus != entity.DocStatusSubmitted {
			state = w.DocStatus.String()
		}
		return apperror.NewValidation(fmt.Sprintf(
			"Work Order %s is %s; material can only move against a submitted work order", w.Number, state)).
			WithDetail("work_order", w.ID)
	}
	return nil
}

// ConsumedDelta changes the consumed quantity of the first row for Part.
type ConsumedDelta struct {
	Part string
	Qty  types.Quantity
}

// ApplyConsumption adds each delta to the matching row, flooring at zero.
// Deltas for parts not on the work order are ignored.
func (w *WorkOrder) ApplyConsumption(deltas []ConsumedDelta) {
	for _, d := range deltas {
		line := w.PartLineFor(d.Part)
		if line == nil {
			continue
		}
		line.ConsumedQty = line.ConsumedQty.Add(d.Qty)
		if line.ConsumedQty.IsNegative() {
			line.ConsumedQty = types.Zero()
		}
	}
}

// allowedTransitions is the workshop status machine.
var allowedTransitions = map[Status][]Status{
	StatusDraft:      {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {StatusClosed},
}

// TransitionTo moves the work order to next if the move is allowed.
func (w *WorkOrder) TransitionTo(next Status) error {
	for _, s := range allowedTransitions[w.Status] {
		if s == next {
			w.Status = next
			w.Touch()
			return nil
		}
	}
	return apperror.NewInvalidStateTransition(EntityName, string(w.Status), "move to "+string(next))
}
