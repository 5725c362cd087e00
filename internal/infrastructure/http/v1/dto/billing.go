package dto

import (
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/billing"
)

// CreateBillingRequest raises a billing for a work order. With
// from_work_order set, the lines are taken from the work order's billing
// source and every other field is ignored.
type CreateBillingRequest struct {
	WorkOrder     string `json:"work_order" binding:"required,uuid"`
	FromWorkOrder bool   `json:"from_work_order,omitempty"`
	BillingFields
}

// BillingFields are the editable fields of a draft billing.
type BillingFields struct {
	Customer          string                  `json:"customer,omitempty"`
	CustomerVehicle   string                  `json:"customer_vehicle,omitempty"`
	PostingDate       *Date                   `json:"posting_date,omitempty"`
	DueDate           *Date                   `json:"due_date,omitempty"`
	IsReturn          bool                    `json:"is_return,omitempty"`
	ReturnAgainst     string                  `json:"return_against,omitempty" binding:"omitempty,uuid"`
	PriceList         string                  `json:"price_list,omitempty"`
	Currency          string                  `json:"currency,omitempty" binding:"omitempty,len=3"`
	TaxesAndCharges   string                  `json:"taxes_and_charges,omitempty"`
	DiscountAmount    types.Money             `json:"discount_amount" binding:"dec_gte0"`
	DownPaymentType   billing.DownPaymentType `json:"down_payment_type,omitempty" binding:"omitempty,oneof=Amount Percentage"`
	DownPaymentAmount types.Money             `json:"down_payment_amount" binding:"dec_gte0"`
	WorkflowState     string                  `json:"workflow_state,omitempty"`
	Comment           string                  `json:"comment,omitempty"`

	JobTypes         []billing.JobLine      `json:"job_type_items"`
	ServicePackages  []billing.PackageLine  `json:"service_package_items"`
	Parts            []billing.PartLine     `json:"part_items"`
	ExternalServices []billing.ExternalLine `json:"external_service_items"`
	Payments         []PaymentRequest       `json:"payment_details" binding:"omitempty,dive"`
	ReturnItems      []ReturnItemRequest    `json:"return_items" binding:"omitempty,dive"`
}

// ReturnItemRequest credits part of a billed part row. A zero rate takes
// the billed rate.
type ReturnItemRequest struct {
	PartItem string         `json:"part_item" binding:"required,uuid"`
	Quantity types.Quantity `json:"quantity" binding:"dec_gt0"`
	Rate     types.Money    `json:"rate" binding:"dec_gte0"`
	Reason   string         `json:"reason" binding:"required"`
}

// PaymentRequest is a payment row.
type PaymentRequest struct {
	ModeOfPayment string      `json:"mode_of_payment" binding:"required"`
	Amount        types.Money `json:"amount" binding:"dec_gt0"`
	Reference     string      `json:"reference_no,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *CreateBillingRequest) ToEntity() *billing.Billing {
	workOrder, _ := id.Parse(r.WorkOrder)
	b := billing.New(workOrder)
	r.BillingFields.ApplyTo(b)
	return b
}

// UpdateBillingRequest replaces the editable fields of a draft billing.
type UpdateBillingRequest struct {
	Version int `json:"version" binding:"required,min=1"`
	BillingFields
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateBillingRequest) ApplyTo(b *billing.Billing) {
	b.Version = r.Version
	r.BillingFields.ApplyTo(b)
}

// ApplyTo copies the fields onto b.
func (f *BillingFields) ApplyTo(b *billing.Billing) {
	b.Customer = f.Customer
	b.CustomerVehicle = f.CustomerVehicle
	if f.PostingDate != nil && !f.PostingDate.IsZero() {
		b.PostingDate = f.PostingDate.Time
	}
	b.DueDate = DatePtr(f.DueDate)
	b.IsReturn = f.IsReturn
	b.ReturnAgainst = nil
	if f.ReturnAgainst != "" {
		against, _ := id.Parse(f.ReturnAgainst)
		b.ReturnAgainst = &against
	}
	b.PriceList = f.PriceList
	b.Currency = f.Currency
	b.TaxesAndCharges = f.TaxesAndCharges
	b.DiscountAmount = f.DiscountAmount
	b.DownPaymentType = f.DownPaymentType
	b.DownPaymentAmount = f.DownPaymentAmount
	b.WorkflowState = f.WorkflowState
	b.Comment = f.Comment

	b.JobTypes = f.JobTypes
	b.ServicePackages = f.ServicePackages
	b.Parts = f.Parts
	b.ExternalServices = f.ExternalServices
	b.Payments = make([]billing.Payment, 0, len(f.Payments))
	for _, p := range f.Payments {
		b.Payments = append(b.Payments, billing.Payment{
			ModeOfPayment: p.ModeOfPayment,
			Amount:        p.Amount,
			Reference:     p.Reference,
		})
	}
	b.ReturnItems = make([]billing.ReturnLine, 0, len(f.ReturnItems))
	for _, r := range f.ReturnItems {
		partItem, _ := id.Parse(r.PartItem)
		b.ReturnItems = append(b.ReturnItems, billing.ReturnLine{
			PartItem: partItem,
			Quantity: r.Quantity,
			Rate:     r.Rate,
			Reason:   r.Reason,
		})
	}
}
