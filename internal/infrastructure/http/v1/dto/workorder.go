package dto

import (
	"workshop/internal/domain/workorder"
)

// WorkOrderRequest creates or replaces a draft work order.
// Line rows use the document's own JSON shape.
type WorkOrderRequest struct {
	Version         int    `json:"version,omitempty"`
	Customer        string `json:"customer" binding:"required"`
	CustomerVehicle string `json:"customer_vehicle" binding:"required"`
	ServiceAdvisor  string `json:"service_advisor,omitempty"`
	ServiceDate     *Date  `json:"service_date,omitempty"`
	PostingDate     *Date  `json:"posting_date,omitempty"`
	Comment         string `json:"comment,omitempty"`

	JobTypes         []workorder.JobLine      `json:"job_type_detail"`
	ServicePackages  []workorder.PackageLine  `json:"service_package_detail"`
	Parts            []workorder.PartLine     `json:"part_detail"`
	ExternalServices []workorder.ExternalLine `json:"external_services"`
}

// ToEntity converts request to domain entity.
func (r *WorkOrderRequest) ToEntity() *workorder.WorkOrder {
	w := workorder.NewWorkOrder(r.Customer, r.CustomerVehicle)
	r.ApplyTo(w)
	return w
}

// ApplyTo copies every field of the request onto w.
func (r *WorkOrderRequest) ApplyTo(w *workorder.WorkOrder) {
	if r.Version > 0 {
		w.Version = r.Version
	}
	w.Customer = r.Customer
	w.CustomerVehicle = r.CustomerVehicle
	w.ServiceAdvisor = r.ServiceAdvisor
	w.ServiceDate = DatePtr(r.ServiceDate)
	if r.PostingDate != nil && !r.PostingDate.IsZero() {
		w.PostingDate = r.PostingDate.Time
	}
	w.Comment = r.Comment
	w.JobTypes = r.JobTypes
	w.ServicePackages = r.ServicePackages
	w.Parts = r.Parts
	w.ExternalServices = r.ExternalServices
}

// WorkOrderStatusRequest moves a work order along its workshop progress.
type WorkOrderStatusRequest struct {
	Status workorder.Status `json:"status" binding:"required,oneof=Draft 'In Progress' Completed Closed Cancelled"`
}
