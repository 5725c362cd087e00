package dto

import (
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/material"
)

// MaterialIssueRequest creates or replaces a draft material issue.
type MaterialIssueRequest struct {
	Version      int                        `json:"version,omitempty"`
	WorkOrder    string                     `json:"work_order" binding:"required,uuid"`
	SetWarehouse string                     `json:"set_warehouse" binding:"required"`
	PostingDate  *Date                      `json:"posting_date,omitempty"`
	PostingTime  string                     `json:"posting_time,omitempty" binding:"omitempty,datetime=15:04:05"`
	Remarks      string                     `json:"remarks,omitempty"`
	Items        []MaterialIssueItemRequest `json:"items" binding:"required,min=1,dive"`
}

// MaterialIssueItemRequest is one part to issue.
type MaterialIssueItemRequest struct {
	Part string         `json:"part" binding:"required"`
	UOM  string         `json:"uom,omitempty"`
	Qty  types.Quantity `json:"qty" binding:"dec_gt0"`
}

// ToEntity converts request to domain entity.
func (r *MaterialIssueRequest) ToEntity() *material.Issue {
	woID, _ := id.Parse(r.WorkOrder)
	i := material.NewIssue(woID, r.SetWarehouse)
	r.ApplyTo(i)
	return i
}

// ApplyTo copies the request onto i.
func (r *MaterialIssueRequest) ApplyTo(i *material.Issue) {
	if r.Version > 0 {
		i.Version = r.Version
	}
	i.WorkOrder, _ = id.Parse(r.WorkOrder)
	i.Warehouse = r.SetWarehouse
	if r.PostingDate != nil && !r.PostingDate.IsZero() {
		i.PostingDate = r.PostingDate.Time
	}
	i.PostingTime = r.PostingTime
	i.Remarks = r.Remarks
	i.Items = make([]material.IssueItem, 0, len(r.Items))
	for _, it := range r.Items {
		i.Items = append(i.Items, material.IssueItem{Part: it.Part, UOM: it.UOM, Qty: it.Qty})
	}
}

// MaterialReturnRequest creates or replaces a draft material return.
type MaterialReturnRequest struct {
	Version     int                         `json:"version,omitempty"`
	WorkOrder   string                      `json:"work_order" binding:"required,uuid"`
	Warehouse   string                      `json:"warehouse" binding:"required"`
	PostingDate *Date                       `json:"posting_date,omitempty"`
	PostingTime string                      `json:"posting_time,omitempty" binding:"omitempty,datetime=15:04:05"`
	Remarks     string                      `json:"remarks,omitempty"`
	Items       []MaterialReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}

// MaterialReturnItemRequest is one part going back to stock. A zero
// valuation rate is filled in on save.
type MaterialReturnItemRequest struct {
	Part          string         `json:"part" binding:"required"`
	UOM           string         `json:"uom,omitempty"`
	Qty           types.Quantity `json:"qty" binding:"dec_gt0"`
	ValuationRate types.Money    `json:"valuation_rate" binding:"dec_gte0"`
	Warehouse     string         `json:"warehouse,omitempty"`
}

// ToEntity converts request to domain entity.
func (r *MaterialReturnRequest) ToEntity() *material.Return {
	woID, _ := id.Parse(r.WorkOrder)
	ret := material.NewReturn(woID, r.Warehouse)
	r.ApplyTo(ret)
	return ret
}

// ApplyTo copies the request onto ret.
func (r *MaterialReturnRequest) ApplyTo(ret *material.Return) {
	if r.Version > 0 {
		ret.Version = r.Version
	}
	ret.WorkOrder, _ = id.Parse(r.WorkOrder)
	ret.Warehouse = r.Warehouse
	if r.PostingDate != nil && !r.PostingDate.IsZero() {
		ret.PostingDate = r.PostingDate.Time
	}
	ret.PostingTime = r.PostingTime
	ret.Remarks = r.Remarks
	ret.Items = make([]material.ReturnItem, 0, len(r.Items))
	for _, it := range r.Items {
		ret.Items = append(ret.Items, material.ReturnItem{
			Part:          it.Part,
			UOM:           it.UOM,
			Qty:           it.Qty,
			ValuationRate: it.ValuationRate,
			Warehouse:     it.Warehouse,
		})
	}
}
