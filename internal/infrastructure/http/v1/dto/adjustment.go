package dto

import (
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/adjustment"
)

// AdjustmentRequest creates or replaces a draft stock adjustment.
type AdjustmentRequest struct {
	Version         int                     `json:"version,omitempty"`
	ReferenceOpname string                  `json:"reference_opname" binding:"required,uuid"`
	Warehouse       string                  `json:"warehouse" binding:"required"`
	PostingDate     *Date                   `json:"posting_date,omitempty"`
	PostingTime     string                  `json:"posting_time,omitempty" binding:"omitempty,datetime=15:04:05"`
	Remarks         string                  `json:"remarks,omitempty"`
	Items           []AdjustmentLineRequest `json:"items" binding:"required,min=1,dive"`
}

// AdjustmentLineRequest is one part to adjust.
type AdjustmentLineRequest struct {
	Part          string         `json:"part" binding:"required"`
	ItemCode      string         `json:"item_code,omitempty"`
	UOM           string         `json:"uom,omitempty"`
	ActualQty     types.Quantity `json:"actual_qty" binding:"dec_gte0"`
	CountedQty    types.Quantity `json:"counted_qty" binding:"dec_gte0"`
	ValuationRate types.Money    `json:"valuation_rate" binding:"dec_gte0"`
}

// ToEntity converts request to domain entity.
func (r *AdjustmentRequest) ToEntity() *adjustment.Adjustment {
	a := adjustment.New(r.Warehouse)
	r.ApplyTo(a)
	return a
}

// ApplyTo copies the request onto a.
func (r *AdjustmentRequest) ApplyTo(a *adjustment.Adjustment) {
	if r.Version > 0 {
		a.Version = r.Version
	}
	a.ReferenceOpname, _ = id.Parse(r.ReferenceOpname)
	a.Warehouse = r.Warehouse
	if r.PostingDate != nil && !r.PostingDate.IsZero() {
		a.PostingDate = r.PostingDate.Time
	}
	a.PostingTime = r.PostingTime
	a.Remarks = r.Remarks
	a.Items = make([]adjustment.Line, 0, len(r.Items))
	for _, l := range r.Items {
		a.Items = append(a.Items, adjustment.Line{
			Part:          l.Part,
			ItemCode:      l.ItemCode,
			UOM:           l.UOM,
			ActualQty:     l.ActualQty,
			CountedQty:    l.CountedQty,
			ValuationRate: l.ValuationRate,
		})
	}
}
