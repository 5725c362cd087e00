package dto

import (
	"workshop/internal/core/types"
	"workshop/internal/domain/opname"
)

// OpnameRequest creates or replaces a draft stock opname.
type OpnameRequest struct {
	Version     int                 `json:"version,omitempty"`
	Warehouse   string              `json:"warehouse" binding:"required"`
	PostingDate *Date               `json:"posting_date,omitempty"`
	PostingTime string              `json:"posting_time,omitempty" binding:"omitempty,datetime=15:04:05"`
	Remarks     string              `json:"remarks,omitempty"`
	Items       []OpnameItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OpnameItemRequest is one counted part.
type OpnameItemRequest struct {
	Part       string         `json:"part" binding:"required"`
	QtyCounted types.Quantity `json:"qty_counted" binding:"dec_gte0"`
}

// ToEntity converts request to domain entity.
func (r *OpnameRequest) ToEntity() *opname.Opname {
	o := opname.New(r.Warehouse)
	r.ApplyTo(o)
	return o
}

// ApplyTo copies the request onto o. Item details are filled by the service.
func (r *OpnameRequest) ApplyTo(o *opname.Opname) {
	if r.Version > 0 {
		o.Version = r.Version
	}
	o.Warehouse = r.Warehouse
	if r.PostingDate != nil && !r.PostingDate.IsZero() {
		o.PostingDate = r.PostingDate.Time
	}
	o.PostingTime = r.PostingTime
	o.Remarks = r.Remarks
	o.Items = make([]opname.Item, 0, len(r.Items))
	for _, it := range r.Items {
		o.Items = append(o.Items, opname.Item{Part: it.Part, QtyCounted: it.QtyCounted})
	}
}

// VarianceResponse lists the differing lines of an opname.
type VarianceResponse struct {
	Opname string                `json:"opname"`
	Lines  []opname.VarianceLine `json:"lines"`
}
