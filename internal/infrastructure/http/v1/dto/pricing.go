package dto

import (
	"time"

	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/pricing"
)

// ResolvePriceQuery is the query of GET /prices/resolve.
type ResolvePriceQuery struct {
	ReferenceType string `form:"reference_type" binding:"required,reference"`
	ReferenceName string `form:"reference_name" binding:"required"`
	PriceList     string `form:"price_list"`
	PostingDate   string `form:"posting_date"`
}

// Reference returns the priced catalog reference.
func (q ResolvePriceQuery) Reference() catalog.Reference {
	kind, _ := catalog.ParseReferenceKind(q.ReferenceType)
	return catalog.Ref(kind, q.ReferenceName)
}

// Date returns the posting date, today when absent.
func (q ResolvePriceQuery) Date() (time.Time, error) {
	if q.PostingDate == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	return ParseDate(q.PostingDate)
}

// ServicePriceRequest creates a service price row.
type ServicePriceRequest struct {
	ReferenceType string      `json:"reference_type" binding:"required,reference"`
	ReferenceName string      `json:"reference_name" binding:"required"`
	PriceList     string      `json:"price_list" binding:"required"`
	Rate          types.Money `json:"rate" binding:"dec_gte0"`
	Currency      string      `json:"currency,omitempty" binding:"omitempty,len=3"`
	ValidFrom     *Date       `json:"valid_from,omitempty"`
	ValidUpto     *Date       `json:"valid_upto,omitempty"`
	IsActive      *bool       `json:"is_active,omitempty"`
	TaxTemplate   *string     `json:"tax_template,omitempty"`
}

// ToEntity converts request to domain entity. Rows are active unless
// is_active is false.
func (r *ServicePriceRequest) ToEntity() *pricing.ServicePrice {
	kind, _ := catalog.ParseReferenceKind(r.ReferenceType)
	p := pricing.NewServicePrice(catalog.Ref(kind, r.ReferenceName), r.PriceList, r.Rate)
	p.Currency = r.Currency
	p.ValidFrom = DatePtr(r.ValidFrom)
	p.ValidUpto = DatePtr(r.ValidUpto)
	p.TaxTemplate = r.TaxTemplate
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	return p
}

// UpdateServicePriceRequest changes a service price row. The reference and
// price list are fixed once created.
type UpdateServicePriceRequest struct {
	Version     int          `json:"version" binding:"required,min=1"`
	Rate        *types.Money `json:"rate,omitempty"`
	Currency    *string      `json:"currency,omitempty" binding:"omitempty,len=3"`
	ValidFrom   *Date        `json:"valid_from,omitempty"`
	ValidUpto   *Date        `json:"valid_upto,omitempty"`
	ClearFrom   bool         `json:"clear_valid_from,omitempty"`
	ClearUpto   bool         `json:"clear_valid_upto,omitempty"`
	IsActive    *bool        `json:"is_active,omitempty"`
	TaxTemplate *string      `json:"tax_template,omitempty"`
}

// ApplyTo applies updates to an existing entity.
func (r *UpdateServicePriceRequest) ApplyTo(p *pricing.ServicePrice) {
	p.Version = r.Version
	if r.Rate != nil {
		p.Rate = *r.Rate
	}
	if r.Currency != nil {
		p.Currency = *r.Currency
	}
	if r.ValidFrom != nil {
		p.ValidFrom = DatePtr(r.ValidFrom)
	}
	if r.ClearFrom {
		p.ValidFrom = nil
	}
	if r.ValidUpto != nil {
		p.ValidUpto = DatePtr(r.ValidUpto)
	}
	if r.ClearUpto {
		p.ValidUpto = nil
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	if r.TaxTemplate != nil {
		p.TaxTemplate = r.TaxTemplate
	}
}

// ActivateResponse lists the rows switched off by an activation.
type ActivateResponse struct {
	Price       *pricing.ServicePrice `json:"price"`
	Deactivated []string              `json:"deactivated"`
}

// DeletePriceResponse carries the warning raised when the last active
// price of a reference was removed.
type DeletePriceResponse struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
}
