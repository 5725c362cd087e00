// Package pricing resolves selling rates for parts, jobs and packages and
// maintains the time-ranged service price list.
package pricing

import (
	"context"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
)

// Resolution sources.
const (
	SourceItemPrice        = "Item Price"
	SourceServicePriceList = "Service Price List"
	SourceNone             = "None"
)

// ServicePrice is one row of the service price list.
// At most one active row may cover a given day for the same
// (reference, price list) pair.
type ServicePrice struct {
	entity.BaseDocument

	ReferenceType catalog.ReferenceKind `db:"reference_type" json:"reference_type"`
	ReferenceName string                `db:"reference_name" json:"reference_name"`
	PriceList     string                `db:"price_list" json:"price_list"`
	Rate          types.Money           `db:"rate" json:"rate"`
	Currency      string                `db:"currency" json:"currency"`
	ValidFrom     *time.Time            `db:"valid_from" json:"valid_from,omitempty"`
	ValidUpto     *time.Time            `db:"valid_upto" json:"valid_upto,omitempty"`
	IsActive      bool                  `db:"is_active" json:"is_active"`
	TaxTemplate   *string               `db:"tax_template" json:"tax_template,omitempty"`
}

// NewServicePrice creates an active price row.
func NewServicePrice(ref catalog.Reference, priceList string, rate types.Money) *ServicePrice {
	return &ServicePrice{
		BaseDocument:  entity.NewBaseDocument(),
		ReferenceType: ref.Kind,
		ReferenceName: ref.Name,
		PriceList:     priceList,
		Rate:          rate,
		IsActive:      true,
	}
}

// Reference returns the priced catalog reference.
func (p *ServicePrice) Reference() catalog.Reference {
	return catalog.Ref(p.ReferenceType, p.ReferenceName)
}

// Window returns the validity window of the row.
func (p *ServicePrice) Window() Window {
	return Window{From: p.ValidFrom, Upto: p.ValidUpto}
}

// Validate checks invariants that need no database access.
func (p *ServicePrice) Validate(_ context.Context) error {
	if err := p.Reference().Validate(); err != nil {
		return err
	}
	if p.PriceList == "" {
		return apperror.NewMissingRequiredField("price_list")
	}
	if !p.Window().Valid() {
		return apperror.NewValidation("Valid From date cannot be after Valid Upto date").
			WithDetail("field", "valid_from")
	}
	if p.IsActive && !p.Rate.IsPositive() {
		return apperror.NewQuantityViolation("Rate must be greater than zero for active price entries").
			WithDetail("field", "rate")
	}
	return nil
}

// ItemPrice is a row of the primary selling price table, keyed by stock item.
type ItemPrice struct {
	ItemCode  string      `db:"item_code" json:"item_code"`
	PriceList string      `db:"price_list" json:"price_list"`
	Rate      types.Money `db:"price_list_rate" json:"price_list_rate"`
	Currency  string      `db:"currency" json:"currency"`
	Selling   bool        `db:"selling" json:"selling"`
	ValidFrom *time.Time  `db:"valid_from" json:"valid_from,omitempty"`
	ValidUpto *time.Time  `db:"valid_upto" json:"valid_upto,omitempty"`
	CreatedAt time.Time   `db:"created_at" json:"created_at"`
}

// Resolution is the answer of the price resolver.
type Resolution struct {
	Rate        types.Money `json:"rate"`
	Currency    string      `json:"currency"`
	TaxTemplate string      `json:"tax_template,omitempty"`
	Source      string      `json:"source"`
	Found       bool        `json:"found"`
}
