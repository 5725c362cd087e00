package pricing

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
)

// Resolver finds the authoritative rate for a catalog reference:
// the primary item price table first, then the service price list, else zero.
type Resolver struct {
	items           ItemLinker
	itemPrices      ItemPriceReader
	prices          Repository
	defaultCurrency string
	now             func() time.Time
}

// NewResolver creates a resolver.
func NewResolver(items ItemLinker, itemPrices ItemPriceReader, prices Repository, defaultCurrency string) *Resolver {
	return &Resolver{
		items:           items,
		itemPrices:      itemPrices,
		prices:          prices,
		defaultCurrency: defaultCurrency,
		now:             time.Now,
	}
}

// Resolve returns the rate of ref in priceList on postingDate.
// A zero postingDate means today. A missing price is not an error:
// the result has Found=false and rate 0.
func (r *Resolver) Resolve(ctx context.Context, ref catalog.Reference, priceList string, postingDate time.Time) (Resolution, error) {
	if err := ref.Validate(); err != nil {
		return Resolution{}, err
	}
	if priceList == "" {
		return Resolution{}, apperror.NewMissingRequiredField("price_list")
	}
	if postingDate.IsZero() {
		postingDate = r.now()
	}

	itemCode, err := r.items.ItemCode(ctx, ref)
	if err != nil {
		return Resolution{}, err
	}

	if itemCode != "" {
		ip, err := r.itemPrices.FindItemPrice(ctx, itemCode, priceList, postingDate)
		if err != nil {
			return Resolution{}, fmt.Errorf("find item price: %w", err)
		}
		if ip != nil {
			tax, err := r.itemPrices.DefaultTaxTemplate(ctx, itemCode)
			if err != nil {
				return Resolution{}, fmt.Errorf("default tax template: %w", err)
			}
			return Resolution{
				Rate:        ip.Rate,
				Currency:    ip.Currency,
				TaxTemplate: tax,
				Source:      SourceItemPrice,
				Found:       true,
			}, nil
		}
	}

	sp, err := r.prices.FindActive(ctx, ref, priceList, postingDate)
	if err != nil {
		return Resolution{}, fmt.Errorf("find service price: %w", err)
	}
	if sp != nil {
		res := Resolution{
			Rate:     sp.Rate,
			Currency: sp.Currency,
			Source:   SourceServicePriceList,
			Found:    true,
		}
		if sp.TaxTemplate != nil {
			res.TaxTemplate = *sp.TaxTemplate
		}
		return res, nil
	}

	return Resolution{
		Rate:     types.Zero(),
		Currency: r.defaultCurrency,
		Source:   SourceNone,
		Found:    false,
	}, nil
}
