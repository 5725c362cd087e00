// Package pricingtest provides in-memory pricing repositories for tests.
package pricingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/pricing"
)

// Memory implements pricing.Repository and pricing.ItemPriceReader.
type Memory struct {
	mu          sync.Mutex
	Prices      []*pricing.ServicePrice
	ItemPrices  []pricing.ItemPrice
	TaxDefaults map[string]string
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{TaxDefaults: map[string]string{}}
}

func (m *Memory) Create(_ context.Context, p *pricing.ServicePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prices = append(m.Prices, p)
	return nil
}

func (m *Memory) Update(_ context.Context, p *pricing.ServicePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.Prices {
		if existing.ID == p.ID {
			m.Prices[i] = p
			return nil
		}
	}
	return apperror.NewNotFound("Service Price", p.ID)
}

func (m *Memory) Delete(_ context.Context, priceID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.Prices {
		if p.ID == priceID {
			m.Prices = append(m.Prices[:i], m.Prices[i+1:]...)
			return nil
		}
	}
	return apperror.NewNotFound("Service Price", priceID)
}

func (m *Memory) GetByID(_ context.Context, priceID id.ID) (*pricing.ServicePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Prices {
		if p.ID == priceID {
			return p, nil
		}
	}
	return nil, apperror.NewNotFound("Service Price", priceID)
}

func (m *Memory) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*pricing.ServicePrice], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := append([]*pricing.ServicePrice(nil), m.Prices...)
	return domain.ListResult[*pricing.ServicePrice]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit}, nil
}

func (m *Memory) FindActive(_ context.Context, ref catalog.Reference, priceList string, date time.Time) (*pricing.ServicePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*pricing.ServicePrice
	for _, p := range m.Prices {
		if p.IsActive && p.Reference() == ref && p.PriceList == priceList && p.Window().Contains(date) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		fi, _ := matches[i].Window().Bounds()
		fj, _ := matches[j].Window().Bounds()
		if !fi.Equal(fj) {
			return fi.After(fj)
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches[0], nil
}

func (m *Memory) FindOverlapping(_ context.Context, p *pricing.ServicePrice) ([]*pricing.ServicePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*pricing.ServicePrice
	for _, o := range m.Prices {
		if o.ID != p.ID && o.IsActive && o.Reference() == p.Reference() &&
			o.PriceList == p.PriceList && o.Window().Overlaps(p.Window()) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *Memory) CountActive(_ context.Context, ref catalog.Reference, priceList string, exclude id.ID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.Prices {
		if p.ID != exclude && p.IsActive && p.Reference() == ref && p.PriceList == priceList {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Deactivate(_ context.Context, ids []id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Prices {
		for _, target := range ids {
			if p.ID == target {
				p.IsActive = false
			}
		}
	}
	return nil
}

func (m *Memory) FindItemPrice(_ context.Context, itemCode, priceList string, date time.Time) (*pricing.ItemPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *pricing.ItemPrice
	for i := range m.ItemPrices {
		ip := &m.ItemPrices[i]
		w := pricing.Window{From: ip.ValidFrom, Upto: ip.ValidUpto}
		if ip.ItemCode != itemCode || ip.PriceList != priceList || !ip.Selling || !w.Contains(date) {
			continue
		}
		if best == nil || newer(ip, best) {
			best = ip
		}
	}
	return best, nil
}

func (m *Memory) DefaultTaxTemplate(_ context.Context, itemCode string) (string, error) {
	return m.TaxDefaults[itemCode], nil
}

func newer(a, b *pricing.ItemPrice) bool {
	fa, _ := pricing.Window{From: a.ValidFrom}.Bounds()
	fb, _ := pricing.Window{From: b.ValidFrom}.Bounds()
	if !fa.Equal(fb) {
		return fa.After(fb)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

var (
	_ pricing.Repository      = (*Memory)(nil)
	_ pricing.ItemPriceReader = (*Memory)(nil)
)
