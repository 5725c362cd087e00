// Package stocktest provides an in-memory stock register for tests.
package stocktest

import (
	"context"
	"slices"
	"sync"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/registers/stock"
)

// Memory is a map-backed stock.Repository. Balances are derived from the
// recorded movements.
type Memory struct {
	mu        sync.Mutex
	Entries   map[id.ID]*stock.StockEntry
	Movements []entity.StockMovement

	// JournalLinks marks entries that have journal entries.
	JournalLinks map[id.ID]bool
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{
		Entries:      map[id.ID]*stock.StockEntry{},
		JournalLinks: map[id.ID]bool{},
	}
}

// Seed records a receipt movement without an entry.
func (m *Memory) Seed(warehouse, itemCode string, qty, rate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv := entity.NewStockMovement(id.New(), "Seed", time.Now().AddDate(-1, 0, 0),
		entity.RecordTypeReceipt, warehouse, itemCode, types.MustMoney(qty), types.MustMoney(rate))
	mv.CreatedAt = time.Now().AddDate(-1, 0, 0)
	m.Movements = append(m.Movements, mv)
}

func (m *Memory) CreateEntry(_ context.Context, e *stock.StockEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.Items = slices.Clone(e.Items)
	m.Entries[e.ID] = &cp
	return nil
}

func (m *Memory) UpdateEntry(_ context.Context, e *stock.StockEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Entries[e.ID]
	if !ok {
		return apperror.NewNotFound(stock.EntityName, e.ID)
	}
	if stored.Version != e.Version {
		return apperror.NewConcurrentModification(stock.EntityName, e.ID)
	}
	e.BumpVersion()
	cp := *e
	cp.Items = slices.Clone(e.Items)
	m.Entries[e.ID] = &cp
	return nil
}

func (m *Memory) GetEntry(_ context.Context, entryID id.ID) (*stock.StockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Entries[entryID]
	if !ok {
		return nil, apperror.NewNotFound(stock.EntityName, entryID)
	}
	cp := *stored
	cp.Items = slices.Clone(stored.Items)
	return &cp, nil
}

// EntriesByReference returns entries raised by the given document.
func (m *Memory) EntriesByReference(refID id.ID) []*stock.StockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*stock.StockEntry
	for _, e := range m.Entries {
		if e.ReferenceID == refID {
			out = append(out, e)
		}
	}
	return out
}

func (m *Memory) CreateMovements(_ context.Context, movements []entity.StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Movements = append(m.Movements, movements...)
	return nil
}

func (m *Memory) DeleteMovementsByRecorder(_ context.Context, recorderID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Movements = slices.DeleteFunc(m.Movements, func(mv entity.StockMovement) bool {
		return mv.RecorderID == recorderID
	})
	return nil
}

func (m *Memory) GetMovementsByRecorder(_ context.Context, recorderID id.ID) ([]entity.StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.StockMovement
	for _, mv := range m.Movements {
		if mv.RecorderID == recorderID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *Memory) GetBalance(_ context.Context, warehouse, itemCode string) (*entity.StockBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(warehouse, itemCode), nil
}

func (m *Memory) GetBalanceForUpdate(ctx context.Context, warehouse, itemCode string) (*entity.StockBalance, error) {
	return m.GetBalance(ctx, warehouse, itemCode)
}

func (m *Memory) GetBalancesByWarehouse(_ context.Context, warehouse string, f stock.BalanceFilter) ([]entity.StockBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []string
	for _, mv := range m.Movements {
		if mv.Warehouse != warehouse || slices.Contains(items, mv.ItemCode) {
			continue
		}
		if len(f.ItemCodes) > 0 && !slices.Contains(f.ItemCodes, mv.ItemCode) {
			continue
		}
		items = append(items, mv.ItemCode)
	}
	slices.Sort(items)
	var out []entity.StockBalance
	for _, item := range items {
		bal := m.balance(warehouse, item)
		if f.ExcludeZero && bal.Quantity.IsZero() {
			continue
		}
		out = append(out, *bal)
	}
	return out, nil
}

// balance folds movements: receipts average the valuation rate.
func (m *Memory) balance(warehouse, itemCode string) *entity.StockBalance {
	var bal *entity.StockBalance
	for _, mv := range m.Movements {
		if mv.Warehouse != warehouse || mv.ItemCode != itemCode {
			continue
		}
		if bal == nil {
			bal = &entity.StockBalance{Warehouse: warehouse, ItemCode: itemCode, Quantity: types.Zero(), ValuationRate: types.Zero()}
		}
		if mv.RecordType == entity.RecordTypeReceipt {
			value := bal.Quantity.Mul(bal.ValuationRate).Add(mv.Quantity.Mul(mv.ValuationRate))
			bal.Quantity = bal.Quantity.Add(mv.Quantity)
			if bal.Quantity.IsPositive() {
				bal.ValuationRate = value.Div(bal.Quantity)
			}
		} else {
			bal.Quantity = bal.Quantity.Sub(mv.Quantity)
		}
		bal.LastMovementAt = mv.CreatedAt
	}
	return bal
}

func (m *Memory) HasSubsequentMovements(_ context.Context, f stock.SubsequentFilter) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mv := range m.Movements {
		if mv.RecorderID == f.ExcludeRecorder {
			continue
		}
		if !slices.Contains(f.ItemCodes, mv.ItemCode) || !slices.Contains(f.Warehouses, mv.Warehouse) {
			continue
		}
		if mv.Period.After(f.AfterPeriod) || (mv.Period.Equal(f.AfterPeriod) && mv.CreatedAt.After(f.CreatedAfter)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) HasJournalEntries(_ context.Context, entryID id.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.JournalLinks[entryID], nil
}

var _ stock.Repository = (*Memory)(nil)
