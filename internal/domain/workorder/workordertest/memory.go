// Package workordertest provides an in-memory work order repository for tests.
package workordertest

import (
	"context"
	"sync"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/workorder"
)

// Memory is a map-backed workorder.Repository.
type Memory struct {
	mu     sync.Mutex
	Orders map[id.ID]*workorder.WorkOrder
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{Orders: map[id.ID]*workorder.WorkOrder{}}
}

// Put stores w directly.
func (m *Memory) Put(w *workorder.WorkOrder) *workorder.WorkOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Orders[w.ID] = w
	return w
}

func (m *Memory) Create(_ context.Context, w *workorder.WorkOrder) error {
	m.Put(w)
	return nil
}

func (m *Memory) Update(_ context.Context, w *workorder.WorkOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Orders[w.ID]; !ok {
		return apperror.NewNotFound("Work Order", w.ID)
	}
	m.Orders[w.ID] = w
	return nil
}

func (m *Memory) GetByID(_ context.Context, workOrderID id.ID) (*workorder.WorkOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.Orders[workOrderID]; ok {
		return w, nil
	}
	return nil, apperror.NewNotFound("Work Order", workOrderID)
}

func (m *Memory) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*workorder.WorkOrder], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*workorder.WorkOrder, 0, len(m.Orders))
	for _, w := range m.Orders {
		out = append(out, w)
	}
	return domain.ListResult[*workorder.WorkOrder]{Items: out, TotalCount: int64(len(out)), Limit: f.Limit}, nil
}

func (m *Memory) SetBillingStatus(_ context.Context, workOrderID id.ID, status workorder.BillingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.Orders[workOrderID]
	if !ok {
		return apperror.NewNotFound("Work Order", workOrderID)
	}
	w.BillingStatus = status
	return nil
}

func (m *Memory) AddConsumedQty(_ context.Context, workOrderID id.ID, deltas []workorder.ConsumedDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.Orders[workOrderID]
	if !ok {
		return apperror.NewNotFound("Work Order", workOrderID)
	}
	w.ApplyConsumption(deltas)
	w.BumpVersion()
	return nil
}

var _ workorder.Repository = (*Memory)(nil)
