// Package adjustmenttest provides an in-memory adjustment repository and
// dispatcher for tests.
package adjustmenttest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/adjustment"
	"workshop/internal/domain/opname"
)

// Memory is a map-backed adjustment.Repository.
type Memory struct {
	mu          sync.Mutex
	Adjustments map[id.ID]*adjustment.Adjustment
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{Adjustments: map[id.ID]*adjustment.Adjustment{}}
}

func clone(a *adjustment.Adjustment) *adjustment.Adjustment {
	cp := *a
	cp.Items = slices.Clone(a.Items)
	cp.StockEntryLogs = slices.Clone(a.StockEntryLogs)
	return &cp
}

func (m *Memory) Create(_ context.Context, a *adjustment.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Adjustments[a.ID] = clone(a)
	return nil
}

func (m *Memory) Update(_ context.Context, a *adjustment.Adjustment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Adjustments[a.ID]
	if !ok {
		return apperror.NewNotFound(adjustment.EntityName, a.ID)
	}
	if stored.Version != a.Version {
		return apperror.NewConcurrentModification(adjustment.EntityName, a.ID)
	}
	a.BumpVersion()
	cp := clone(a)
	cp.StockEntryLogs = stored.StockEntryLogs
	m.Adjustments[a.ID] = cp
	return nil
}

func (m *Memory) GetByID(_ context.Context, adjustmentID id.ID) (*adjustment.Adjustment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Adjustments[adjustmentID]
	if !ok {
		return nil, apperror.NewNotFound(adjustment.EntityName, adjustmentID)
	}
	return clone(stored), nil
}

func (m *Memory) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*adjustment.Adjustment], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*adjustment.Adjustment
	for _, a := range m.Adjustments {
		if f.Status != "" && string(a.Status) != f.Status {
			continue
		}
		items = append(items, clone(a))
	}
	return domain.ListResult[*adjustment.Adjustment]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *Memory) ActiveForOpname(_ context.Context, opnameID id.ID) ([]opname.AdjustmentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []opname.AdjustmentRef
	for _, a := range m.Adjustments {
		if a.ReferenceOpname == opnameID && a.DocStatus != entity.DocStatusCancelled {
			out = append(out, opname.AdjustmentRef{ID: a.ID, Number: a.Number})
		}
	}
	slices.SortFunc(out, func(x, y opname.AdjustmentRef) int { return strings.Compare(x.Number, y.Number) })
	return out, nil
}

func (m *Memory) ClaimPosting(_ context.Context, adjustmentID id.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Adjustments[adjustmentID]
	if !ok {
		return false, nil
	}
	if stored.DocStatus != entity.DocStatusSubmitted || !stored.PostingStatus.Retryable() {
		return false, nil
	}
	stored.PostingStatus = adjustment.PostingInProgress
	stored.PostingError = nil
	return true, nil
}

func (m *Memory) SetPostingResult(_ context.Context, adjustmentID id.ID, r adjustment.PostingResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Adjustments[adjustmentID]
	if !ok {
		return apperror.NewNotFound(adjustment.EntityName, adjustmentID)
	}
	stored.PostingStatus = r.Status
	stored.PostingError = r.Error
	if r.Status == adjustment.PostingDone {
		stored.StockEntryLogs = slices.Clone(r.Logs)
	}
	return nil
}

var _ adjustment.Repository = (*Memory)(nil)

// Dispatcher records enqueued adjustments.
type Dispatcher struct {
	mu     sync.Mutex
	Queued []id.ID
	Users  []string
	Err    error
}

func (d *Dispatcher) EnqueuePosting(_ context.Context, adjustmentID id.ID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Queued = append(d.Queued, adjustmentID)
	d.Users = append(d.Users, userID)
	return nil
}

var _ adjustment.Dispatcher = (*Dispatcher)(nil)
