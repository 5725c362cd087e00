// Package opnametest provides an in-memory opname repository for tests.
package opnametest

import (
	"context"
	"slices"
	"sync"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/opname"
)

// Memory is a map-backed opname.Repository. Snapshots round-trip through
// their encoded blob like the database copy does.
type Memory struct {
	mu      sync.Mutex
	Opnames map[id.ID]*opname.Opname
}

// New returns an empty Memory.
func New() *Memory {
	return &Memory{Opnames: map[id.ID]*opname.Opname{}}
}

func clone(o *opname.Opname) (*opname.Opname, error) {
	cp := *o
	cp.Items = slices.Clone(o.Items)
	snap, err := opname.DecodeSnapshot(o.SnapshotBlob)
	if err != nil {
		return nil, err
	}
	cp.Snapshot = snap
	return &cp, nil
}

func (m *Memory) Create(_ context.Context, o *opname.Opname) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, err := clone(o)
	if err != nil {
		return err
	}
	m.Opnames[o.ID] = cp
	return nil
}

func (m *Memory) Update(_ context.Context, o *opname.Opname) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Opnames[o.ID]
	if !ok {
		return apperror.NewNotFound(opname.EntityName, o.ID)
	}
	if stored.Version != o.Version {
		return apperror.NewConcurrentModification(opname.EntityName, o.ID)
	}
	o.BumpVersion()
	cp, err := clone(o)
	if err != nil {
		return err
	}
	m.Opnames[o.ID] = cp
	return nil
}

func (m *Memory) GetByID(_ context.Context, opnameID id.ID) (*opname.Opname, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Opnames[opnameID]
	if !ok {
		return nil, apperror.NewNotFound(opname.EntityName, opnameID)
	}
	return clone(stored)
}

func (m *Memory) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*opname.Opname], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*opname.Opname
	for _, o := range m.Opnames {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		items = append(items, o)
	}
	return domain.ListResult[*opname.Opname]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *Memory) MarkAdjusted(_ context.Context, opnameID, adjustmentID id.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Opnames[opnameID]
	if !ok {
		return apperror.NewNotFound(opname.EntityName, opnameID)
	}
	if stored.Status != opname.StatusSubmitted {
		return apperror.NewInvalidStateTransition(opname.EntityName, string(stored.Status), "create adjustment for")
	}
	stored.Status = opname.StatusAdjusted
	stored.Adjustment = &adjustmentID
	return nil
}

var _ opname.Repository = (*Memory)(nil)
