// Package materialtest provides in-memory material issue and return
// repositories for tests.
package materialtest

import (
	"context"
	"slices"
	"strings"
	"sync"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/material"
)

// Issues is a map-backed material.IssueRepository.
type Issues struct {
	mu     sync.Mutex
	Issues map[id.ID]*material.Issue
}

// NewIssues returns an empty Issues.
func NewIssues() *Issues {
	return &Issues{Issues: map[id.ID]*material.Issue{}}
}

func cloneIssue(i *material.Issue) *material.Issue {
	cp := *i
	cp.Items = slices.Clone(i.Items)
	return &cp
}

func (m *Issues) Create(_ context.Context, i *material.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Issues[i.ID] = cloneIssue(i)
	return nil
}

func (m *Issues) Update(_ context.Context, i *material.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Issues[i.ID]
	if !ok {
		return apperror.NewNotFound(material.IssueEntityName, i.ID)
	}
	if stored.Version != i.Version {
		return apperror.NewConcurrentModification(material.IssueEntityName, i.ID)
	}
	i.BumpVersion()
	m.Issues[i.ID] = cloneIssue(i)
	return nil
}

func (m *Issues) GetByID(_ context.Context, issueID id.ID) (*material.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Issues[issueID]
	if !ok {
		return nil, apperror.NewNotFound(material.IssueEntityName, issueID)
	}
	return cloneIssue(stored), nil
}

func (m *Issues) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*material.Issue], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*material.Issue
	for _, i := range m.Issues {
		if f.Status != "" && string(i.Status) != f.Status {
			continue
		}
		items = append(items, cloneIssue(i))
	}
	return domain.ListResult[*material.Issue]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}, nil
}

func (m *Issues) IssuedParts(_ context.Context, workOrderID, exclude id.ID, parts []string) ([]material.IssuedPart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []material.IssuedPart
	for _, i := range m.Issues {
		if i.ID == exclude || i.WorkOrder != workOrderID || i.DocStatus == entity.DocStatusCancelled {
			continue
		}
		for _, it := range i.Items {
			if slices.Contains(parts, it.Part) {
				out = append(out, material.IssuedPart{Part: it.Part, IssueID: i.ID, IssueNumber: i.Number, DocStatus: i.DocStatus})
			}
		}
	}
	slices.SortFunc(out, func(x, y material.IssuedPart) int { return strings.Compare(x.IssueNumber, y.IssueNumber) })
	return out, nil
}

var _ material.IssueRepository = (*Issues)(nil)

// Returns is a map-backed material.ReturnRepository.
type Returns struct {
	mu      sync.Mutex
	Returns map[id.ID]*material.Return
}

// NewReturns returns an empty Returns.
func NewReturns() *Returns {
	return &Returns{Returns: map[id.ID]*material.Return{}}
}

func cloneReturn(r *material.Return) *material.Return {
	cp := *r
	cp.Items = slices.Clone(r.Items)
	return &cp
}

func (m *Returns) Create(_ context.Context, r *material.Return) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Returns[r.ID] = cloneReturn(r)
	return nil
}

func (m *Returns) Update(_ context.Context, r *material.Return) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Returns[r.ID]
	if !ok {
		return apperror.NewNotFound(material.ReturnEntityName, r.ID)
	}
	if stored.Version != r.Version {
		return apperror.NewConcurrentModification(material.ReturnEntityName, r.ID)
	}
	r.BumpVersion()
	m.Returns[r.ID] = cloneReturn(r)
	return nil
}

func (m *Returns) GetByID(_ context.Context, returnID id.ID) (*material.Return, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.Returns[returnID]
	if !ok {
		return nil, apperror.NewNotFound(material.ReturnEntityName, returnID)
	}
	return cloneReturn(stored), nil
}

func (m *Returns) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*material.Return], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []*material.Return
	for _, r := range m.Returns {
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		items = append(items, cloneReturn(r))
	}
	return domain.ListResult[*material.Return]{Items: items, TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}, nil
}

var _ material.ReturnRepository = (*Returns)(nil)
