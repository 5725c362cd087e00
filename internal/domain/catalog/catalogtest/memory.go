// Package catalogtest provides an in-memory catalog repository for tests.
package catalogtest

import (
	"context"
	"strings"

	"workshop/internal/core/apperror"
	"workshop/internal/domain/catalog"
)

// Memory is a map-backed catalog.Repository.
type Memory struct {
	Parts        map[string]*catalog.Part
	JobTypes     map[string]*catalog.JobType
	Packages     map[string]*catalog.ServicePackage
	ItemBarcodes map[string]string // barcode -> item code

	// PriceNotifications counts item link changes announced to price caches.
	PriceNotifications int
}

// New returns an empty Memory repository.
func New() *Memory {
	return &Memory{
		Parts:        map[string]*catalog.Part{},
		JobTypes:     map[string]*catalog.JobType{},
		Packages:     map[string]*catalog.ServicePackage{},
		ItemBarcodes: map[string]string{},
	}
}

// Str returns a pointer to s.
func Str(s string) *string { return &s }

// AddPart registers a part linked to itemCode ("" for none).
func (m *Memory) AddPart(code, name, itemCode string) *catalog.Part {
	p := &catalog.Part{Code: code, PartName: name}
	if itemCode != "" {
		p.ItemCode = Str(itemCode)
	}
	m.Parts[code] = p
	return p
}

// AddJobType registers a job type.
func (m *Memory) AddJobType(code, name, itemCode string, opl bool) *catalog.JobType {
	j := &catalog.JobType{Code: code, JobName: name, IsOPL: opl}
	if itemCode != "" {
		j.ItemCode = Str(itemCode)
	}
	m.JobTypes[code] = j
	return j
}

// AddPackage registers a service package.
func (m *Memory) AddPackage(code, name, itemCode string) *catalog.ServicePackage {
	sp := &catalog.ServicePackage{Code: code, PackageName: name, IsActive: true}
	if itemCode != "" {
		sp.ItemCode = Str(itemCode)
	}
	m.Packages[code] = sp
	return sp
}

func (m *Memory) GetPart(_ context.Context, code string) (*catalog.Part, error) {
	if p, ok := m.Parts[code]; ok {
		return p, nil
	}
	return nil, apperror.NewNotFound("Part", code)
}

func (m *Memory) GetJobType(_ context.Context, code string) (*catalog.JobType, error) {
	if j, ok := m.JobTypes[code]; ok {
		return j, nil
	}
	return nil, apperror.NewNotFound("Job Type", code)
}

func (m *Memory) GetServicePackage(_ context.Context, code string) (*catalog.ServicePackage, error) {
	if sp, ok := m.Packages[code]; ok {
		return sp, nil
	}
	return nil, apperror.NewNotFound("Service Package", code)
}

func (m *Memory) FindItemByBarcode(_ context.Context, barcode string) (string, error) {
	return m.ItemBarcodes[barcode], nil
}

func (m *Memory) FindPartByItem(_ context.Context, itemCode string) (*catalog.Part, error) {
	for _, p := range m.Parts {
		if p.Item() == itemCode {
			return p, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindPartByBarcode(_ context.Context, barcode string) (*catalog.Part, error) {
	for _, p := range m.Parts {
		if p.Barcode != nil && *p.Barcode == barcode {
			return p, nil
		}
	}
	return nil, nil
}

func (m *Memory) ListParts(_ context.Context, search string, limit, offset int) ([]catalog.Part, error) {
	var out []catalog.Part
	for _, p := range m.Parts {
		if search == "" || strings.Contains(strings.ToLower(p.PartName), strings.ToLower(search)) {
			out = append(out, *p)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SetItemLink(_ context.Context, ref catalog.Reference, itemCode *string) error {
	switch ref.Kind {
	case catalog.KindPart:
		p, ok := m.Parts[ref.Name]
		if !ok {
			return apperror.NewNotFound(string(ref.Kind), ref.Name)
		}
		p.ItemCode = itemCode
	case catalog.KindJobType:
		j, ok := m.JobTypes[ref.Name]
		if !ok {
			return apperror.NewNotFound(string(ref.Kind), ref.Name)
		}
		j.ItemCode = itemCode
	case catalog.KindServicePackage:
		sp, ok := m.Packages[ref.Name]
		if !ok {
			return apperror.NewNotFound(string(ref.Kind), ref.Name)
		}
		sp.ItemCode = itemCode
	default:
		return apperror.NewValidation("item link is not stored for " + string(ref.Kind))
	}
	m.PriceNotifications++
	return nil
}

var _ catalog.Repository = (*Memory)(nil)
