package catalog

import (
	"context"
	"fmt"
	"strings"

	"workshop/internal/core/apperror"
	"workshop/pkg/logger"
)

// Service answers catalog questions asked by pricing, billing and stock documents.
type Service struct {
	repo Repository
	// externalServiceItem is the stock item billed for external services.
	externalServiceItem string
}

// NewService creates a catalog service.
func NewService(repo Repository, externalServiceItem string) *Service {
	return &Service{repo: repo, externalServiceItem: externalServiceItem}
}

// ItemCode returns the stock item linked to ref, or "" when the record has none.
// Unknown references yield ReferenceNotFound.
func (s *Service) ItemCode(ctx context.Context, ref Reference) (string, error) {
	switch ref.Kind {
	case KindPart:
		p, err := s.repo.GetPart(ctx, ref.Name)
		if err != nil {
			return "", s.mapNotFound(err, ref)
		}
		return p.Item(), nil
	case KindJobType:
		j, err := s.repo.GetJobType(ctx, ref.Name)
		if err != nil {
			return "", s.mapNotFound(err, ref)
		}
		return strOrEmpty(j.ItemCode), nil
	case KindServicePackage:
		sp, err := s.repo.GetServicePackage(ctx, ref.Name)
		if err != nil {
			return "", s.mapNotFound(err, ref)
		}
		return strOrEmpty(sp.ItemCode), nil
	case KindExternalService:
		return s.externalServiceItem, nil
	default:
		return "", ref.Validate()
	}
}

// Exists reports whether ref points at an existing record.
// External services are free text and exist whenever named.
func (s *Service) Exists(ctx context.Context, ref Reference) (bool, error) {
	if ref.Kind == KindExternalService {
		return strings.TrimSpace(ref.Name) != "", nil
	}
	_, err := s.ItemCode(ctx, ref)
	if apperror.HasCode(err, apperror.CodeReferenceNotFound) {
		return false, nil
	}
	return err == nil, err
}

// DisplayName returns the human name of ref (part name, job name...).
func (s *Service) DisplayName(ctx context.Context, ref Reference) (string, error) {
	switch ref.Kind {
	case KindPart:
		p, err := s.repo.GetPart(ctx, ref.Name)
		if err != nil {
			return "", s.mapNotFound(err, ref)
		}
		return p.PartName, nil
	case KindJobType:
		j, err := s.repo.GetJobType(ctx, ref.Name)
		if err != nil {
			return "", s.mapNotFound(err, ref)
		}
		return j.JobName, nil
	case KindServicePackage:
		sp, err := s.repo.GetServicePackage(ctx, ref.Name)
		if err != nil {
			return "", s.mapNotFound(err, ref)
		}
		return sp.PackageName, nil
	case KindExternalService:
		return ref.Name, nil
	default:
		return "", ref.Validate()
	}
}

// GetPart returns a part by code.
func (s *Service) GetPart(ctx context.Context, code string) (*Part, error) {
	p, err := s.repo.GetPart(ctx, code)
	if err != nil {
		return nil, s.mapNotFound(err, Ref(KindPart, code))
	}
	return p, nil
}

// GetJobType returns a job type by code.
func (s *Service) GetJobType(ctx context.Context, code string) (*JobType, error) {
	j, err := s.repo.GetJobType(ctx, code)
	if err != nil {
		return nil, s.mapNotFound(err, Ref(KindJobType, code))
	}
	return j, nil
}

// ListParts lists parts matching search.
func (s *Service) ListParts(ctx context.Context, search string, limit, offset int) ([]Part, error) {
	return s.repo.ListParts(ctx, search, limit, offset)
}

// GetPartFromBarcode resolves a scanned barcode to a part.
// The item barcode table is checked first, then the part's own barcode.
// An empty result (nil) means no match.
func (s *Service) GetPartFromBarcode(ctx context.Context, barcode string) (*BarcodeMatch, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, nil
	}

	itemCode, err := s.repo.FindItemByBarcode(ctx, barcode)
	if err != nil {
		return nil, fmt.Errorf("find item by barcode: %w", err)
	}

	var part *Part
	if itemCode != "" {
		part, err = s.repo.FindPartByItem(ctx, itemCode)
		if err != nil {
			return nil, fmt.Errorf("find part by item: %w", err)
		}
	}
	if part == nil {
		part, err = s.repo.FindPartByBarcode(ctx, barcode)
		if err != nil {
			return nil, fmt.Errorf("find part by barcode: %w", err)
		}
	}
	if part == nil {
		logger.Debug(ctx, "barcode not matched", "barcode", barcode)
		return nil, nil
	}

	return &BarcodeMatch{
		Part:     part.Code,
		PartName: part.PartName,
		UOM:      part.UnitOfMeasure(),
	}, nil
}

// LinkItem sets the stock item billed for a part, job type or service package.
// An empty itemCode removes the link. Cached price resolutions are dropped on
// every instance once the change commits.
func (s *Service) LinkItem(ctx context.Context, ref Reference, itemCode string) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if ref.Kind == KindExternalService {
		return apperror.NewValidation("external services bill the configured service item").
			WithDetail("reference_type", string(ref.Kind))
	}

	var link *string
	if code := strings.TrimSpace(itemCode); code != "" {
		link = &code
	}
	if err := s.repo.SetItemLink(ctx, ref, link); err != nil {
		return s.mapNotFound(err, ref)
	}

	logger.Info(ctx, "catalog item link changed",
		"reference", ref.String(), "item_code", strOrEmpty(link))
	return nil
}

func (s *Service) mapNotFound(err error, ref Reference) error {
	if apperror.IsNotFound(err) {
		return apperror.NewReferenceNotFound(string(ref.Kind), ref.Name)
	}
	return err
}
