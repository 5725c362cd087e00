package pricing

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/core/tx"
	"workshop/internal/domain"
	"workshop/internal/domain/catalog"
	"workshop/pkg/logger"
)

// Service maintains service price rows and serves cached resolutions.
type Service struct {
	repo            Repository
	items           ItemLinker
	resolver        *Resolver
	cache           Cache
	txManager       tx.Manager
	defaultCurrency string
}

// ServiceConfig wires a pricing Service.
type ServiceConfig struct {
	Repo            Repository
	Items           ItemLinker
	ItemPrices      ItemPriceReader
	Cache           Cache // optional
	TxManager       tx.Manager
	DefaultCurrency string
}

// NewService creates a pricing service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:            cfg.Repo,
		items:           cfg.Items,
		resolver:        NewResolver(cfg.Items, cfg.ItemPrices, cfg.Repo, cfg.DefaultCurrency),
		cache:           cfg.Cache,
		txManager:       cfg.TxManager,
		defaultCurrency: cfg.DefaultCurrency,
	}
}

// Resolve returns the active rate of ref, served from cache when configured.
func (s *Service) Resolve(ctx context.Context, ref catalog.Reference, priceList string, postingDate time.Time) (Resolution, error) {
	if s.cache == nil {
		return s.resolver.Resolve(ctx, ref, priceList, postingDate)
	}
	if postingDate.IsZero() {
		postingDate = time.Now()
	}
	key := fmt.Sprintf("%s|%s|%s|%s", ref.Kind, ref.Name, priceList, postingDate.Format("2006-01-02"))
	return s.cache.FetchResolution(ctx, key, func(ctx context.Context) (Resolution, error) {
		return s.resolver.Resolve(ctx, ref, priceList, postingDate)
	})
}

// GetByID returns a price row.
func (s *Service) GetByID(ctx context.Context, priceID id.ID) (*ServicePrice, error) {
	return s.repo.GetByID(ctx, priceID)
}

// List returns price rows.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*ServicePrice], error) {
	return s.repo.List(ctx, f)
}

// Create validates and stores a new row. An overlapping active row for the
// same reference and price list is rejected.
func (s *Service) Create(ctx context.Context, p *ServicePrice) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.validate(ctx, p); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create service price: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx)
	logger.Info(ctx, "service price created", "id", p.ID, "reference", p.Reference().String(), "price_list", p.PriceList)
	return nil
}

// Update validates and stores changes to an existing row.
func (s *Service) Update(ctx context.Context, p *ServicePrice) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.validate(ctx, p); err != nil {
			return err
		}
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Activate turns a row on and deactivates every active row it overlaps.
// Returns the ids of the deactivated rows.
func (s *Service) Activate(ctx context.Context, priceID id.ID) ([]id.ID, error) {
	var deactivated []id.ID
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, priceID)
		if err != nil {
			return err
		}
		p.IsActive = true
		if err := p.Validate(ctx); err != nil {
			return err
		}
		s.defaults(p)

		conflicts, err := s.repo.FindOverlapping(ctx, p)
		if err != nil {
			return fmt.Errorf("find overlapping prices: %w", err)
		}
		for _, c := range conflicts {
			deactivated = append(deactivated, c.ID)
		}
		if len(deactivated) > 0 {
			if err := s.repo.Deactivate(ctx, deactivated); err != nil {
				return fmt.Errorf("deactivate conflicting prices: %w", err)
			}
		}
		return s.repo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	for _, d := range deactivated {
		logger.Info(ctx, "deactivated conflicting price entry", "id", d, "activated", priceID)
	}
	return deactivated, nil
}

// Delete removes a row. Deleting the only active price of a pair is allowed
// but reported, because resolution will fall back to zero afterwards.
func (s *Service) Delete(ctx context.Context, priceID id.ID) (warning string, err error) {
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, priceID)
		if err != nil {
			return err
		}
		if p.IsActive {
			n, err := s.repo.CountActive(ctx, p.Reference(), p.PriceList, p.ID)
			if err != nil {
				return fmt.Errorf("count active prices: %w", err)
			}
			if n == 0 {
				warning = fmt.Sprintf(
					"This was the only active price for %s in Price List '%s'. There will be no active price after deletion.",
					p.Reference(), p.PriceList)
			}
		}
		return s.repo.Delete(ctx, priceID)
	})
	if err != nil {
		return "", err
	}

	s.invalidate(ctx)
	if warning != "" {
		logger.Warn(ctx, "deleted last active price", "id", priceID)
	}
	return warning, nil
}

func (s *Service) validate(ctx context.Context, p *ServicePrice) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	if p.IsActive {
		dups, err := s.repo.FindOverlapping(ctx, p)
		if err != nil {
			return fmt.Errorf("find overlapping prices: %w", err)
		}
		if len(dups) > 0 {
			return apperror.NewDuplicate("Service Price", "overlapping validity period", p.Reference().String()).
				WithDetail("price_list", p.PriceList).
				WithDetail("conflicting_id", dups[0].ID)
		}
	}

	ok, err := s.items.Exists(ctx, p.Reference())
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewReferenceNotFound(string(p.ReferenceType), p.ReferenceName)
	}

	s.defaults(p)
	return nil
}

func (s *Service) defaults(p *ServicePrice) {
	if p.Currency == "" {
		p.Currency = s.defaultCurrency
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		logger.Warn(ctx, "price cache invalidation failed", "error", err)
	}
}
