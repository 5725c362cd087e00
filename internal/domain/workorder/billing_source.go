package workorder

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/core/security"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/pricing"
)

// SourceLine is one billable row proposed for a billing.
type SourceLine struct {
	Reference       string      `json:"reference"`
	Name            string      `json:"name"`
	QuantityOrHours types.Money `json:"quantity_or_hours"`
	Rate            types.Money `json:"rate"`
	Amount          types.Money `json:"amount"`
	Provider        string      `json:"provider,omitempty"`
	Warehouse       string      `json:"warehouse,omitempty"`
}

// BillingSource groups billable rows of a work order.
type BillingSource struct {
	WorkOrderID      id.ID        `json:"work_order"`
	PriceList        string       `json:"price_list"`
	JobTypes         []SourceLine `json:"job_types"`
	ServicePackages  []SourceLine `json:"service_packages"`
	Parts            []SourceLine `json:"parts"`
	ExternalServices []SourceLine `json:"external_services"`
}

// RateResolver is the part of the pricing service used to fill missing rates.
type RateResolver interface {
	Resolve(ctx context.Context, ref catalog.Reference, priceList string, postingDate time.Time) (pricing.Resolution, error)
}

// ItemLinker resolves the stock item behind a catalog reference.
type ItemLinker interface {
	ItemCode(ctx context.Context, ref catalog.Reference) (string, error)
}

// pending is a row waiting for item lookup and rate resolution.
type pending struct {
	ref  catalog.Reference
	line SourceLine
	keep bool
}

// GetBillingSource collects the billable rows of a completed work order.
// Rows whose reference has no stock item are skipped; missing rates are
// resolved against the default price list.
func (s *Service) GetBillingSource(ctx context.Context, workOrderID id.ID) (*BillingSource, error) {
	if id.IsNil(workOrderID) {
		return nil, apperror.NewMissingRequiredField("work_order")
	}
	if err := security.Require(ctx, security.PermWorkOrderRead, EntityName); err != nil {
		return nil, err
	}
	if err := security.Require(ctx, security.PermSalesInvoiceCreate, "Sales Invoice"); err != nil {
		return nil, err
	}

	wo, err := s.repo.GetByID(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if !wo.Status.Billable() {
		return nil, apperror.NewInvalidStateTransition(EntityName, string(wo.Status), "bill").
			WithDetail("reason", "Work Order must be 'Completed' or 'Closed' before billing")
	}
	if wo.BillingStatus == BillingBilled {
		return nil, apperror.NewInvalidStateTransition(EntityName, string(wo.BillingStatus), "bill").
			WithDetail("reason", "Work Order is already billed")
	}

	postingDate := wo.PostingDate
	if wo.ServiceDate != nil {
		postingDate = *wo.ServiceDate
	}

	jobs := make([]pending, len(wo.JobTypes))
	for i, j := range wo.JobTypes {
		jobs[i] = pending{
			ref:  catalog.Ref(catalog.KindJobType, j.JobType),
			line: SourceLine{Reference: j.JobType, Name: j.JobName, QuantityOrHours: j.Hours, Rate: j.Rate},
		}
	}
	packages := make([]pending, len(wo.ServicePackages))
	for i, p := range wo.ServicePackages {
		packages[i] = pending{
			ref:  catalog.Ref(catalog.KindServicePackage, p.ServicePackage),
			line: SourceLine{Reference: p.ServicePackage, Name: p.PackageName, QuantityOrHours: p.Quantity, Rate: p.Rate},
		}
	}
	parts := make([]pending, len(wo.Parts))
	for i, p := range wo.Parts {
		parts[i] = pending{
			ref: catalog.Ref(catalog.KindPart, p.Part),
			line: SourceLine{Reference: p.Part, Name: p.PartName, QuantityOrHours: p.Quantity, Rate: p.Rate,
				Warehouse: p.Warehouse},
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.resolveConcurrency)
	for _, group := range [][]pending{jobs, packages, parts} {
		for i := range group {
			row := &group[i]
			g.Go(func() error {
				return s.fillRow(gctx, row, postingDate)
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	src := &BillingSource{
		WorkOrderID:      wo.ID,
		PriceList:        s.defaultPriceList,
		JobTypes:         collect(jobs),
		ServicePackages:  collect(packages),
		Parts:            collect(parts),
		ExternalServices: make([]SourceLine, 0, len(wo.ExternalServices)),
	}
	for _, e := range wo.ExternalServices {
		src.ExternalServices = append(src.ExternalServices, SourceLine{
			Reference:       e.ServiceName,
			Name:            e.ServiceName,
			QuantityOrHours: types.Qty(1),
			Rate:            e.Rate,
			Amount:          e.Rate,
			Provider:        e.Provider,
		})
	}
	return src, nil
}

func (s *Service) fillRow(ctx context.Context, row *pending, postingDate time.Time) error {
	itemCode, err := s.items.ItemCode(ctx, row.ref)
	if err != nil {
		return err
	}
	if itemCode == "" {
		return nil
	}
	row.keep = true

	if row.line.Rate.IsZero() {
		res, err := s.rates.Resolve(ctx, row.ref, s.defaultPriceList, postingDate)
		if err != nil {
			return err
		}
		row.line.Rate = res.Rate
	}
	row.line.Amount = row.line.QuantityOrHours.Mul(row.line.Rate)
	return nil
}

func collect(rows []pending) []SourceLine {
	out := make([]SourceLine, 0, len(rows))
	for _, r := range rows {
		if r.keep {
			out = append(out, r.line)
		}
	}
	return out
}
