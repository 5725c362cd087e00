// Package app assembles repositories and domain services for the binaries.
package app

import (
	"fmt"

	"workshop/internal/config"
	"workshop/internal/domain/adjustment"
	"workshop/internal/domain/billing"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/material"
	"workshop/internal/domain/opname"
	"workshop/internal/domain/pricing"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/workorder"
	v1 "workshop/internal/infrastructure/http/v1"
	"workshop/internal/infrastructure/numerator"
	"workshop/internal/infrastructure/storage/postgres"
	"workshop/internal/infrastructure/storage/postgres/catalog_repo"
	"workshop/internal/infrastructure/storage/postgres/document_repo"
	"workshop/internal/infrastructure/storage/postgres/register_repo"
)

// Deps are the optional collaborators that differ between binaries.
type Deps struct {
	// PriceCache caches price resolutions. Nil resolves every lookup.
	PriceCache pricing.Cache
	// Dispatcher queues large adjustment postings. Nil posts inline.
	Dispatcher adjustment.Dispatcher
}

// Container holds the wired services.
type Container struct {
	TxManager *postgres.TxManager

	Catalog     *catalog.Service
	Prices      *pricing.Service
	WorkOrders  *workorder.Service
	Billings    *billing.Service
	Opnames     *opname.Service
	Adjustments *adjustment.Service
	Stock       *stock.Service

	MaterialIssues  *material.IssueService
	MaterialReturns *material.ReturnService
}

// New wires every service on top of pool.
func New(cfg *config.Config, pool *postgres.Pool, deps Deps) (*Container, error) {
	txm := postgres.NewTxManager(pool)
	numbers := numerator.New(pool)

	history, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		return nil, fmt.Errorf("audit recorder: %w", err)
	}

	catalogRepo := catalog_repo.NewCatalogRepo(txm)
	priceRepo := catalog_repo.NewPriceRepo(txm)
	workOrderRepo := document_repo.NewWorkOrderRepo(txm)
	billingRepo := document_repo.NewBillingRepo(txm)
	opnameRepo := document_repo.NewOpnameRepo(txm)
	adjustmentRepo := document_repo.NewAdjustmentRepo(txm)
	stockRepo := register_repo.NewStockRepo(txm)

	c := &Container{TxManager: txm}

	c.Catalog = catalog.NewService(catalogRepo, cfg.Workshop.ExternalServiceItem)
	c.Prices = pricing.NewService(pricing.ServiceConfig{
		Repo:            priceRepo,
		Items:           c.Catalog,
		ItemPrices:      priceRepo,
		Cache:           deps.PriceCache,
		TxManager:       txm,
		DefaultCurrency: cfg.Workshop.DefaultCurrency,
	})
	c.Stock = stock.NewService(stockRepo, numbers, txm, cfg.PeriodPolicy())
	c.WorkOrders = workorder.NewService(workorder.ServiceConfig{
		Repo:             workOrderRepo,
		Items:            c.Catalog,
		Rates:            c.Prices,
		Numerator:        numbers,
		TxManager:        txm,
		DefaultPriceList: cfg.Workshop.DefaultPriceList,
	})
	c.Billings = billing.NewService(billing.ServiceConfig{
		Repo:       billingRepo,
		Invoices:   document_repo.NewSalesInvoiceRepo(txm),
		WorkOrders: c.WorkOrders,
		Items:      c.Catalog,
		Taxes:      billingRepo,
		History:    history,
		Numerator:  numbers,
		TxManager:  txm,
		Config:     cfg.Billing(),
	})
	c.Adjustments = adjustment.NewService(adjustment.ServiceConfig{
		Repo:       adjustmentRepo,
		Opnames:    opnameRepo,
		Parts:      c.Catalog,
		Stock:      c.Stock,
		Dispatcher: deps.Dispatcher,
		History:    history,
		Numerator:  numbers,
		TxManager:  txm,
		Config:     cfg.Adjustment(),
	})
	c.Opnames = opname.NewService(opname.ServiceConfig{
		Repo:      opnameRepo,
		Parts:     c.Catalog,
		Balances:  c.Stock,
		Adjuster:  c.Adjustments,
		History:   history,
		Numerator: numbers,
		TxManager: txm,
	})

	materials := material.Deps{
		WorkOrders: c.WorkOrders,
		Parts:      c.Catalog,
		Stock:      c.Stock,
		Numerator:  numbers,
		TxManager:  txm,
	}
	c.MaterialIssues = material.NewIssueService(document_repo.NewMaterialIssueRepo(txm), materials)
	c.MaterialReturns = material.NewReturnService(document_repo.NewMaterialReturnRepo(txm), materials)
	return c, nil
}

// HTTP returns the services exposed by the API.
func (c *Container) HTTP() v1.Services {
	return v1.Services{
		Catalog:     c.Catalog,
		Prices:      c.Prices,
		WorkOrders:  c.WorkOrders,
		Billings:    c.Billings,
		Opnames:     c.Opnames,
		Adjustments: c.Adjustments,
		Stock:       c.Stock,

		MaterialIssues:  c.MaterialIssues,
		MaterialReturns: c.MaterialReturns,
	}
}
