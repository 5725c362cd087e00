package workorder_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/security"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/catalog/catalogtest"
	"workshop/internal/domain/pricing"
	"workshop/internal/domain/pricing/pricingtest"
	"workshop/internal/domain/workorder"
	"workshop/internal/domain/workorder/workordertest"
)

const priceList = "Standard Selling"

type fixture struct {
	cat    *catalogtest.Memory
	prices *pricingtest.Memory
	orders *workordertest.Memory
	svc    *workorder.Service
}

func newFixture() *fixture {
	cat := catalogtest.New()
	prices := pricingtest.New()
	orders := workordertest.New()
	catalogSvc := catalog.NewService(cat, "EXT-ITEM")
	resolver := pricing.NewResolver(catalogSvc, prices, prices, "IDR")

	return &fixture{
		cat:    cat,
		prices: prices,
		orders: orders,
		svc: workorder.NewService(workorder.ServiceConfig{
			Repo:             orders,
			Items:            catalogSvc,
			Rates:            resolver,
			Numerator:        &numerator.MockGenerator{},
			TxManager:        tx.Nop{},
			DefaultPriceList: priceList,
		}),
	}
}

func (f *fixture) servicePrice(kind catalog.ReferenceKind, name, rate string) {
	p := pricing.NewServicePrice(catalog.Ref(kind, name), priceList, types.MustMoney(rate))
	p.Currency = "IDR"
	f.prices.Prices = append(f.prices.Prices, p)
}

func billerCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "cashier@example.com",
		Permissions: []string{security.PermWorkOrderRead, security.PermSalesInvoiceCreate},
	})
}

func completedOrder(f *fixture) *workorder.WorkOrder {
	now := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	w := workorder.NewWorkOrder("CUST-001", "B 1234 XY")
	w.ServiceDate = &now
	w.Status = workorder.StatusCompleted
	return f.orders.Put(w)
}

func TestGetBillingSource_ResolvesMissingRates(t *testing.T) {
	f := newFixture()
	f.cat.AddJobType("JT-01", "Tune Up", "ITEM-TU", false)
	f.cat.AddPart("P-001", "Oil Filter", "ITEM-OF")
	f.servicePrice(catalog.KindJobType, "JT-01", "100")
	f.prices.ItemPrices = append(f.prices.ItemPrices, pricing.ItemPrice{
		ItemCode: "ITEM-OF", PriceList: priceList, Rate: types.MustMoney("70"), Currency: "IDR", Selling: true,
	})

	w := completedOrder(f)
	w.JobTypes = []workorder.JobLine{{JobType: "JT-01", JobName: "Tune Up", Hours: types.Qty(2)}}
	w.Parts = []workorder.PartLine{{Part: "P-001", PartName: "Oil Filter", Quantity: types.Qty(3)}}

	src, err := f.svc.GetBillingSource(billerCtx(), w.ID)
	require.NoError(t, err)

	require.Len(t, src.JobTypes, 1)
	assert.True(t, types.MustMoney("100").Equal(src.JobTypes[0].Rate))
	assert.True(t, types.MustMoney("200").Equal(src.JobTypes[0].Amount))

	require.Len(t, src.Parts, 1)
	assert.True(t, types.MustMoney("70").Equal(src.Parts[0].Rate))
	assert.True(t, types.MustMoney("210").Equal(src.Parts[0].Amount))
	assert.Equal(t, priceList, src.PriceList)
}

func TestGetBillingSource_KeepsExplicitRateAndSkipsItemless(t *testing.T) {
	f := newFixture()
	f.cat.AddPackage("SP-01", "Basic Service", "ITEM-BS")
	f.cat.AddPart("P-LOOSE", "Loose Bolt", "")

	w := completedOrder(f)
	w.ServicePackages = []workorder.PackageLine{{ServicePackage: "SP-01", Quantity: types.Qty(2), Rate: types.MustMoney("300")}}
	w.Parts = []workorder.PartLine{{Part: "P-LOOSE", Quantity: types.Qty(1)}}
	w.ExternalServices = []workorder.ExternalLine{{ServiceName: "Towing", Rate: types.MustMoney("125")}}

	src, err := f.svc.GetBillingSource(billerCtx(), w.ID)
	require.NoError(t, err)

	require.Len(t, src.ServicePackages, 1)
	assert.True(t, types.MustMoney("600").Equal(src.ServicePackages[0].Amount))
	assert.Empty(t, src.Parts)
	require.Len(t, src.ExternalServices, 1)
	assert.True(t, types.MustMoney("125").Equal(src.ExternalServices[0].Amount))
}

func TestGetBillingSource_Guards(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GetBillingSource(billerCtx(), id.Nil())
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRequiredField))

	w := completedOrder(f)

	readOnly := appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: "viewer", Permissions: []string{security.PermWorkOrderRead},
	})
	_, err = f.svc.GetBillingSource(readOnly, w.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodePermissionDenied))

	w.Status = workorder.StatusInProgress
	_, err = f.svc.GetBillingSource(billerCtx(), w.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	w.Status = workorder.StatusClosed
	w.BillingStatus = workorder.BillingBilled
	_, err = f.svc.GetBillingSource(billerCtx(), w.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestService_CreateAssignsNumber(t *testing.T) {
	f := newFixture()
	w := workorder.NewWorkOrder("CUST-001", "B 1234 XY")
	require.NoError(t, f.svc.Create(context.Background(), w))
	assert.Contains(t, w.Number, "WO-")
}
