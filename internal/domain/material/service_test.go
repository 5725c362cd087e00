package material_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/catalog/catalogtest"
	"workshop/internal/domain/material"
	"workshop/internal/domain/material/materialtest"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/registers/stock/stocktest"
	"workshop/internal/domain/workorder"
	"workshop/internal/domain/workorder/workordertest"
)

type fixture struct {
	issues   *material.IssueService
	returns  *material.ReturnService
	stockSvc *stock.Service
	stock    *stocktest.Memory
	cat      *catalogtest.Memory
	orders   *workordertest.Memory
	issueDB  *materialtest.Issues
}

func newFixture() *fixture {
	f := &fixture{
		stock:   stocktest.New(),
		cat:     catalogtest.New(),
		orders:  workordertest.New(),
		issueDB: materialtest.NewIssues(),
	}
	gen := &numerator.MockGenerator{}
	f.stockSvc = stock.NewService(f.stock, gen, tx.Nop{}, nil)
	deps := material.Deps{
		WorkOrders: workorder.NewService(workorder.ServiceConfig{Repo: f.orders, Numerator: gen, TxManager: tx.Nop{}}),
		Parts:      catalog.NewService(f.cat, "EXT-ITEM"),
		Stock:      f.stockSvc,
		Numerator:  gen,
		TxManager:  tx.Nop{},
	}
	f.issues = material.NewIssueService(f.issueDB, deps)
	f.returns = material.NewReturnService(materialtest.NewReturns(), deps)

	f.cat.AddPart("P-OIL", "Engine Oil", "ITEM-OIL").ValuationRate = types.MustMoney("11")
	f.cat.AddPart("P-PAD", "Brake Pad", "ITEM-PAD")
	f.cat.AddPart("P-LOOSE", "Loose Bolt", "")
	f.stock.Seed("Main", "ITEM-OIL", "10", "12")
	f.stock.Seed("Main", "ITEM-PAD", "1", "45")
	return f
}

func userCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "store@example.com",
		Permissions: []string{"stock:write", "stock:submit"},
	})
}

// submittedOrder stores a submitted work order needing 4 oil and 2 pads.
func (f *fixture) submittedOrder(t *testing.T) *workorder.WorkOrder {
	t.Helper()
	now := time.Now()
	w := workorder.NewWorkOrder("CUST-001", "B 1234 XY")
	w.Number = "WO-2026-00001"
	w.ServiceDate = &now
	w.ServiceAdvisor = "advisor@example.com"
	w.Parts = []workorder.PartLine{
		{LineID: id.New(), Part: "P-OIL", Quantity: types.Qty(4), Rate: types.MustMoney("20"), Amount: types.MustMoney("80")},
		{LineID: id.New(), Part: "P-PAD", Quantity: types.Qty(2), Rate: types.MustMoney("60"), Amount: types.MustMoney("120")},
		{LineID: id.New(), Part: "P-LOOSE", Quantity: types.Qty(8), Rate: types.MustMoney("1"), Amount: types.MustMoney("8")},
	}
	require.NoError(t, w.MarkSubmitted(workorder.EntityName))
	return f.orders.Put(w)
}

func (f *fixture) balance(t *testing.T, item string) types.Quantity {
	t.Helper()
	bal, _, err := f.stockSvc.Balance(context.Background(), "Main", item)
	require.NoError(t, err)
	return bal.Quantity
}

func (f *fixture) consumed(wo *workorder.WorkOrder, part string) types.Quantity {
	stored, _ := f.orders.GetByID(context.Background(), wo.ID)
	return stored.ConsumedQty(part)
}

func (f *fixture) submitIssue(t *testing.T, wo *workorder.WorkOrder, part string, qty int64) *material.Issue {
	t.Helper()
	ctx := userCtx()
	i := material.NewIssue(wo.ID, "Main")
	i.Items = []material.IssueItem{{Part: part, Qty: types.Qty(qty)}}
	require.NoError(t, f.issues.Create(ctx, i))
	submitted, err := f.issues.Submit(ctx, i.ID)
	require.NoError(t, err)
	return submitted
}

func TestIssue_SubmitAndCancel(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	ctx := userCtx()

	i := material.NewIssue(wo.ID, "Main")
	i.Items = []material.IssueItem{{Part: "P-OIL", Qty: types.Qty(3)}}
	require.NoError(t, f.issues.Create(ctx, i))
	assert.Equal(t, material.StatusDraft, i.Status)
	assert.Equal(t, wo.Number, i.WorkOrderNumber)
	assert.Equal(t, "ITEM-OIL", i.Items[0].ItemCode)
	assert.True(t, types.MustMoney("12").Equal(i.Items[0].Rate), "warehouse valuation wins over the part rate")
	assert.True(t, types.MustMoney("36").Equal(i.TotalAmount))
	assert.True(t, types.Qty(3).Equal(i.TotalQty))

	submitted, err := f.issues.Submit(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, material.StatusSubmitted, submitted.Status)
	require.NotNil(t, submitted.StockEntry)
	assert.True(t, types.Qty(7).Equal(f.balance(t, "ITEM-OIL")))
	assert.True(t, types.Qty(3).Equal(f.consumed(wo, "P-OIL")))

	entries := f.stock.EntriesByReference(i.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.EntryMaterialIssue, entries[0].EntryType)
	assert.Equal(t, material.IssueEntityName, entries[0].ReferenceType)
	assert.Equal(t, "Main", entries[0].Items[0].SourceWarehouse)

	err = f.stockSvc.CancelStandalone(ctx, *submitted.StockEntry)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "the entry belongs to the issue")

	cancelled, err := f.issues.Cancel(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, material.StatusCancelled, cancelled.Status)
	assert.True(t, types.Qty(10).Equal(f.balance(t, "ITEM-OIL")))
	assert.True(t, f.consumed(wo, "P-OIL").IsZero())
	assert.Equal(t, entity.DocStatusCancelled, f.stock.EntriesByReference(i.ID)[0].DocStatus)

	_, err = f.issues.Cancel(ctx, i.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestIssue_Rejected(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	ctx := userCtx()

	draft := workorder.NewWorkOrder("CUST-002", "B 9 Z")
	draft.Parts = []workorder.PartLine{{Part: "P-OIL", Quantity: types.Qty(1)}}
	f.orders.Put(draft)

	tests := []struct {
		name  string
		wo    id.ID
		items []material.IssueItem
		code  string
	}{
		{"draft work order", draft.ID, []material.IssueItem{{Part: "P-OIL", Qty: types.Qty(1)}}, apperror.CodeValidation},
		{"unknown work order", id.New(), []material.IssueItem{{Part: "P-OIL", Qty: types.Qty(1)}}, apperror.CodeReferenceNotFound},
		{"part not on work order", wo.ID, []material.IssueItem{{Part: "P-OTHER", Qty: types.Qty(1)}}, apperror.CodeReferenceMismatch},
		{"duplicate rows", wo.ID, []material.IssueItem{{Part: "P-OIL", Qty: types.Qty(1)}, {Part: "P-OIL", Qty: types.Qty(1)}}, apperror.CodeValidation},
		{"zero quantity", wo.ID, []material.IssueItem{{Part: "P-OIL"}}, apperror.CodeQuantityViolation},
		{"short stock", wo.ID, []material.IssueItem{{Part: "P-PAD", Qty: types.Qty(2)}}, apperror.CodeQuantityViolation},
		{"part without item", wo.ID, []material.IssueItem{{Part: "P-LOOSE", Qty: types.Qty(1)}}, apperror.CodeMissingRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := material.NewIssue(tt.wo, "Main")
			i.Items = tt.items
			err := f.issues.Create(ctx, i)
			assert.True(t, apperror.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, f.issueDB.Issues)
}

func TestIssue_PartAlreadyOnAnotherIssue(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	ctx := userCtx()

	first := material.NewIssue(wo.ID, "Main")
	first.Items = []material.IssueItem{{Part: "P-OIL", Qty: types.Qty(1)}}
	require.NoError(t, f.issues.Create(ctx, first))

	second := material.NewIssue(wo.ID, "Main")
	second.Items = []material.IssueItem{{Part: "P-OIL", Qty: types.Qty(1)}}
	err := f.issues.Create(ctx, second)
	require.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "already exists in draft Material Issue")

	_, err = f.issues.Submit(ctx, first.ID)
	require.NoError(t, err)
	err = f.issues.Create(ctx, second)
	require.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "has already been issued")

	_, err = f.issues.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.NoError(t, f.issues.Create(ctx, second), "a cancelled issue frees the part")
}

func TestIssuableParts(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	f.submitIssue(t, wo, "P-OIL", 1)

	parts, err := f.issues.IssuableParts(userCtx(), wo.ID, "Main")
	require.NoError(t, err)
	require.Len(t, parts, 2, "parts without a stock item are left out")

	assert.Equal(t, "P-OIL", parts[0].Part)
	assert.True(t, types.Qty(3).Equal(parts[0].Qty), "remaining 3 of 4")
	assert.True(t, types.Qty(9).Equal(parts[0].AvailableQty))

	assert.Equal(t, "P-PAD", parts[1].Part)
	assert.True(t, types.Qty(1).Equal(parts[1].Qty), "capped by the single pad in stock")
}

func TestReturn_SubmitAndCancel(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	f.submitIssue(t, wo, "P-OIL", 3)
	ctx := userCtx()

	r := material.NewReturn(wo.ID, "Main")
	r.Items = []material.ReturnItem{{Part: "P-OIL", Qty: types.Qty(2)}}
	require.NoError(t, f.returns.Create(ctx, r))
	assert.Equal(t, "ITEM-OIL", r.Items[0].ItemCode)
	assert.Equal(t, "Main", r.Items[0].Warehouse)
	assert.Equal(t, wo.Parts[0].LineID, r.Items[0].WorkOrderItem)
	assert.True(t, r.Items[0].ValuationRate.IsPositive())

	submitted, err := f.returns.Submit(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, material.StatusSubmitted, submitted.Status)
	assert.True(t, types.Qty(9).Equal(f.balance(t, "ITEM-OIL")))
	assert.True(t, types.Qty(1).Equal(f.consumed(wo, "P-OIL")))

	entries := f.stock.EntriesByReference(r.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, stock.EntryMaterialReceipt, entries[0].EntryType)
	assert.Equal(t, material.ReturnEntityName, entries[0].ReferenceType)

	again := material.NewReturn(wo.ID, "Main")
	again.Items = []material.ReturnItem{{Part: "P-OIL", Qty: types.Qty(2)}}
	err = f.returns.Create(ctx, again)
	assert.True(t, apperror.HasCode(err, apperror.CodeQuantityViolation), "only 1 left on the work order")

	_, err = f.returns.Cancel(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, types.Qty(7).Equal(f.balance(t, "ITEM-OIL")))
	assert.True(t, types.Qty(3).Equal(f.consumed(wo, "P-OIL")))
}

func TestReturn_RowsShareTheConsumedQuantity(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	f.submitIssue(t, wo, "P-OIL", 3)

	r := material.NewReturn(wo.ID, "Main")
	r.Items = []material.ReturnItem{
		{Part: "P-OIL", Qty: types.Qty(2)},
		{Part: "P-OIL", Qty: types.Qty(2), Warehouse: "Overflow"},
	}
	err := f.returns.Create(userCtx(), r)
	assert.True(t, apperror.HasCode(err, apperror.CodeQuantityViolation))
}

func TestReturn_PartNotIssued(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)

	r := material.NewReturn(wo.ID, "Main")
	r.Items = []material.ReturnItem{{Part: "P-PAD", Qty: types.Qty(1)}}
	err := f.returns.Create(userCtx(), r)
	require.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "was not issued")
}

func TestIssueCancel_BlockedByLaterReturn(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	issue := f.submitIssue(t, wo, "P-OIL", 3)
	ctx := userCtx()

	r := material.NewReturn(wo.ID, "Main")
	r.Items = []material.ReturnItem{{Part: "P-OIL", Qty: types.Qty(1)}}
	require.NoError(t, f.returns.Create(ctx, r))
	_, err := f.returns.Submit(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.issues.Cancel(ctx, issue.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
	assert.True(t, types.Qty(2).Equal(f.consumed(wo, "P-OIL")), "nothing changed")

	_, err = f.returns.Cancel(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.issues.Cancel(ctx, issue.ID)
	require.NoError(t, err)
	assert.True(t, f.consumed(wo, "P-OIL").IsZero())
	assert.True(t, types.Qty(10).Equal(f.balance(t, "ITEM-OIL")))
}

func TestReturnableParts(t *testing.T) {
	f := newFixture()
	wo := f.submittedOrder(t)
	f.submitIssue(t, wo, "P-OIL", 3)

	parts, err := f.returns.ReturnableParts(userCtx(), wo.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "P-OIL", parts[0].Part)
	assert.True(t, types.Qty(3).Equal(parts[0].ConsumedQty))
	assert.True(t, types.MustMoney("11").Equal(parts[0].ValuationRate))
	assert.True(t, types.MustMoney("33").Equal(parts[0].Amount))
}
