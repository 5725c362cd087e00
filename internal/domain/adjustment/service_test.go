package adjustment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/numerator"
	"workshop/internal/core/tx"
	"workshop/internal/core/types"
	"workshop/internal/domain/adjustment"
	"workshop/internal/domain/adjustment/adjustmenttest"
	"workshop/internal/domain/audit/audittest"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/catalog/catalogtest"
	"workshop/internal/domain/opname"
	"workshop/internal/domain/opname/opnametest"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/registers/stock/stocktest"
)

type fixture struct {
	adjustments *adjustment.Service
	opnames     *opname.Service
	stockSvc    *stock.Service
	repo        *adjustmenttest.Memory
	stock       *stocktest.Memory
	cat         *catalogtest.Memory
	dispatcher  *adjustmenttest.Dispatcher
}

func newFixture(cfg adjustment.Config, withDispatcher bool) *fixture {
	f := &fixture{
		repo:  adjustmenttest.New(),
		stock: stocktest.New(),
		cat:   catalogtest.New(),
	}
	gen := &numerator.MockGenerator{}
	history := &audittest.Memory{}
	parts := catalog.NewService(f.cat, "EXT-ITEM")
	opnameRepo := opnametest.New()

	f.stockSvc = stock.NewService(f.stock, gen, tx.Nop{}, nil)
	sc := adjustment.ServiceConfig{
		Repo:      f.repo,
		Opnames:   opnameRepo,
		Parts:     parts,
		Stock:     f.stockSvc,
		History:   history,
		Numerator: gen,
		TxManager: tx.Nop{},
		Config:    cfg,
	}
	if withDispatcher {
		f.dispatcher = &adjustmenttest.Dispatcher{}
		sc.Dispatcher = f.dispatcher
	}
	f.adjustments = adjustment.NewService(sc)
	f.opnames = opname.NewService(opname.ServiceConfig{
		Repo:      opnameRepo,
		Parts:     parts,
		Balances:  f.stockSvc,
		Adjuster:  f.adjustments,
		History:   history,
		Numerator: gen,
		TxManager: tx.Nop{},
	})
	return f
}

func userCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "stock@example.com",
		Permissions: []string{"stock:write", "stock:submit"},
	})
}

// countAndAdjust creates, submits and adjusts an opname of counts.
func (f *fixture) countAndAdjust(t *testing.T, counts map[string]string, order []string) *adjustment.Adjustment {
	t.Helper()
	ctx := userCtx()
	o := opname.New("Main")
	for _, part := range order {
		o.Items = append(o.Items, opname.Item{Part: part, QtyCounted: types.MustMoney(counts[part])})
	}
	require.NoError(t, f.opnames.Create(ctx, o))
	_, err := f.opnames.Submit(ctx, o.ID)
	require.NoError(t, err)

	ref, err := f.opnames.CreateAdjustment(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, ref)

	a, err := f.adjustments.GetByID(ctx, ref.ID)
	require.NoError(t, err)
	return a
}

func (f *fixture) seedBasic() {
	f.cat.AddPart("P-OIL", "Engine Oil", "ITEM-OIL")
	f.cat.AddPart("P-PAD", "Brake Pad", "ITEM-PAD")
	f.cat.AddPart("P-FLT", "Air Filter", "ITEM-FLT")
	f.stock.Seed("Main", "ITEM-OIL", "10", "12")
	f.stock.Seed("Main", "ITEM-PAD", "4", "45")
	f.stock.Seed("Main", "ITEM-FLT", "6", "30")
}

func balance(t *testing.T, f *fixture, item string) types.Quantity {
	t.Helper()
	bal, _, err := f.stockSvc.Balance(context.Background(), "Main", item)
	require.NoError(t, err)
	return bal.Quantity
}

func TestOpnameToStock_OneShot(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-OIL": "12", "P-PAD": "1", "P-FLT": "6"}, []string{"P-OIL", "P-PAD", "P-FLT"})
	assert.Equal(t, adjustment.StatusDraft, a.Status)
	require.Len(t, a.Items, 2, "unchanged parts are not adjusted")
	assert.Equal(t, "Created from Stock Opname "+a.ReferenceOpnameNumber, a.Remarks)
	// 2×12 − 3×45
	assert.True(t, types.MustMoney("-111").Equal(a.TotalValueDifference))

	submitted, err := f.adjustments.Submit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusSubmitted, submitted.Status)
	assert.Equal(t, adjustment.PostingDone, submitted.PostingStatus)

	stored, err := f.adjustments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, stored.StockEntryLogs, 2)
	assert.Equal(t, stock.EntryMaterialReceipt, stored.StockEntryLogs[0].EntryType)
	assert.Equal(t, stock.EntryMaterialIssue, stored.StockEntryLogs[1].EntryType)
	assert.Equal(t, "stock@example.com", stored.StockEntryLogs[0].CreatedBy)

	assert.True(t, types.MustMoney("12").Equal(balance(t, f, "ITEM-OIL")))
	assert.True(t, types.MustMoney("1").Equal(balance(t, f, "ITEM-PAD")))
	assert.True(t, types.MustMoney("6").Equal(balance(t, f, "ITEM-FLT")))

	_, err = f.opnames.CreateAdjustment(ctx, a.ReferenceOpname)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestSubmit_IssueFailureIsDownstream(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-PAD": "1"}, []string{"P-PAD"})
	// stock moves away before the adjustment is posted
	out := stock.NewStockEntry(stock.EntryMaterialIssue, a.PostingDate)
	out.Items = []stock.EntryItem{{ItemCode: "ITEM-PAD", Qty: types.MustMoney("4"), SourceWarehouse: "Main"}}
	require.NoError(t, f.stockSvc.Post(ctx, out))

	_, err := f.adjustments.Submit(ctx, a.ID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeDownstreamPostingFailure))
	assert.Contains(t, err.Error(), "Material Issue failed")
	assert.Contains(t, err.Error(), "only 0 available")
}

func TestSubmit_ZeroValuationNeverRejectsZeroRateReceipt(t *testing.T) {
	f := newFixture(adjustment.Config{ZeroValuation: adjustment.ZeroValuationNever}, false)
	f.cat.AddPart("P-NEW", "Wiper", "ITEM-NEW")
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-NEW": "2"}, []string{"P-NEW"})
	_, err := f.adjustments.Submit(ctx, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDownstreamPostingFailure))
	assert.Contains(t, err.Error(), "Valuation Rate for the Item ITEM-NEW")

	f2 := newFixture(adjustment.DefaultConfig(), false)
	f2.cat.AddPart("P-NEW", "Wiper", "ITEM-NEW")
	a2 := f2.countAndAdjust(t, map[string]string{"P-NEW": "2"}, []string{"P-NEW"})
	_, err = f2.adjustments.Submit(ctx, a2.ID)
	require.NoError(t, err)
}

func TestSubmit_LargeAdjustmentIsQueued(t *testing.T) {
	f := newFixture(adjustment.Config{AsyncThreshold: 2}, true)
	ctx := userCtx()
	var order []string
	counts := map[string]string{}
	for i := 1; i <= 3; i++ {
		part := fmt.Sprintf("P-%d", i)
		f.cat.AddPart(part, part, "ITEM-"+part)
		f.stock.Seed("Main", "ITEM-"+part, "5", "10")
		order = append(order, part)
		counts[part] = "6"
	}

	a := f.countAndAdjust(t, counts, order)
	submitted, err := f.adjustments.Submit(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.PostingQueued, submitted.PostingStatus)
	assert.Equal(t, []id.ID{a.ID}, f.dispatcher.Queued)
	assert.Equal(t, []string{"stock@example.com"}, f.dispatcher.Users)
	assert.True(t, types.MustMoney("5").Equal(balance(t, f, "ITEM-P-1")))

	require.NoError(t, f.adjustments.PostStockEntries(ctx, a.ID))
	assert.True(t, types.MustMoney("6").Equal(balance(t, f, "ITEM-P-1")))

	// repeated delivery does not post twice
	require.NoError(t, f.adjustments.PostStockEntries(ctx, a.ID))
	assert.True(t, types.MustMoney("6").Equal(balance(t, f, "ITEM-P-1")))

	stored, err := f.adjustments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.PostingDone, stored.PostingStatus)
	assert.Len(t, stored.StockEntryLogs, 1)
}

func TestSubmit_EnqueueFailureIsRecorded(t *testing.T) {
	f := newFixture(adjustment.Config{AsyncThreshold: 1}, true)
	f.seedBasic()
	f.dispatcher.Err = errors.New("redis unavailable")
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-OIL": "11", "P-PAD": "5"}, []string{"P-OIL", "P-PAD"})
	_, err := f.adjustments.Submit(ctx, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeDownstreamPostingFailure))

	stored, err := f.adjustments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.PostingFailed, stored.PostingStatus)
	require.NotNil(t, stored.PostingError)
	assert.Equal(t, "redis unavailable", *stored.PostingError)
}

func TestCancel_ReversesStockEntries(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-OIL": "12", "P-PAD": "1"}, []string{"P-OIL", "P-PAD"})
	_, err := f.adjustments.Submit(ctx, a.ID)
	require.NoError(t, err)

	cancelled, err := f.adjustments.Cancel(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusCancelled, cancelled.Status)
	assert.True(t, types.MustMoney("10").Equal(balance(t, f, "ITEM-OIL")))
	assert.True(t, types.MustMoney("4").Equal(balance(t, f, "ITEM-PAD")))

	for _, log := range cancelled.StockEntryLogs {
		e, err := f.stockSvc.GetEntry(ctx, log.StockEntry)
		require.NoError(t, err)
		assert.Equal(t, entity.DocStatusCancelled, e.DocStatus)
	}
}

func TestCancel_ReportsAllBlockingReasons(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-OIL": "12", "P-PAD": "1"}, []string{"P-OIL", "P-PAD"})
	_, err := f.adjustments.Submit(ctx, a.ID)
	require.NoError(t, err)
	stored, err := f.adjustments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	for _, log := range stored.StockEntryLogs {
		f.stock.JournalLinks[log.StockEntry] = true
	}

	_, err = f.adjustments.Cancel(ctx, a.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidStateTransition, appErr.Code)
	assert.Len(t, appErr.Details["reasons"], 2)
	assert.Contains(t, appErr.Message, "Has linked journal entries")

	again, err := f.adjustments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusSubmitted, again.Status)
	assert.True(t, types.MustMoney("12").Equal(balance(t, f, "ITEM-OIL")))
}

func TestCreate_ReferenceChecks(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	a := adjustment.New("Main")
	a.ReferenceOpname = id.New()
	a.Items = []adjustment.Line{{Part: "P-OIL", ActualQty: types.MustMoney("1"), CountedQty: types.MustMoney("2")}}
	assert.True(t, apperror.HasCode(f.adjustments.Create(ctx, a), apperror.CodeReferenceNotFound))

	existing := f.countAndAdjust(t, map[string]string{"P-OIL": "11"}, []string{"P-OIL"})
	b := adjustment.New("Back Store")
	b.ReferenceOpname = existing.ReferenceOpname
	b.Items = a.Items
	assert.True(t, apperror.HasCode(f.adjustments.Create(ctx, b), apperror.CodeReferenceMismatch))
}

func TestPost_ResolvesMissingItemCode(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	f.cat.AddPart("P-LOOSE", "Loose Part", "")
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-OIL": "11"}, []string{"P-OIL"})
	a.Items[0].ItemCode = ""
	require.NoError(t, f.adjustments.Update(ctx, a))
	_, err := f.adjustments.Submit(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("11").Equal(balance(t, f, "ITEM-OIL")))

	b := f.countAndAdjust(t, map[string]string{"P-PAD": "5"}, []string{"P-PAD"})
	b.Items[0].Part = "P-LOOSE"
	b.Items[0].ItemCode = ""
	require.NoError(t, f.adjustments.Update(ctx, b))
	_, err = f.adjustments.Submit(ctx, b.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRequiredField))
}

func TestCreate_RejectsOpnameAlreadyAdjusted(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	first := f.countAndAdjust(t, map[string]string{"P-OIL": "12"}, []string{"P-OIL"})
	_, err := f.adjustments.Submit(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, types.MustMoney("12").Equal(balance(t, f, "ITEM-OIL")))

	again := adjustment.New("Main")
	again.ReferenceOpname = first.ReferenceOpname
	again.Items = []adjustment.Line{{
		Part:          "P-OIL",
		ItemCode:      "ITEM-OIL",
		ActualQty:     types.MustMoney("4"),
		CountedQty:    types.MustMoney("12"),
		ValuationRate: types.MustMoney("12"),
	}}
	err = f.adjustments.Create(ctx, again)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
	assert.Contains(t, err.Error(), "has already been adjusted")

	_, err = f.adjustments.GetByID(ctx, again.ID)
	assert.True(t, apperror.IsNotFound(err), "rejected adjustment is not stored")
	assert.True(t, types.MustMoney("12").Equal(balance(t, f, "ITEM-OIL")))
}

func TestCreate_RequiresSubmittedOpname(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	draft := opname.New("Main")
	draft.Items = []opname.Item{{Part: "P-OIL", QtyCounted: types.MustMoney("11")}}
	require.NoError(t, f.opnames.Create(ctx, draft))

	a := adjustment.New("Main")
	a.ReferenceOpname = draft.ID
	a.Items = []adjustment.Line{{Part: "P-OIL", ActualQty: types.MustMoney("10"), CountedQty: types.MustMoney("11")}}
	err := f.adjustments.Create(ctx, a)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.opnames.Submit(ctx, draft.ID)
	require.NoError(t, err)
	_, err = f.opnames.Cancel(ctx, draft.ID)
	require.NoError(t, err)
	err = f.adjustments.Create(ctx, a)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestManualAdjustment_ClaimsOpname(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	o := opname.New("Main")
	o.Items = []opname.Item{{Part: "P-OIL", QtyCounted: types.MustMoney("11")}}
	require.NoError(t, f.opnames.Create(ctx, o))
	_, err := f.opnames.Submit(ctx, o.ID)
	require.NoError(t, err)

	manual := adjustment.New("Main")
	manual.ReferenceOpname = o.ID
	manual.Items = []adjustment.Line{{
		Part:          "P-OIL",
		ActualQty:     types.MustMoney("10"),
		CountedQty:    types.MustMoney("11"),
		ValuationRate: types.MustMoney("12"),
	}}
	require.NoError(t, f.adjustments.Create(ctx, manual))

	// the opname cannot produce a second adjustment while the manual one is live
	_, err = f.opnames.CreateAdjustment(ctx, o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.adjustments.Submit(ctx, manual.ID)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("11").Equal(balance(t, f, "ITEM-OIL")))

	adjusted, err := f.opnames.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusAdjusted, adjusted.Status)
	require.NotNil(t, adjusted.Adjustment)
	assert.Equal(t, manual.ID, *adjusted.Adjustment)
}

func queuedAdjustment(t *testing.T, f *fixture) *adjustment.Adjustment {
	t.Helper()
	var order []string
	counts := map[string]string{}
	for i := 1; i <= 3; i++ {
		part := fmt.Sprintf("P-%d", i)
		f.cat.AddPart(part, part, "ITEM-"+part)
		f.stock.Seed("Main", "ITEM-"+part, "5", "10")
		order = append(order, part)
		counts[part] = "7"
	}
	a := f.countAndAdjust(t, counts, order)
	submitted, err := f.adjustments.Submit(userCtx(), a.ID)
	require.NoError(t, err)
	require.Equal(t, adjustment.PostingQueued, submitted.PostingStatus)
	return submitted
}

func TestRetryPosting_ConcurrentRunsPostOnce(t *testing.T) {
	f := newFixture(adjustment.Config{AsyncThreshold: 2}, true)
	a := queuedAdjustment(t, f)
	ctx := userCtx()

	const runs = 8
	errs := make([]error, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.adjustments.RetryPosting(ctx, a.ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, types.MustMoney("7").Equal(balance(t, f, "ITEM-P-1")))

	stored, err := f.adjustments.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.PostingDone, stored.PostingStatus)
	assert.Len(t, stored.StockEntryLogs, 1)

	// the queued task arriving afterwards finds nothing to do
	require.NoError(t, f.adjustments.PostStockEntries(ctx, a.ID))
	assert.True(t, types.MustMoney("7").Equal(balance(t, f, "ITEM-P-1")))
}

func TestRetryPosting_OnlyQueuedOrFailed(t *testing.T) {
	f := newFixture(adjustment.DefaultConfig(), false)
	f.seedBasic()
	ctx := userCtx()

	a := f.countAndAdjust(t, map[string]string{"P-OIL": "11"}, []string{"P-OIL"})
	_, err := f.adjustments.RetryPosting(ctx, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "draft")

	_, err = f.adjustments.Submit(ctx, a.ID)
	require.NoError(t, err)
	_, err = f.adjustments.RetryPosting(ctx, a.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition), "already posted")
	assert.True(t, types.MustMoney("11").Equal(balance(t, f, "ITEM-OIL")))
}

func TestRetryPosting_AfterFailure(t *testing.T) {
	f := newFixture(adjustment.Config{AsyncThreshold: 2}, true)
	a := queuedAdjustment(t, f)
	ctx := userCtx()

	require.NoError(t, f.adjustments.MarkPostingFailed(ctx, a.ID, errors.New("worker crashed")))

	posted, err := f.adjustments.RetryPosting(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, adjustment.PostingDone, posted.PostingStatus)
	assert.Nil(t, posted.PostingError)
	assert.True(t, types.MustMoney("7").Equal(balance(t, f, "ITEM-P-1")))
}
