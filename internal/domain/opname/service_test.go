package opname_test

import (
	"context"
	"errors"
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
	"workshop/internal/domain/audit/audittest"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/catalog/catalogtest"
	"workshop/internal/domain/opname"
	"workshop/internal/domain/opname/opnametest"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/registers/stock/stocktest"
)

type recordingAdjuster struct {
	calls [][]opname.VarianceLine
	err   error
}

func (a *recordingAdjuster) CreateFromOpname(_ context.Context, o *opname.Opname, lines []opname.VarianceLine) (opname.AdjustmentRef, error) {
	if a.err != nil {
		return opname.AdjustmentRef{}, a.err
	}
	a.calls = append(a.calls, lines)
	return opname.AdjustmentRef{ID: id.New(), Number: "PSA-2026-00001"}, nil
}

type fixture struct {
	svc      *opname.Service
	repo     *opnametest.Memory
	stock    *stocktest.Memory
	cat      *catalogtest.Memory
	adjuster *recordingAdjuster
	history  *audittest.Memory
}

func newFixture() *fixture {
	f := &fixture{
		repo:     opnametest.New(),
		stock:    stocktest.New(),
		cat:      catalogtest.New(),
		adjuster: &recordingAdjuster{},
		history:  &audittest.Memory{},
	}
	f.cat.AddPart("P-OIL", "Engine Oil", "ITEM-OIL")
	f.cat.AddPart("P-PAD", "Brake Pad", "ITEM-PAD").ValuationRate = types.MustMoney("45")
	f.cat.AddPart("P-BOLT", "Bolt", "")
	f.stock.Seed("Main", "ITEM-OIL", "10", "12")

	stockSvc := stock.NewService(f.stock, &numerator.MockGenerator{}, tx.Nop{}, nil)
	f.svc = opname.NewService(opname.ServiceConfig{
		Repo:      f.repo,
		Parts:     catalog.NewService(f.cat, "EXT-ITEM"),
		Balances:  stockSvc,
		Adjuster:  f.adjuster,
		History:   f.history,
		Numerator: &numerator.MockGenerator{},
		TxManager: tx.Nop{},
	})
	return f
}

func keeperCtx() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID:      "stock@example.com",
		Roles:       []string{"Stock Manager"},
		Permissions: []string{"stock:write", "stock:submit"},
	})
}

func (f *fixture) submitted(t *testing.T, counts map[string]string) *opname.Opname {
	t.Helper()
	ctx := keeperCtx()
	o := opname.New("Main")
	for _, part := range []string{"P-OIL", "P-PAD", "P-BOLT"} {
		if c, ok := counts[part]; ok {
			o.Items = append(o.Items, opname.Item{Part: part, QtyCounted: types.MustMoney(c)})
		}
	}
	require.NoError(t, f.svc.Create(ctx, o))
	got, err := f.svc.Submit(ctx, o.ID)
	require.NoError(t, err)
	return got
}

func TestCreate_StoresSnapshot(t *testing.T) {
	f := newFixture()
	o := opname.New("Main")
	o.Items = []opname.Item{
		{Part: "P-OIL", QtyCounted: types.MustMoney("8")},
		{Part: "P-PAD", QtyCounted: types.MustMoney("2")},
		{Part: "P-BOLT", QtyCounted: types.MustMoney("50")},
	}

	require.NoError(t, f.svc.Create(keeperCtx(), o))
	assert.Contains(t, o.Number, "PSO-")
	assert.Equal(t, opname.StatusDraft, o.Status)
	assert.Equal(t, "stock@example.com", o.CreatedBy)

	stored, err := f.svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Snapshot, 2, "parts without a stock item are not snapshotted")

	oil := stored.Snapshot["P-OIL"]
	assert.Equal(t, "ITEM-OIL", oil.ItemCode)
	assert.True(t, types.MustMoney("10").Equal(oil.ActualQty))
	assert.True(t, types.MustMoney("12").Equal(oil.ValuationRate))

	pad := stored.Snapshot["P-PAD"]
	assert.True(t, pad.ActualQty.IsZero())
	assert.True(t, types.MustMoney("45").Equal(pad.ValuationRate))

	assert.Equal(t, "Engine Oil", stored.Items[0].PartName)
	assert.Equal(t, catalog.DefaultUOM, stored.Items[0].UOM)
	assert.True(t, types.MustMoney("-2").Equal(stored.Items[0].Variance))
	// -2×12 + 2×45
	assert.True(t, types.MustMoney("66").Equal(stored.TotalValueImpact))
}

func TestCreate_UnknownPart(t *testing.T) {
	f := newFixture()
	o := opname.New("Main")
	o.Items = []opname.Item{{Part: "P-NOPE", QtyCounted: types.MustMoney("1")}}

	err := f.svc.Create(keeperCtx(), o)
	assert.True(t, apperror.HasCode(err, apperror.CodeReferenceNotFound))
}

func TestCreateAdjustment_OneShot(t *testing.T) {
	f := newFixture()
	o := f.submitted(t, map[string]string{"P-OIL": "7", "P-PAD": "3"})

	ref, err := f.svc.CreateAdjustment(keeperCtx(), o.ID)
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Len(t, f.adjuster.calls, 1)
	assert.Len(t, f.adjuster.calls[0], 2)

	stored, err := f.svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusAdjusted, stored.Status)
	require.NotNil(t, stored.Adjustment)
	assert.Equal(t, ref.ID, *stored.Adjustment)

	_, err = f.svc.CreateAdjustment(keeperCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
	assert.Len(t, f.adjuster.calls, 1)

	_, err = f.svc.Cancel(keeperCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	history, err := f.svc.History(context.Background(), o.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Contains(t, history[0].Message, "Status changed to Adjusted")
}

func TestCreateAdjustment_NoDifferences(t *testing.T) {
	f := newFixture()
	o := f.submitted(t, map[string]string{"P-OIL": "10"})

	ref, err := f.svc.CreateAdjustment(keeperCtx(), o.ID)
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.Empty(t, f.adjuster.calls)

	stored, err := f.svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusSubmitted, stored.Status)
}

func TestCreateAdjustment_Guards(t *testing.T) {
	f := newFixture()

	draft := opname.New("Main")
	draft.Items = []opname.Item{{Part: "P-OIL", QtyCounted: types.MustMoney("1")}}
	require.NoError(t, f.svc.Create(keeperCtx(), draft))
	_, err := f.svc.CreateAdjustment(keeperCtx(), draft.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	viewer := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "viewer"})
	_, err = f.svc.CreateAdjustment(viewer, draft.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodePermissionDenied))

	o := f.submitted(t, map[string]string{"P-OIL": "3"})
	f.adjuster.err = errors.New("adjustment insert failed")
	_, err = f.svc.CreateAdjustment(keeperCtx(), o.ID)
	require.Error(t, err)
	stored, err := f.svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusSubmitted, stored.Status)
}

func TestSubmitAndCancel(t *testing.T) {
	f := newFixture()
	o := f.submitted(t, map[string]string{"P-OIL": "9"})
	assert.Equal(t, opname.StatusSubmitted, o.Status)
	assert.Equal(t, entity.DocStatusSubmitted, o.DocStatus)

	_, err := f.svc.Submit(keeperCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))

	cancelled, err := f.svc.Cancel(keeperCtx(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCancelled, cancelled.Status)

	_, err = f.svc.CreateAdjustment(keeperCtx(), o.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestUpdate_RefreshesSnapshot(t *testing.T) {
	f := newFixture()
	ctx := keeperCtx()
	o := opname.New("Main")
	o.Items = []opname.Item{{Part: "P-OIL", QtyCounted: types.MustMoney("10")}}
	require.NoError(t, f.svc.Create(ctx, o))

	f.stock.Seed("Main", "ITEM-OIL", "5", "12")
	o.PostingDate = time.Now()
	require.NoError(t, f.svc.Update(ctx, o))

	lines, err := f.svc.Variance(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, types.MustMoney("-5").Equal(lines[0].Difference))
}
