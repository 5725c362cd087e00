package opname

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	"workshop/internal/core/types"
)

func qty(s string) types.Quantity { return types.MustMoney(s) }

func TestVariancePercent(t *testing.T) {
	tests := []struct {
		name            string
		system, counted string
		want            string
	}{
		{"surplus", "10", "12", "20"},
		{"shortage", "8", "6", "-25"},
		{"found where none expected", "0", "5", "100"},
		{"nothing on either side", "0", "0", "0"},
		{"equal", "4", "4", "0"},
		{"rounded", "3", "4", "33.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := VariancePercent(qty(tt.system), qty(tt.counted))
			assert.True(t, qty(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestReconcile_SkipsZeroAndUnknown(t *testing.T) {
	snap := Snapshot{
		"P-1": {ItemCode: "ITEM-1", ActualQty: qty("10"), ValuationRate: qty("5")},
		"P-2": {ItemCode: "ITEM-2", ActualQty: qty("3"), ValuationRate: qty("7")},
		"P-3": {ItemCode: "ITEM-3", ActualQty: qty("0"), ValuationRate: qty("2")},
		"P-4": {ItemCode: "ITEM-4", ActualQty: qty("0"), ValuationRate: qty("9")},
	}
	items := []Item{
		{Part: "P-1", QtyCounted: qty("12")},
		{Part: "P-2", QtyCounted: qty("3")},
		{Part: "P-3", QtyCounted: qty("4")},
		{Part: "P-4", QtyCounted: qty("0")},
		{Part: "P-9", QtyCounted: qty("1")},
	}

	lines := Reconcile(snap, items)
	require.Len(t, lines, 2)

	assert.Equal(t, "P-1", lines[0].Part)
	assert.True(t, qty("2").Equal(lines[0].Difference))
	assert.True(t, qty("10").Equal(lines[0].ValueImpact))

	assert.Equal(t, "P-3", lines[1].Part)
	assert.True(t, qty("100").Equal(lines[1].VariancePercent))
}

func TestReconcile_ValueImpactSum(t *testing.T) {
	snap := Snapshot{
		"A": {ItemCode: "IA", ActualQty: qty("5"), ValuationRate: qty("1.25")},
		"B": {ItemCode: "IB", ActualQty: qty("9"), ValuationRate: qty("3.10")},
		"C": {ItemCode: "IC", ActualQty: qty("2"), ValuationRate: qty("0")},
	}
	items := []Item{
		{Part: "A", QtyCounted: qty("8")},
		{Part: "B", QtyCounted: qty("4.5")},
		{Part: "C", QtyCounted: qty("1")},
	}

	sumImpact, sumProduct := types.Zero(), types.Zero()
	for _, l := range Reconcile(snap, items) {
		sumImpact = sumImpact.Add(l.ValueImpact)
		sumProduct = sumProduct.Add(l.Difference.Mul(l.ValuationRate))
	}
	assert.True(t, sumProduct.Equal(sumImpact))
	assert.True(t, qty("-10.2").Equal(sumImpact))
}

func TestSnapshot_EncodedRoundTrip(t *testing.T) {
	snap := Snapshot{"P-1": {ItemCode: "ITEM-1", ActualQty: qty("10"), ValuationRate: qty("5.5")}}

	blob, err := EncodeSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, zstdMagic, blob[:4])

	got, err := DecodeSnapshot(blob)
	require.NoError(t, err)
	assert.Equal(t, "ITEM-1", got["P-1"].ItemCode)
	assert.True(t, qty("5.5").Equal(got["P-1"].ValuationRate))
}

func TestDecodeSnapshot_PlainJSONAndEmpty(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"P-1": map[string]any{"item_code": "ITEM-1", "actual_qty": "4", "valuation_rate": "2"},
	})
	require.NoError(t, err)

	got, err := DecodeSnapshot(raw)
	require.NoError(t, err)
	assert.True(t, qty("4").Equal(got["P-1"].ActualQty))

	empty, err := DecodeSnapshot(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()

	o := New("")
	assert.True(t, apperror.HasCode(o.Validate(ctx), apperror.CodeMissingRequiredField))

	o = New("Main")
	assert.True(t, apperror.HasCode(o.Validate(ctx), apperror.CodeValidation))

	o.Items = []Item{{Part: "P-1", QtyCounted: qty("1")}, {Part: "P-1", QtyCounted: qty("2")}}
	err := o.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Duplicate Part P-1 at row 2")

	o.Items = []Item{{Part: "P-1", QtyCounted: qty("-1")}}
	assert.True(t, apperror.HasCode(o.Validate(ctx), apperror.CodeQuantityViolation))

	o.Items = []Item{{Part: "P-1", QtyCounted: qty("0")}}
	require.NoError(t, o.Validate(ctx))
	assert.NotEmpty(t, o.PostingTime)
	assert.Equal(t, 1, o.Items[0].LineNo)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusSubmitted))
	assert.True(t, CanTransition(StatusSubmitted, StatusAdjusted))
	assert.True(t, CanTransition(StatusSubmitted, StatusCancelled))
	assert.False(t, CanTransition(StatusAdjusted, StatusCancelled))
	assert.False(t, CanTransition(StatusAdjusted, StatusSubmitted))
	assert.False(t, CanTransition(StatusDraft, StatusAdjusted))
}
