package adjustment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/registers/stock"
)

func dec(s string) types.Money { return types.MustMoney(s) }

func TestSplit_PartitionsBySign(t *testing.T) {
	lines := []Line{
		{Part: "A", Difference: dec("2")},
		{Part: "B", Difference: dec("-1.5")},
		{Part: "C", Difference: dec("0")},
		{Part: "D", Difference: dec("7")},
		{Part: "E", Difference: dec("-3")},
	}

	receipt, issue := Split(lines)

	nonZero := 0
	for _, l := range lines {
		if !l.Difference.IsZero() {
			nonZero++
		}
	}
	assert.Equal(t, nonZero, len(receipt)+len(issue))
	require.Len(t, receipt, 2)
	assert.Equal(t, "A", receipt[0].Part)
	assert.Equal(t, "D", receipt[1].Part)
	require.Len(t, issue, 2)
	assert.Equal(t, "B", issue[0].Part)
}

func TestZeroValuationPolicy(t *testing.T) {
	p, err := ParseZeroValuationPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ZeroValuationAllowWhenZero, p)
	assert.True(t, p.Allow(dec("0")))
	assert.False(t, p.Allow(dec("0.01")))

	p, err = ParseZeroValuationPolicy("never")
	require.NoError(t, err)
	assert.False(t, p.Allow(dec("0")))

	_, err = ParseZeroValuationPolicy("sometimes")
	assert.Error(t, err)
}

func TestBuildStockEntry(t *testing.T) {
	a := New("Main")
	a.ReferenceOpnameNumber = "PSO-2026-00004"
	a.Remarks = "Yearly count"
	a.PostingDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	a.PostingTime = "10:00:00"

	issue := BuildStockEntry(a, stock.EntryMaterialIssue, []Line{
		{ItemCode: "ITEM-1", UOM: "Pcs", Difference: dec("-3"), ValuationRate: dec("0")},
	}, ZeroValuationAllowWhenZero)

	assert.Equal(t, stock.EntryMaterialIssue, issue.EntryType)
	assert.Equal(t, a.ID, issue.ReferenceID)
	assert.Equal(t, EntityName, issue.ReferenceType)
	assert.Equal(t, "Stock adjustment based on Stock Opname PSO-2026-00004\nYearly count", issue.Remarks)
	assert.True(t, a.PostingDate.Equal(issue.PostingDate))
	require.Len(t, issue.Items, 1)
	assert.True(t, dec("3").Equal(issue.Items[0].Qty))
	assert.Equal(t, "Main", issue.Items[0].SourceWarehouse)
	assert.Empty(t, issue.Items[0].TargetWarehouse)
	assert.True(t, issue.Items[0].AllowZeroValuationRate)

	receipt := BuildStockEntry(a, stock.EntryMaterialReceipt, []Line{
		{ItemCode: "ITEM-2", Difference: dec("4"), ValuationRate: dec("9")},
	}, ZeroValuationNever)
	assert.Equal(t, "Main", receipt.Items[0].TargetWarehouse)
	assert.False(t, receipt.Items[0].AllowZeroValuationRate)
}

func TestValidateAndTotals(t *testing.T) {
	ctx := context.Background()

	a := New("")
	err := a.Validate(ctx)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, []string{"reference_opname", "warehouse"}, appErr.Details["fields"])

	a = New("Main")
	a.ReferenceOpname = id.New()
	assert.True(t, apperror.HasCode(a.Validate(ctx), apperror.CodeValidation))

	a.Items = []Line{{Part: "A", ActualQty: dec("5"), CountedQty: dec("5")}}
	err = a.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No differences found to adjust")

	a.Items = []Line{
		{Part: "A", ActualQty: dec("5"), CountedQty: dec("7"), ValuationRate: dec("10")},
		{Part: "B", ActualQty: dec("4"), CountedQty: dec("1"), ValuationRate: dec("2.5")},
	}
	require.NoError(t, a.Validate(ctx))
	CalculateTotals(a)

	assert.True(t, dec("-1").Equal(a.TotalQuantityDifference))
	assert.True(t, dec("12.5").Equal(a.TotalValueDifference))
	assert.True(t, dec("-7.5").Equal(a.Items[1].AdjustmentAmount))
}
