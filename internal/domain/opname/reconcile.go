package opname

import (
	"workshop/internal/core/types"
)

// VarianceLine is the difference between counted and system quantity of a part.
type VarianceLine struct {
	Part            string         `json:"part"`
	ItemCode        string         `json:"item_code"`
	UOM             string         `json:"uom,omitempty"`
	SystemQty       types.Quantity `json:"system_qty"`
	CountedQty      types.Quantity `json:"counted_qty"`
	Difference      types.Quantity `json:"difference"`
	ValuationRate   types.Money    `json:"valuation_rate"`
	ValueImpact     types.Money    `json:"value_impact"`
	VariancePercent types.Money    `json:"variance_percent"`
}

// VariancePercent is difference / system × 100. A count found where the
// system had nothing is 100; no stock on either side is 0.
func VariancePercent(system, counted types.Quantity) types.Money {
	if !system.IsZero() {
		return types.RoundHalfEven(counted.Sub(system).Div(system).Mul(types.Hundred), 2)
	}
	if counted.IsPositive() {
		return types.Hundred
	}
	return types.Zero()
}

// Reconcile compares counted items against snapshot and returns the lines
// with a non-zero difference, in item order. Parts missing from the
// snapshot are skipped.
func Reconcile(snapshot Snapshot, items []Item) []VarianceLine {
	var out []VarianceLine
	for _, it := range items {
		entry, ok := snapshot[it.Part]
		if it.Part == "" || !ok {
			continue
		}
		line := lineFor(it, entry)
		if line.Difference.IsZero() {
			continue
		}
		out = append(out, line)
	}
	return out
}

func lineFor(it Item, entry SnapshotEntry) VarianceLine {
	diff := it.QtyCounted.Sub(entry.ActualQty)
	return VarianceLine{
		Part:            it.Part,
		ItemCode:        entry.ItemCode,
		UOM:             it.UOM,
		SystemQty:       entry.ActualQty,
		CountedQty:      it.QtyCounted,
		Difference:      diff,
		ValuationRate:   entry.ValuationRate,
		ValueImpact:     diff.Mul(entry.ValuationRate),
		VariancePercent: VariancePercent(entry.ActualQty, it.QtyCounted),
	}
}
