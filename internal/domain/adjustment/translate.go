package adjustment

import (
	"fmt"

	"workshop/internal/core/types"
	"workshop/internal/domain/registers/stock"
)

// Split partitions lines by the sign of their difference: surpluses are
// received, shortages issued. Zero lines are dropped.
func Split(lines []Line) (receipt, issue []Line) {
	for _, ln := range lines {
		switch ln.Difference.Sign() {
		case 1:
			receipt = append(receipt, ln)
		case -1:
			issue = append(issue, ln)
		}
	}
	return receipt, issue
}

// ZeroValuationPolicy decides whether a stock entry line may carry a zero
// valuation rate.
type ZeroValuationPolicy string

const (
	// ZeroValuationAllowWhenZero flags lines whose rate is exactly zero.
	ZeroValuationAllowWhenZero ZeroValuationPolicy = "allow_when_zero"
	// ZeroValuationNever leaves the flag off; zero-rate receipts are rejected.
	ZeroValuationNever ZeroValuationPolicy = "never"
)

// ParseZeroValuationPolicy parses a configured policy. Empty means allow_when_zero.
func ParseZeroValuationPolicy(s string) (ZeroValuationPolicy, error) {
	switch p := ZeroValuationPolicy(s); p {
	case "":
		return ZeroValuationAllowWhenZero, nil
	case ZeroValuationAllowWhenZero, ZeroValuationNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown zero valuation policy %q", s)
	}
}

// Allow reports the allow_zero_valuation_rate flag for rate.
func (p ZeroValuationPolicy) Allow(rate types.Money) bool {
	return p != ZeroValuationNever && rate.IsZero()
}

// BuildStockEntry makes the stock entry of entryType for lines. Quantities
// are the absolute differences; receipts go to and issues come from the
// adjustment warehouse.
func BuildStockEntry(a *Adjustment, entryType stock.EntryType, lines []Line, policy ZeroValuationPolicy) *stock.StockEntry {
	e := stock.NewStockEntry(entryType, a.PostingDate)
	e.PostingTime = a.PostingTime
	e.ReferenceType = EntityName
	e.ReferenceID = a.ID
	e.Remarks = fmt.Sprintf("Stock adjustment based on Stock Opname %s", a.opnameLabel())
	if a.Remarks != "" {
		e.Remarks += "\n" + a.Remarks
	}

	for _, ln := range lines {
		item := stock.EntryItem{
			ItemCode:               ln.ItemCode,
			Qty:                    ln.Difference.Abs(),
			UOM:                    ln.UOM,
			ValuationRate:          ln.ValuationRate,
			AllowZeroValuationRate: policy.Allow(ln.ValuationRate),
		}
		if entryType == stock.EntryMaterialReceipt {
			item.TargetWarehouse = a.Warehouse
		} else {
			item.SourceWarehouse = a.Warehouse
		}
		e.Items = append(e.Items, item)
	}
	return e
}

func (a *Adjustment) opnameLabel() string {
	if a.ReferenceOpnameNumber != "" {
		return a.ReferenceOpnameNumber
	}
	return a.ReferenceOpname.String()
}
