package dto

import (
	"strings"

	"workshop/internal/domain/registers/stock"
)

// BalanceQuery filters the balances of one warehouse.
type BalanceQuery struct {
	Warehouse   string `form:"warehouse" binding:"required"`
	ItemCodes   string `form:"item_codes"`
	ExcludeZero bool   `form:"exclude_zero"`
}

// ToFilter converts the query into a register filter.
func (q BalanceQuery) ToFilter() stock.BalanceFilter {
	f := stock.BalanceFilter{ExcludeZero: q.ExcludeZero}
	for _, code := range strings.Split(q.ItemCodes, ",") {
		if code = strings.TrimSpace(code); code != "" {
			f.ItemCodes = append(f.ItemCodes, code)
		}
	}
	return f
}
