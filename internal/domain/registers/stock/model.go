// Package stock is the inventory movement service: stock entries post
// movements to the stock register and keep per-warehouse balances.
package stock

import (
	"context"
	"fmt"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
)

// EntityName is used in errors and movement recorder types.
const EntityName = "Stock Entry"

// EntryType is the purpose of a stock entry.
type EntryType string

const (
	EntryMaterialReceipt EntryType = "Material Receipt"
	EntryMaterialIssue   EntryType = "Material Issue"
)

// StockEntry moves items into or out of a warehouse.
type StockEntry struct {
	entity.Document

	EntryType   EntryType `db:"stock_entry_type" json:"stock_entry_type"`
	PostingTime string    `db:"posting_time" json:"posting_time"`

	// ReferenceType and ReferenceID point at the document that raised the entry.
	ReferenceType string `db:"reference_doctype" json:"reference_doctype,omitempty"`
	ReferenceID   id.ID  `db:"reference_docname" json:"reference_docname"`
	Remarks       string `db:"remarks" json:"remarks,omitempty"`

	Items []EntryItem `db:"-" json:"items"`
}

// EntryItem is one stock entry row. Receipts fill TargetWarehouse,
// issues fill SourceWarehouse.
type EntryItem struct {
	LineID                 id.ID          `db:"line_id" json:"line_id"`
	LineNo                 int            `db:"line_no" json:"idx"`
	ItemCode               string         `db:"item_code" json:"item_code"`
	Qty                    types.Quantity `db:"qty" json:"qty"`
	UOM                    string         `db:"uom" json:"uom"`
	ValuationRate          types.Money    `db:"valuation_rate" json:"valuation_rate"`
	BasicAmount            types.Money    `db:"basic_amount" json:"basic_amount"`
	SourceWarehouse        string         `db:"s_warehouse" json:"s_warehouse,omitempty"`
	TargetWarehouse        string         `db:"t_warehouse" json:"t_warehouse,omitempty"`
	AllowZeroValuationRate bool           `db:"allow_zero_valuation_rate" json:"allow_zero_valuation_rate"`
}

// NewStockEntry creates a draft entry dated postingDate.
func NewStockEntry(entryType EntryType, postingDate time.Time) *StockEntry {
	e := &StockEntry{
		Document:  entity.NewDocument(),
		EntryType: entryType,
	}
	if !postingDate.IsZero() {
		e.PostingDate = postingDate
	}
	return e
}

// Warehouse returns the warehouse an item row moves stock in.
func (it EntryItem) Warehouse() string {
	if it.TargetWarehouse != "" {
		return it.TargetWarehouse
	}
	return it.SourceWarehouse
}

// Validate checks the entry before it is posted.
func (e *StockEntry) Validate(_ context.Context) error {
	if e.EntryType != EntryMaterialReceipt && e.EntryType != EntryMaterialIssue {
		return apperror.NewValidation(fmt.Sprintf("Unsupported stock entry type %q", e.EntryType))
	}
	if len(e.Items) == 0 {
		return apperror.NewValidation("Stock Entry must have at least one item")
	}
	for i := range e.Items {
		it := &e.Items[i]
		row := i + 1
		if it.ItemCode == "" {
			return apperror.NewMissingRequiredField("item_code").WithDetail("row", row)
		}
		if !it.Qty.IsPositive() {
			return apperror.NewQuantityViolation(fmt.Sprintf("Row %d: quantity must be greater than zero", row))
		}
		if e.EntryType == EntryMaterialReceipt && it.TargetWarehouse == "" {
			return apperror.NewMissingRequiredField("t_warehouse").WithDetail("row", row)
		}
		if e.EntryType == EntryMaterialIssue && it.SourceWarehouse == "" {
			return apperror.NewMissingRequiredField("s_warehouse").WithDetail("row", row)
		}
		if it.ValuationRate.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("Row %d: valuation rate cannot be negative", row))
		}
		if e.EntryType == EntryMaterialReceipt && it.ValuationRate.IsZero() && !it.AllowZeroValuationRate {
			return apperror.NewValidation(fmt.Sprintf(
				"Valuation Rate for the Item %s is required to do accounting entries", it.ItemCode)).
				WithDetail("row", row)
		}
		it.BasicAmount = it.Qty.Mul(it.ValuationRate)
		it.LineNo = row
		if id.IsNil(it.LineID) {
			it.LineID = id.New()
		}
	}
	return nil
}

// Movements translates the entry into register movements.
func (e *StockEntry) Movements() []entity.StockMovement {
	recordType := entity.RecordTypeReceipt
	if e.EntryType == EntryMaterialIssue {
		recordType = entity.RecordTypeExpense
	}
	out := make([]entity.StockMovement, 0, len(e.Items))
	for _, it := range e.Items {
		out = append(out, entity.NewStockMovement(
			e.ID, EntityName, e.PostingDate, recordType,
			it.Warehouse(), it.ItemCode, it.Qty, it.ValuationRate,
		))
	}
	return out
}

// ItemCodes lists distinct item codes of the entry.
func (e *StockEntry) ItemCodes() []string {
	seen := make(map[string]struct{}, len(e.Items))
	var out []string
	for _, it := range e.Items {
		if _, ok := seen[it.ItemCode]; !ok {
			seen[it.ItemCode] = struct{}{}
			out = append(out, it.ItemCode)
		}
	}
	return out
}

// Warehouses lists distinct warehouses of the entry.
func (e *StockEntry) Warehouses() []string {
	seen := make(map[string]struct{}, 1)
	var out []string
	for _, it := range e.Items {
		w := it.Warehouse()
		if _, ok := seen[w]; !ok {
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return out
}

// Eligibility reports whether a stock entry can be cancelled.
type Eligibility struct {
	EntryID   id.ID            `json:"stock_entry"`
	Number    string           `json:"number"`
	EntryType EntryType        `json:"entry_type"`
	DocStatus entity.DocStatus `json:"docstatus"`
	CanCancel bool             `json:"can_cancel"`
	Reason    string           `json:"reason,omitempty"`
}
