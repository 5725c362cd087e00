// Package adjustment implements the stock adjustment (Part Stock
// Adjustment) made from an opname variance and its translation into stock
// entries.
package adjustment

import (
	"context"
	"strings"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/registers/stock"
)

// EntityName is used in errors, history and stock entry references.
const EntityName = "Part Stock Adjustment"

// Status is the adjustment workflow state.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusCancelled Status = "Cancelled"
)

// PostingStatus tracks the stock entries of a submitted adjustment.
type PostingStatus string

const (
	PostingNone       PostingStatus = ""
	PostingQueued     PostingStatus = "Queued"
	PostingInProgress PostingStatus = "Posting"
	PostingDone       PostingStatus = "Posted"
	PostingFailed     PostingStatus = "Failed"
)

// Retryable reports whether a posting run may claim the adjustment.
func (p PostingStatus) Retryable() bool {
	return p == PostingQueued || p == PostingFailed
}

// Adjustment corrects the stock of a warehouse to the counted quantities.
type Adjustment struct {
	entity.Document

	ReferenceOpname       id.ID  `db:"reference_opname" json:"reference_opname"`
	ReferenceOpnameNumber string `db:"reference_opname_number" json:"reference_opname_number,omitempty"`
	Warehouse             string `db:"warehouse" json:"warehouse"`
	PostingTime           string `db:"posting_time" json:"posting_time"`
	Status                Status `db:"status" json:"status"`
	Remarks               string `db:"remarks" json:"remarks,omitempty"`

	TotalQuantityDifference types.Quantity `db:"total_quantity_difference" json:"total_quantity_difference"`
	TotalValueDifference    types.Money    `db:"total_value_difference" json:"total_value_difference"`

	PostingStatus PostingStatus `db:"posting_status" json:"posting_status,omitempty"`
	PostingError  *string       `db:"posting_error" json:"posting_error,omitempty"`

	Items          []Line          `db:"-" json:"items"`
	StockEntryLogs []StockEntryLog `db:"-" json:"stock_entry_logs,omitempty"`
}

// Line is one part to adjust. Difference is counted minus actual.
type Line struct {
	LineID           id.ID          `db:"line_id" json:"line_id"`
	LineNo           int            `db:"line_no" json:"idx"`
	Part             string         `db:"part" json:"part"`
	ItemCode         string         `db:"item_code" json:"item_code,omitempty"`
	UOM              string         `db:"uom" json:"uom,omitempty"`
	ActualQty        types.Quantity `db:"actual_qty" json:"actual_qty"`
	CountedQty       types.Quantity `db:"counted_qty" json:"counted_qty"`
	Difference       types.Quantity `db:"difference" json:"difference"`
	ValuationRate    types.Money    `db:"valuation_rate" json:"valuation_rate"`
	AdjustmentAmount types.Money    `db:"adjustment_amount" json:"adjustment_amount"`
}

// StockEntryLog records a stock entry made by the adjustment.
type StockEntryLog struct {
	StockEntry       id.ID           `db:"stock_entry" json:"stock_entry"`
	StockEntryNumber string          `db:"stock_entry_number" json:"stock_entry_number"`
	EntryType        stock.EntryType `db:"entry_type" json:"entry_type"`
	PostingDate      time.Time       `db:"posting_date" json:"posting_date"`
	CreatedBy        string          `db:"created_by" json:"created_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// New returns a draft adjustment for warehouse.
func New(warehouse string) *Adjustment {
	return &Adjustment{
		Document:  entity.NewDocument(),
		Warehouse: warehouse,
		Status:    StatusDraft,
	}
}

// Validate checks the header and that at least one line differs.
// Posting date and time default to now.
func (a *Adjustment) Validate(_ context.Context) error {
	var missing []string
	if id.IsNil(a.ReferenceOpname) {
		missing = append(missing, "reference_opname")
	}
	if strings.TrimSpace(a.Warehouse) == "" {
		missing = append(missing, "warehouse")
	}
	if len(missing) > 0 {
		return apperror.NewMissingRequiredField(missing...)
	}
	now := time.Now()
	if a.PostingDate.IsZero() {
		a.PostingDate = now
	}
	if a.PostingTime == "" {
		a.PostingTime = now.Format("15:04:05")
	}
	if len(a.Items) == 0 {
		return apperror.NewValidation("At least one adjustment item is required")
	}

	hasDifference := false
	for i := range a.Items {
		ln := &a.Items[i]
		if ln.Part == "" {
			return apperror.NewMissingRequiredField("part").WithDetail("row", i+1)
		}
		ln.Difference = ln.CountedQty.Sub(ln.ActualQty)
		if !ln.Difference.IsZero() {
			hasDifference = true
		}
		ln.LineNo = i + 1
		if id.IsNil(ln.LineID) {
			ln.LineID = id.New()
		}
	}
	if !hasDifference {
		return apperror.NewValidation("No differences found to adjust. Please remove items with zero difference.")
	}
	return nil
}

// CalculateTotals sets each line amount and the document totals.
func CalculateTotals(a *Adjustment) {
	qty, value := types.Zero(), types.Zero()
	for i := range a.Items {
		ln := &a.Items[i]
		ln.AdjustmentAmount = ln.Difference.Mul(ln.ValuationRate)
		qty = qty.Add(ln.Difference)
		value = value.Add(ln.AdjustmentAmount)
	}
	a.TotalQuantityDifference = qty
	a.TotalValueDifference = value
}

// SyncStatus derives the workflow status from docstatus.
func (a *Adjustment) SyncStatus() {
	switch a.DocStatus {
	case entity.DocStatusDraft:
		a.Status = StatusDraft
	case entity.DocStatusSubmitted:
		a.Status = StatusSubmitted
	case entity.DocStatusCancelled:
		a.Status = StatusCancelled
	}
}
