// Package material implements the documents that move parts between the
// store and a work order: the workshop material issue and the material
// return. Both post stock entries and keep the consumed quantity of the
// work order part rows in step.
package material

import (
	"context"
	"fmt"
	"strings"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/workorder"
)

// Entity names are used in errors and as stock entry reference types.
const (
	IssueEntityName  = "Workshop Material Issue"
	ReturnEntityName = "Return Material"
)

// Status mirrors DocStatus for display.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusCancelled Status = "Cancelled"
)

func statusOf(d entity.DocStatus) Status {
	switch d {
	case entity.DocStatusSubmitted:
		return StatusSubmitted
	case entity.DocStatusCancelled:
		return StatusCancelled
	default:
		return StatusDraft
	}
}

// Issue takes parts out of a warehouse for a work order.
type Issue struct {
	entity.Document

	WorkOrder       id.ID  `db:"work_order" json:"work_order"`
	WorkOrderNumber string `db:"work_order_number" json:"work_order_number,omitempty"`
	Warehouse       string `db:"set_warehouse" json:"set_warehouse"`
	PostingTime     string `db:"posting_time" json:"posting_time"`
	Status          Status `db:"status" json:"status"`
	Remarks         string `db:"remarks" json:"remarks,omitempty"`

	TotalQty    types.Quantity `db:"total_qty" json:"total_qty"`
	TotalAmount types.Money    `db:"total_amount" json:"total_amount"`

	StockEntry       *id.ID `db:"stock_entry" json:"stock_entry,omitempty"`
	StockEntryNumber string `db:"stock_entry_number" json:"stock_entry_number,omitempty"`

	Items []IssueItem `db:"-" json:"items"`
}

// IssueItem is one issued part. Rate is the valuation rate at issue.
type IssueItem struct {
	LineID   id.ID          `db:"line_id" json:"line_id"`
	LineNo   int            `db:"line_no" json:"idx"`
	Part     string         `db:"part" json:"part"`
	PartName string         `db:"part_name" json:"part_name,omitempty"`
	ItemCode string         `db:"item_code" json:"item_code,omitempty"`
	UOM      string         `db:"uom" json:"uom,omitempty"`
	Qty      types.Quantity `db:"qty" json:"qty"`
	Rate     types.Money    `db:"rate" json:"rate"`
	Amount   types.Money    `db:"amount" json:"amount"`
}

// NewIssue creates a draft issue for workOrderID from warehouse.
func NewIssue(workOrderID id.ID, warehouse string) *Issue {
	return &Issue{
		Document:  entity.NewDocument(),
		WorkOrder: workOrderID,
		Warehouse: warehouse,
		Status:    StatusDraft,
	}
}

// Validate checks the header and rows. Duplicate parts must be combined
// into one row.
func (i *Issue) Validate(_ context.Context) error {
	var missing []string
	if id.IsNil(i.WorkOrder) {
		missing = append(missing, "work_order")
	}
	if strings.TrimSpace(i.Warehouse) == "" {
		missing = append(missing, "set_warehouse")
	}
	if len(missing) > 0 {
		return apperror.NewMissingRequiredField(missing...)
	}
	if len(i.Items) == 0 {
		return apperror.NewValidation("At least one item is required")
	}

	seen := make(map[string]struct{}, len(i.Items))
	for n := range i.Items {
		it := &i.Items[n]
		row := n + 1
		if it.Part == "" {
			return apperror.NewMissingRequiredField("part").WithDetail("row", row)
		}
		if !it.Qty.IsPositive() {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"Quantity must be greater than zero for part %s at row %d", it.Part, row))
		}
		if _, dup := seen[it.Part]; dup {
			return apperror.NewValidation(fmt.Sprintf(
				"Duplicate Part %s found at row %d. Please combine quantities in a single row.", it.Part, row)).
				WithDetail("row", row)
		}
		seen[it.Part] = struct{}{}
		it.LineNo = row
		if id.IsNil(it.LineID) {
			it.LineID = id.New()
		}
	}
	return nil
}

// CalculateTotals sets row amounts and document totals.
func (i *Issue) CalculateTotals() {
	qty, amount := types.Zero(), types.Zero()
	for n := range i.Items {
		it := &i.Items[n]
		it.Amount = it.Qty.Mul(it.Rate)
		qty = qty.Add(it.Qty)
		amount = amount.Add(it.Amount)
	}
	i.TotalQty, i.TotalAmount = qty, amount
}

// SyncStatus derives Status from DocStatus.
func (i *Issue) SyncStatus() { i.Status = statusOf(i.DocStatus) }

// Consumption returns the work order deltas of the issue; sign is +1 on
// submit and -1 on cancel.
func (i *Issue) Consumption(sign int64) []workorder.ConsumedDelta {
	out := make([]workorder.ConsumedDelta, 0, len(i.Items))
	for _, it := range i.Items {
		out = append(out, workorder.ConsumedDelta{Part: it.Part, Qty: it.Qty.Mul(types.Qty(sign))})
	}
	return out
}

// BuildStockEntry builds the Material Issue entry of i.
func (i *Issue) BuildStockEntry() *stock.StockEntry {
	e := stock.NewStockEntry(stock.EntryMaterialIssue, i.PostingDate)
	e.PostingTime = i.PostingTime
	e.ReferenceType = IssueEntityName
	e.ReferenceID = i.ID
	e.Remarks = fmt.Sprintf("Material Issue for Workshop Material Issue: %s", i.Number)
	if i.Remarks != "" {
		e.Remarks += "\n" + i.Remarks
	}
	for _, it := range i.Items {
		e.Items = append(e.Items, stock.EntryItem{
			ItemCode:               it.ItemCode,
			Qty:                    it.Qty,
			UOM:                    it.UOM,
			ValuationRate:          it.Rate,
			SourceWarehouse:        i.Warehouse,
			AllowZeroValuationRate: it.Rate.IsZero(),
		})
	}
	return e
}

// Return brings unused parts of a work order back into stock.
type Return struct {
	entity.Document

	WorkOrder       id.ID  `db:"work_order" json:"work_order"`
	WorkOrderNumber string `db:"work_order_number" json:"work_order_number,omitempty"`
	// Warehouse receives rows that do not name their own.
	Warehouse   string `db:"warehouse" json:"warehouse"`
	PostingTime string `db:"posting_time" json:"posting_time"`
	Status      Status `db:"status" json:"status"`
	Remarks     string `db:"remarks" json:"remarks,omitempty"`

	TotalQty    types.Quantity `db:"total_qty" json:"total_qty"`
	TotalAmount types.Money    `db:"total_amount" json:"total_amount"`

	StockEntry       *id.ID `db:"stock_entry" json:"stock_entry,omitempty"`
	StockEntryNumber string `db:"stock_entry_number" json:"stock_entry_number,omitempty"`

	Items []ReturnItem `db:"-" json:"items"`
}

// ReturnItem is one returned part.
type ReturnItem struct {
	LineID        id.ID          `db:"line_id" json:"line_id"`
	LineNo        int            `db:"line_no" json:"idx"`
	Part          string         `db:"part" json:"part"`
	ItemCode      string         `db:"item_code" json:"item_code,omitempty"`
	UOM           string         `db:"uom" json:"uom,omitempty"`
	Qty           types.Quantity `db:"qty" json:"qty"`
	ValuationRate types.Money    `db:"valuation_rate" json:"valuation_rate"`
	Amount        types.Money    `db:"amount" json:"amount"`
	Warehouse     string         `db:"warehouse" json:"warehouse,omitempty"`
	// WorkOrderItem is the work order part row the quantity goes back to.
	WorkOrderItem id.ID `db:"work_order_item" json:"work_order_item"`
}

// NewReturn creates a draft return for workOrderID into warehouse.
func NewReturn(workOrderID id.ID, warehouse string) *Return {
	return &Return{
		Document:  entity.NewDocument(),
		WorkOrder: workOrderID,
		Warehouse: warehouse,
		Status:    StatusDraft,
	}
}

// Validate checks the header and rows.
func (r *Return) Validate(_ context.Context) error {
	if id.IsNil(r.WorkOrder) {
		return apperror.NewMissingRequiredField("work_order")
	}
	if len(r.Items) == 0 {
		return apperror.NewValidation("At least one item is required")
	}
	for n := range r.Items {
		it := &r.Items[n]
		row := n + 1
		if it.Part == "" {
			return apperror.NewMissingRequiredField("part").WithDetail("row", row)
		}
		if !it.Qty.IsPositive() {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"Quantity must be greater than zero for part %s at row %d", it.Part, row))
		}
		if it.ValuationRate.IsNegative() {
			return apperror.NewValidation(fmt.Sprintf("Row %d: valuation rate cannot be negative", row))
		}
		if it.Warehouse == "" {
			it.Warehouse = r.Warehouse
		}
		if it.Warehouse == "" {
			return apperror.NewMissingRequiredField("warehouse").WithDetail("row", row)
		}
		it.LineNo = row
		if id.IsNil(it.LineID) {
			it.LineID = id.New()
		}
	}
	return nil
}

// CalculateTotals sets row amounts and document totals.
func (r *Return) CalculateTotals() {
	qty, amount := types.Zero(), types.Zero()
	for n := range r.Items {
		it := &r.Items[n]
		it.Amount = it.Qty.Mul(it.ValuationRate)
		qty = qty.Add(it.Qty)
		amount = amount.Add(it.Amount)
	}
	r.TotalQty, r.TotalAmount = qty, amount
}

// SyncStatus derives Status from DocStatus.
func (r *Return) SyncStatus() { r.Status = statusOf(r.DocStatus) }

// Consumption returns the work order deltas of the return: -1 on submit,
// +1 on cancel.
func (r *Return) Consumption(sign int64) []workorder.ConsumedDelta {
	out := make([]workorder.ConsumedDelta, 0, len(r.Items))
	for _, it := range r.Items {
		out = append(out, workorder.ConsumedDelta{Part: it.Part, Qty: it.Qty.Mul(types.Qty(sign))})
	}
	return out
}

// BuildStockEntry builds the Material Receipt entry of r.
func (r *Return) BuildStockEntry() *stock.StockEntry {
	e := stock.NewStockEntry(stock.EntryMaterialReceipt, r.PostingDate)
	e.PostingTime = r.PostingTime
	e.ReferenceType = ReturnEntityName
	e.ReferenceID = r.ID
	e.Remarks = fmt.Sprintf("Materials returned from Work Order %s", r.WorkOrderNumber)
	if r.Remarks != "" {
		e.Remarks += "\n" + r.Remarks
	}
	for _, it := range r.Items {
		e.Items = append(e.Items, stock.EntryItem{
			ItemCode:               it.ItemCode,
			Qty:                    it.Qty,
			UOM:                    it.UOM,
			ValuationRate:          it.ValuationRate,
			TargetWarehouse:        it.Warehouse,
			AllowZeroValuationRate: it.ValuationRate.IsZero(),
		})
	}
	return e
}

// IssuablePart is a work order part row with the quantity still to issue.
type IssuablePart struct {
	Part         string         `json:"part"`
	PartName     string         `json:"part_name"`
	ItemCode     string         `json:"item_code"`
	RequiredQty  types.Quantity `json:"required_qty"`
	ConsumedQty  types.Quantity `json:"consumed_qty"`
	AvailableQty types.Quantity `json:"available_qty"`
	// Qty is the smaller of the remaining and the available quantity.
	Qty           types.Quantity `json:"qty"`
	ValuationRate types.Money    `json:"valuation_rate"`
}

// ReturnablePart is a consumed work order part that can go back to stock.
type ReturnablePart struct {
	Part          string         `json:"part"`
	PartName      string         `json:"part_name"`
	ItemCode      string         `json:"item_code"`
	ConsumedQty   types.Quantity `json:"consumed_qty"`
	UOM           string         `json:"uom,omitempty"`
	ValuationRate types.Money    `json:"valuation_rate"`
	Amount        types.Money    `json:"amount"`
	WorkOrderItem id.ID          `json:"work_order_item"`
}

// IssuedPart names a part on another live issue of the same work order.
type IssuedPart struct {
	Part        string           `db:"part" json:"part"`
	IssueID     id.ID            `db:"id" json:"issue"`
	IssueNumber string           `db:"number" json:"issue_number"`
	DocStatus   entity.DocStatus `db:"docstatus" json:"docstatus"`
}
