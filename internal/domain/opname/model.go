// Package opname implements the physical stock count (Part Stock Opname):
// counted quantities are compared against a snapshot of the system
// quantities taken when the count was saved.
package opname

import (
	"context"
	"fmt"
	"strings"
	"time"

	"workshop/internal/core/apperror"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
)

// EntityName is used in errors and audit entries.
const EntityName = "Part Stock Opname"

// Status is the opname workflow state.
type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusAdjusted  Status = "Adjusted"
	StatusCancelled Status = "Cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusAdjusted, StatusCancelled},
}

// CanTransition reports whether the workflow allows from -> to.
// Adjusted and Cancelled are terminal.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Opname is a stock count of one warehouse.
type Opname struct {
	entity.Document

	Warehouse   string `db:"warehouse" json:"warehouse"`
	PostingTime string `db:"posting_time" json:"posting_time"`
	Status      Status `db:"status" json:"status"`
	Remarks     string `db:"remarks" json:"remarks,omitempty"`

	// Adjustment is set once the one-shot adjustment has been created.
	Adjustment *id.ID `db:"adjustment_id" json:"adjustment,omitempty"`

	TotalValueImpact types.Money `db:"total_value_impact" json:"total_value_impact"`

	Items []Item `db:"-" json:"items"`

	// Snapshot holds system quantities captured on save. Stored encoded in
	// SnapshotBlob.
	Snapshot     Snapshot `db:"-" json:"-"`
	SnapshotBlob []byte   `db:"system_quantities" json:"-"`
}

// Item is one counted part.
type Item struct {
	LineID          id.ID          `db:"line_id" json:"line_id"`
	LineNo          int            `db:"line_no" json:"idx"`
	Part            string         `db:"part" json:"part"`
	PartName        string         `db:"part_name" json:"part_name,omitempty"`
	ItemCode        string         `db:"item_code" json:"item_code,omitempty"`
	UOM             string         `db:"uom" json:"uom,omitempty"`
	QtyCounted      types.Quantity `db:"qty_counted" json:"qty_counted"`
	QtySystem       types.Quantity `db:"qty_system" json:"qty_system"`
	ValuationRate   types.Money    `db:"valuation_rate" json:"valuation_rate"`
	Variance        types.Quantity `db:"variance" json:"variance"`
	VariancePercent types.Money    `db:"variance_percent" json:"variance_percent"`
	ValueImpact     types.Money    `db:"value_impact" json:"value_impact"`
}

// New returns a draft opname for warehouse.
func New(warehouse string) *Opname {
	return &Opname{
		Document:  entity.NewDocument(),
		Warehouse: warehouse,
		Status:    StatusDraft,
	}
}

// Validate checks header and counted items. Posting date and time default
// to now.
func (o *Opname) Validate(_ context.Context) error {
	if strings.TrimSpace(o.Warehouse) == "" {
		return apperror.NewMissingRequiredField("warehouse")
	}
	now := time.Now()
	if o.PostingDate.IsZero() {
		o.PostingDate = now
	}
	if o.PostingTime == "" {
		o.PostingTime = now.Format("15:04:05")
	}
	if len(o.Items) == 0 {
		return apperror.NewValidation("At least one item is required for stock opname")
	}

	seen := make(map[string]int, len(o.Items))
	for i := range o.Items {
		it := &o.Items[i]
		row := i + 1
		if it.Part == "" {
			return apperror.NewMissingRequiredField("part").WithDetail("row", row)
		}
		if prev, dup := seen[it.Part]; dup {
			return apperror.NewValidation(fmt.Sprintf("Duplicate Part %s at row %d", it.Part, row)).
				WithDetail("first_row", prev)
		}
		seen[it.Part] = row
		if it.QtyCounted.IsNegative() {
			return apperror.NewQuantityViolation(fmt.Sprintf(
				"Counted Quantity cannot be negative for Part %s at row %d", it.Part, row))
		}
		it.LineNo = row
		if id.IsNil(it.LineID) {
			it.LineID = id.New()
		}
	}
	return nil
}

// SyncStatus derives the workflow status from docstatus. Adjusted is kept.
func (o *Opname) SyncStatus() {
	if o.Status == StatusAdjusted {
		return
	}
	switch o.DocStatus {
	case entity.DocStatusDraft:
		o.Status = StatusDraft
	case entity.DocStatusSubmitted:
		o.Status = StatusSubmitted
	case entity.DocStatusCancelled:
		o.Status = StatusCancelled
	}
}

// TransitionTo moves the opname to next or fails with InvalidStateTransition.
func (o *Opname) TransitionTo(next Status, action string) error {
	if !CanTransition(o.Status, next) {
		return apperror.NewInvalidStateTransition(EntityName, string(o.Status), action)
	}
	o.Status = next
	return nil
}

// ApplySnapshot fills the system side of each item from the snapshot.
func (o *Opname) ApplySnapshot() {
	total := types.Zero()
	for i := range o.Items {
		it := &o.Items[i]
		entry, ok := o.Snapshot[it.Part]
		if !ok {
			it.QtySystem = types.Zero()
			it.Variance = types.Zero()
			it.VariancePercent = types.Zero()
			it.ValueImpact = types.Zero()
			continue
		}
		line := lineFor(*it, entry)
		it.ItemCode = entry.ItemCode
		it.QtySystem = line.SystemQty
		it.ValuationRate = line.ValuationRate
		it.Variance = line.Difference
		it.VariancePercent = line.VariancePercent
		it.ValueImpact = line.ValueImpact
		total = total.Add(line.ValueImpact)
	}
	o.TotalValueImpact = total
}
