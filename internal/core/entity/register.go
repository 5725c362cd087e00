package entity

import (
	"time"

	"workshop/internal/core/id"
	"workshop/internal/core/types"
)

// RecordType defines movement direction in the stock register.
type RecordType string

const (
	// RecordTypeReceipt increases balance
	RecordTypeReceipt RecordType = "receipt"
	// RecordTypeExpense decreases balance
	RecordTypeExpense RecordType = "expense"
)

// StockMovement is one immutable line of the stock register.
// Movements are never updated: cancelling a stock entry deletes its lines.
type StockMovement struct {
	LineID id.ID `db:"line_id" json:"lineId"`

	// RecorderID is the stock entry that created this movement
	RecorderID   id.ID  `db:"recorder_id" json:"recorderId"`
	RecorderType string `db:"recorder_type" json:"recorderType"`

	Period     time.Time  `db:"period" json:"period"`
	RecordType RecordType `db:"record_type" json:"recordType"`

	// Dimensions
	Warehouse string `db:"warehouse" json:"warehouse"`
	ItemCode  string `db:"item_code" json:"itemCode"`

	// Resources
	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	ValuationRate types.Money    `db:"valuation_rate" json:"valuationRate"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a movement with a generated line id.
func NewStockMovement(
	recorderID id.ID,
	recorderType string,
	period time.Time,
	recordType RecordType,
	warehouse, itemCode string,
	quantity types.Quantity,
	valuationRate types.Money,
) StockMovement {
	return StockMovement{
		LineID:        id.New(),
		RecorderID:    recorderID,
		RecorderType:  recorderType,
		Period:        period,
		RecordType:    recordType,
		Warehouse:     warehouse,
		ItemCode:      itemCode,
		Quantity:      quantity,
		ValuationRate: valuationRate,
		CreatedAt:     time.Now().UTC(),
	}
}

// SignedQuantity returns quantity with sign based on record type.
func (m *StockMovement) SignedQuantity() types.Quantity {
	if m.RecordType == RecordTypeExpense {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// StockBalance is the materialized balance of an item in a warehouse.
type StockBalance struct {
	Warehouse string `db:"warehouse" json:"warehouse"`
	ItemCode  string `db:"item_code" json:"itemCode"`

	Quantity      types.Quantity `db:"quantity" json:"quantity"`
	ValuationRate types.Money    `db:"valuation_rate" json:"valuationRate"`

	LastMovementAt time.Time `db:"last_movement_at" json:"lastMovementAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}
