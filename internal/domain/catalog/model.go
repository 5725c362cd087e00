package catalog

import (
	"time"

	"workshop/internal/core/types"
)

// DefaultUOM is reported for parts without a unit.
const DefaultUOM = "Pcs"

// Part is a spare part stocked by the workshop. ItemCode links it to the
// stock item used for prices, balances and stock entries.
type Part struct {
	Code          string      `db:"code" json:"part"`
	PartName      string      `db:"part_name" json:"part_name"`
	ItemCode      *string     `db:"item_code" json:"item_code,omitempty"`
	Barcode       *string     `db:"barcode" json:"barcode,omitempty"`
	UOM           *string     `db:"uom" json:"uom,omitempty"`
	ValuationRate types.Money `db:"valuation_rate" json:"valuation_rate"`
	Disabled      bool        `db:"disabled" json:"disabled"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// Item returns the linked item code or "".
func (p *Part) Item() string {
	if p == nil || p.ItemCode == nil {
		return ""
	}
	return *p.ItemCode
}

// UnitOfMeasure returns the part's uom or DefaultUOM.
func (p *Part) UnitOfMeasure() string {
	if p.UOM == nil || *p.UOM == "" {
		return DefaultUOM
	}
	return *p.UOM
}

// JobType is a labour operation. OPL (outsourced) jobs are performed by a vendor.
type JobType struct {
	Code        string      `db:"code" json:"job_type"`
	JobName     string      `db:"job_name" json:"job_name"`
	ItemCode    *string     `db:"item_code" json:"item_code,omitempty"`
	IsOPL       bool        `db:"is_opl" json:"is_opl"`
	DefaultRate types.Money `db:"default_rate" json:"default_rate"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// ServicePackage bundles jobs and parts sold at one price.
type ServicePackage struct {
	Code        string    `db:"code" json:"service_package"`
	PackageName string    `db:"package_name" json:"package_name"`
	ItemCode    *string   `db:"item_code" json:"item_code,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BarcodeMatch is the result of a barcode lookup.
type BarcodeMatch struct {
	Part     string `json:"part"`
	PartName string `json:"part_name"`
	UOM      string `json:"uom"`
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
