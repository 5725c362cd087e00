// Package numerator provides domain contracts for document auto-numbering.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict increments the sequence row for every number.
	// Sequential numbers without gaps; used for billings and sales invoices.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers in memory.
	// May leave gaps after a restart; used for stock entries.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached (default 50).
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "WOB", "PSO")
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns yearly numbering "PREFIX-YYYY-00001".
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Document prefixes.
const (
	PrefixWorkOrder      = "WO"
	PrefixBilling        = "WOB"
	PrefixSalesInvoice   = "SINV"
	PrefixOpname         = "PSO"
	PrefixAdjustment     = "PSA"
	PrefixStockEntry     = "STE"
	PrefixMaterialIssue  = "WMI"
	PrefixMaterialReturn = "RMT"
)
