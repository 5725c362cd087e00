// Package filter describes list filters sent by clients.
package filter

// ComparisonType is the comparison applied to a field.
type ComparisonType string

const (
	Equal          ComparisonType = "eq"
	NotEqual       ComparisonType = "neq"
	Less           ComparisonType = "lt"
	Greater        ComparisonType = "gt"
	LessOrEqual    ComparisonType = "lte"
	GreaterOrEqual ComparisonType = "gte"
	InList         ComparisonType = "in"
	Contains       ComparisonType = "contains" // ILIKE %val%
	IsNull         ComparisonType = "null"
	IsNotNull      ComparisonType = "not_null"
)

// Item is a single filter row.
type Item struct {
	Field    string         `json:"field" binding:"required"` // snake_case column
	Operator ComparisonType `json:"operator" binding:"required"`
	Value    any            `json:"value"`
}
