// Package domain holds types shared by the workshop domain services.
package domain

import (
	"workshop/internal/domain/filter"
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Status filters by document status (empty means any)
	Status string

	// Filters are arbitrary column filters validated against a whitelist
	Filters []filter.Item

	// OrderBy specifies sorting (e.g., "posting_date", "-created_at")
	OrderBy string

	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
