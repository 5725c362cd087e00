// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"workshop/internal/core/id"
	"workshop/internal/domain"
	"workshop/internal/domain/filter"
)

// DateLayout is the wire format of business dates.
const DateLayout = time.DateOnly

// Date is a calendar date that also accepts RFC 3339 timestamps.
type Date struct {
	time.Time
}

// UnmarshalJSON parses "2006-01-02" or an RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalJSON writes the date part only.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(DateLayout))
}

// ParseDate parses a business date. Empty input is an error.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// DatePtr returns the time of d, or nil when d is unset.
func DatePtr(d *Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// --- List ---

// ListQuery holds list parameters. Filters are "field:operator:value";
// "in" takes a comma separated value and null/not_null take none.
type ListQuery struct {
	Status  string   `form:"status"`
	OrderBy string   `form:"order_by"`
	Limit   int      `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int      `form:"offset" binding:"omitempty,min=0"`
	Filters []string `form:"filter"`
}

// ToFilter converts the query into a domain list filter.
func (q ListQuery) ToFilter() (domain.ListFilter, error) {
	f := domain.DefaultListFilter()
	f.Status = q.Status
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset

	for _, raw := range q.Filters {
		item, err := parseFilter(raw)
		if err != nil {
			return f, err
		}
		f.Filters = append(f.Filters, item)
	}
	return f, nil
}

func parseFilter(raw string) (filter.Item, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return filter.Item{}, fmt.Errorf("invalid filter %q, expected field:operator:value", raw)
	}
	item := filter.Item{Field: parts[0], Operator: filter.ComparisonType(parts[1])}
	switch item.Operator {
	case filter.IsNull, filter.IsNotNull:
		return item, nil
	case filter.InList:
		if len(parts) < 3 {
			return filter.Item{}, fmt.Errorf("filter %q needs a value", raw)
		}
		item.Value = strings.Split(parts[2], ",")
	case filter.Equal, filter.NotEqual, filter.Less, filter.Greater,
		filter.LessOrEqual, filter.GreaterOrEqual, filter.Contains:
		if len(parts) < 3 {
			return filter.Item{}, fmt.Errorf("filter %q needs a value", raw)
		}
		item.Value = parts[2]
	default:
		return filter.Item{}, fmt.Errorf("unknown filter operator %q", parts[1])
	}
	return item, nil
}

// HistoryQuery bounds a history listing.
type HistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// --- Responses ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
