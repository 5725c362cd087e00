package pricing

import (
	"time"
)

// Open-ended bounds are stored as NULL. Overlap checks substitute these
// sentinels so that a missing bound compares as "forever".
var (
	MinDate = time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Window is a validity period with optional bounds, both inclusive.
type Window struct {
	From *time.Time
	Upto *time.Time
}

// Contains reports whether date lies inside the window. This is the four-way
// rule: both bounds set and date inside; only From set and date >= From;
// only Upto set and date <= Upto; neither set.
func (w Window) Contains(date time.Time) bool {
	d := truncate(date)
	switch {
	case w.From != nil && w.Upto != nil:
		return !d.Before(truncate(*w.From)) && !d.After(truncate(*w.Upto))
	case w.From != nil:
		return !d.Before(truncate(*w.From))
	case w.Upto != nil:
		return !d.After(truncate(*w.Upto))
	default:
		return true
	}
}

// Overlaps reports whether two windows share at least one day.
func (w Window) Overlaps(o Window) bool {
	return !w.start().After(o.end()) && !o.start().After(w.end())
}

// Valid reports whether From is not after Upto.
func (w Window) Valid() bool {
	if w.From == nil || w.Upto == nil {
		return true
	}
	return !truncate(*w.From).After(truncate(*w.Upto))
}

func (w Window) start() time.Time {
	if w.From == nil {
		return MinDate
	}
	return truncate(*w.From)
}

func (w Window) end() time.Time {
	if w.Upto == nil {
		return MaxDate
	}
	return truncate(*w.Upto)
}

// Bounds returns the window with sentinels substituted for open ends.
func (w Window) Bounds() (start, end time.Time) {
	return w.start(), w.end()
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
