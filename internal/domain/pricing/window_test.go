package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestWindow_Contains(t *testing.T) {
	on := *day("2026-05-15")
	tests := []struct {
		name string
		w    Window
		want bool
	}{
		{"both bounds inside", Window{From: day("2026-05-01"), Upto: day("2026-05-31")}, true},
		{"both bounds on lower edge", Window{From: day("2026-05-15"), Upto: day("2026-05-31")}, true},
		{"both bounds on upper edge", Window{From: day("2026-05-01"), Upto: day("2026-05-15")}, true},
		{"both bounds outside", Window{From: day("2026-06-01"), Upto: day("2026-06-30")}, false},
		{"only from satisfied", Window{From: day("2026-01-01")}, true},
		{"only from in future", Window{From: day("2026-05-16")}, false},
		{"only upto satisfied", Window{Upto: day("2026-12-31")}, true},
		{"only upto expired", Window{Upto: day("2026-05-14")}, false},
		{"open", Window{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.Contains(on))
		})
	}
}

func TestWindow_ContainsIgnoresTimeOfDay(t *testing.T) {
	w := Window{Upto: day("2026-05-15")}
	assert.True(t, w.Contains(time.Date(2026, 5, 15, 23, 59, 0, 0, time.UTC)))
}

func TestWindow_Overlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Window
		want bool
	}{
		{"disjoint", Window{From: day("2026-01-01"), Upto: day("2026-01-31")}, Window{From: day("2026-02-01"), Upto: day("2026-02-28")}, false},
		{"touching", Window{From: day("2026-01-01"), Upto: day("2026-01-31")}, Window{From: day("2026-01-31")}, true},
		{"open vs bounded", Window{}, Window{From: day("2026-02-01"), Upto: day("2026-02-28")}, true},
		{"open upper vs earlier", Window{From: day("2026-03-01")}, Window{Upto: day("2026-02-28")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestWindow_Valid(t *testing.T) {
	assert.True(t, Window{From: day("2026-01-01"), Upto: day("2026-01-01")}.Valid())
	assert.False(t, Window{From: day("2026-02-01"), Upto: day("2026-01-01")}.Valid())
	assert.True(t, Window{From: day("2026-02-01")}.Valid())
}
