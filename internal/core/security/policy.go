// Package security provides authorization checks and period-closing policies.
package security

import (
	"context"
	"time"

	"workshop/internal/core/apperror"
)

// PeriodPolicy decides whether postings dated in a period may still change.
// Stock entries in a closed fiscal period cannot be cancelled.
type PeriodPolicy interface {
	// CanPost checks if a posting with the given date may be created
	CanPost(ctx context.Context, postingDate time.Time) error

	// CanCancel checks if a posting with the given date may be reversed
	CanCancel(ctx context.Context, postingDate time.Time) error

	// GetClosedPeriod returns the date until which the period is closed
	GetClosedPeriod(ctx context.Context) time.Time
}

// StrictPolicy forbids any changes before closedUntil.
type StrictPolicy struct {
	closedUntil time.Time
}

// NewStrictPolicy creates policy that forbids changes before closedUntil.
func NewStrictPolicy(closedUntil time.Time) *StrictPolicy {
	return &StrictPolicy{closedUntil: closedUntil}
}

func (p *StrictPolicy) CanPost(ctx context.Context, postingDate time.Time) error {
	if postingDate.Before(p.closedUntil) {
		return apperror.NewPeriodClosed(p.closedUntil.Format("2006-01-02"))
	}
	return nil
}

func (p *StrictPolicy) CanCancel(ctx context.Context, postingDate time.Time) error {
	return p.CanPost(ctx, postingDate)
}

func (p *StrictPolicy) GetClosedPeriod(ctx context.Context) time.Time {
	return p.closedUntil
}

// OpenPolicy allows all operations (development and tests).
type OpenPolicy struct{}

func (OpenPolicy) CanPost(ctx context.Context, postingDate time.Time) error   { return nil }
func (OpenPolicy) CanCancel(ctx context.Context, postingDate time.Time) error { return nil }
func (OpenPolicy) GetClosedPeriod(ctx context.Context) time.Time              { return time.Time{} }

// NewPolicy returns a StrictPolicy when closedUntil is set, otherwise OpenPolicy.
func NewPolicy(closedUntil time.Time) PeriodPolicy {
	if closedUntil.IsZero() {
		return OpenPolicy{}
	}
	return NewStrictPolicy(closedUntil)
}
