package billing

import (
	"time"

	"workshop/internal/core/entity"
	"workshop/internal/core/types"
)

// CalculateTotals recomputes every line amount and document total in place.
// Stored amounts are never trusted, so calling it twice yields the same totals.
// Only "On Net Total" charge rows contribute to TaxAmount. Return rows carry
// negative amounts.
func CalculateTotals(b *Billing, charges []ChargeRow) {
	services := types.Zero()
	for i := range b.JobTypes {
		l := &b.JobTypes[i]
		l.Amount = l.Hours.Mul(l.Rate)
		services = services.Add(l.Amount)
	}
	for i := range b.ServicePackages {
		l := &b.ServicePackages[i]
		l.Amount = l.Quantity.Mul(l.Rate)
		services = services.Add(l.Amount)
	}
	b.TotalServicesAmount = services

	parts := types.Zero()
	for i := range b.Parts {
		l := &b.Parts[i]
		l.Amount = l.Quantity.Mul(l.Rate)
		parts = parts.Add(l.Amount)
	}
	b.TotalPartsAmount = parts

	external := types.Zero()
	for i := range b.ExternalServices {
		l := &b.ExternalServices[i]
		l.Amount = l.Rate
		external = external.Add(l.Amount)
	}
	b.TotalExternalServicesAmount = external

	returned := types.Zero()
	for i := range b.ReturnItems {
		l := &b.ReturnItems[i]
		l.Amount = l.Quantity.Mul(l.Rate).Neg()
		returned = returned.Add(l.Amount)
	}
	b.TotalReturnAmount = returned

	b.Subtotal = types.Sum(services, parts, external, returned)

	tax := types.Zero()
	for _, c := range charges {
		if c.ChargeType == ChargeOnNetTotal {
			tax = tax.Add(types.Percent(b.Subtotal, c.Rate))
		}
	}
	b.TaxAmount = tax

	b.GrandTotal = b.Subtotal.Add(b.TaxAmount).Sub(b.DiscountAmount)
	b.RoundedTotal = types.RoundHalfEven(b.GrandTotal, 0)

	paid := types.Zero()
	for _, p := range b.Payments {
		paid = paid.Add(p.Amount)
	}
	b.PaymentAmount = paid

	b.RemainingBalance = b.GrandTotal.Sub(b.DownPayment())
	b.BalanceAmount = b.RemainingBalance.Sub(b.PaymentAmount)
}

// DownPayment returns the down payment in money:
// a percentage of GrandTotal or the fixed amount.
func (b *Billing) DownPayment() types.Money {
	if b.DownPaymentType == DownPaymentPercentage {
		return types.Percent(b.GrandTotal, b.DownPaymentAmount)
	}
	return b.DownPaymentAmount
}

// UpdatePaymentStatus derives PaymentStatus from payments plus down payment.
func UpdatePaymentStatus(b *Billing) {
	totalPaid := b.PaymentAmount.Add(b.DownPayment())
	switch {
	case !totalPaid.IsPositive():
		b.PaymentStatus = PaymentUnpaid
	case totalPaid.LessThan(b.GrandTotal):
		b.PaymentStatus = PaymentPartiallyPaid
	default:
		b.PaymentStatus = PaymentPaid
	}
}

// SetStatus derives Status by priority: draft, cancelled, workflow completed,
// paid, partially paid, overdue against today, pending payment.
func SetStatus(b *Billing, today time.Time) {
	switch {
	case b.DocStatus == entity.DocStatusDraft:
		b.Status = StatusDraft
	case b.DocStatus == entity.DocStatusCancelled:
		b.Status = StatusCancelled
	case b.WorkflowState == WorkflowCompleted:
		b.Status = StatusCompleted
	case b.PaymentStatus == PaymentPaid:
		b.Status = StatusFullyPaid
	case b.PaymentStatus == PaymentPartiallyPaid:
		b.Status = StatusPartiallyPaid
	case b.DueDate != nil && truncateDay(*b.DueDate).Before(truncateDay(today)):
		b.Status = StatusOverdue
	default:
		b.Status = StatusPendingPayment
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
