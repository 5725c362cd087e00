package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/entity"
	"workshop/internal/core/id"
	"workshop/internal/core/types"
)

func m(s string) types.Money { return types.MustMoney(s) }

func sampleBilling() *Billing {
	b := New(id.New())
	b.JobTypes = []JobLine{{JobType: "JT-01", Hours: m("2"), Rate: m("100"), Amount: m("999")}}
	b.ServicePackages = []PackageLine{{ServicePackage: "SP-01", Quantity: m("1"), Rate: m("250.50")}}
	b.Parts = []PartLine{{Part: "P-01", Quantity: m("3"), Rate: m("70")}}
	b.ExternalServices = []ExternalLine{{ServiceName: "Towing", Rate: m("125.25")}}
	b.DiscountAmount = m("10")
	return b
}

var vat = []ChargeRow{
	{ChargeType: ChargeOnNetTotal, AccountHead: "VAT", Rate: m("11")},
	{ChargeType: "Actual", AccountHead: "Stamp", Rate: m("6000")},
}

func TestCalculateTotals(t *testing.T) {
	b := sampleBilling()
	CalculateTotals(b, vat)

	assert.True(t, m("200").Equal(b.JobTypes[0].Amount), "stored amount is recomputed")
	assert.True(t, m("450.50").Equal(b.TotalServicesAmount))
	assert.True(t, m("210").Equal(b.TotalPartsAmount))
	assert.True(t, m("125.25").Equal(b.TotalExternalServicesAmount))
	assert.True(t, m("785.75").Equal(b.Subtotal))
	assert.True(t, m("86.4325").Equal(b.TaxAmount), "only On Net Total rows are taxed")
	assert.True(t, m("862.1825").Equal(b.GrandTotal))
	assert.True(t, m("862").Equal(b.RoundedTotal))
}

func TestCalculateTotals_GrandTotalIdentity(t *testing.T) {
	cases := []struct {
		name     string
		discount string
		charges  []ChargeRow
	}{
		{"no tax", "0", nil},
		{"tax and discount", "35.10", vat},
		{"discount above subtotal", "5000", vat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := sampleBilling()
			b.DiscountAmount = m(tc.discount)
			CalculateTotals(b, tc.charges)

			assert.True(t, b.Subtotal.Add(b.TaxAmount).Sub(b.DiscountAmount).Equal(b.GrandTotal))
			assert.True(t, b.GrandTotal.RoundBank(0).Equal(b.RoundedTotal))
		})
	}
}

func TestCalculateTotals_Idempotent(t *testing.T) {
	b := sampleBilling()
	b.Payments = []Payment{{ModeOfPayment: "Cash", Amount: m("100")}}
	CalculateTotals(b, vat)
	first := *b

	CalculateTotals(b, vat)
	assert.True(t, first.GrandTotal.Equal(b.GrandTotal))
	assert.True(t, first.TotalServicesAmount.Equal(b.TotalServicesAmount))
	assert.True(t, first.PaymentAmount.Equal(b.PaymentAmount))
	assert.True(t, first.BalanceAmount.Equal(b.BalanceAmount))
}

func TestRoundedTotal_HalfToEven(t *testing.T) {
	b := New(id.New())
	b.ExternalServices = []ExternalLine{{ServiceName: "A", Rate: m("100.5")}}
	CalculateTotals(b, nil)
	assert.True(t, m("100").Equal(b.RoundedTotal))

	b.ExternalServices[0].Rate = m("101.5")
	CalculateTotals(b, nil)
	assert.True(t, m("102").Equal(b.RoundedTotal))
}

func TestDownPaymentAndBalance(t *testing.T) {
	b := New(id.New())
	b.ExternalServices = []ExternalLine{{ServiceName: "A", Rate: m("1000")}}
	b.Payments = []Payment{{ModeOfPayment: "Cash", Amount: m("300")}}

	b.DownPaymentType = DownPaymentPercentage
	b.DownPaymentAmount = m("20")
	CalculateTotals(b, nil)
	assert.True(t, m("200").Equal(b.DownPayment()))
	assert.True(t, m("800").Equal(b.RemainingBalance))
	assert.True(t, m("500").Equal(b.BalanceAmount))

	b.DownPaymentType = DownPaymentAmount
	b.DownPaymentAmount = m("150")
	CalculateTotals(b, nil)
	assert.True(t, m("850").Equal(b.RemainingBalance))
	assert.True(t, m("550").Equal(b.BalanceAmount))
}

func TestUpdatePaymentStatus(t *testing.T) {
	cases := []struct {
		name     string
		payments []string
		down     string
		want     PaymentStatus
	}{
		{"nothing paid", nil, "0", PaymentUnpaid},
		{"down payment only", nil, "100", PaymentPartiallyPaid},
		{"partial", []string{"400"}, "0", PaymentPartiallyPaid},
		{"exact", []string{"600", "400"}, "0", PaymentPaid},
		{"down plus payments", []string{"500"}, "500", PaymentPaid},
		{"overpaid", []string{"1200"}, "0", PaymentPaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New(id.New())
			b.ExternalServices = []ExternalLine{{ServiceName: "A", Rate: m("1000")}}
			for _, p := range tc.payments {
				b.Payments = append(b.Payments, Payment{ModeOfPayment: "Cash", Amount: m(p)})
			}
			b.DownPaymentAmount = m(tc.down)
			CalculateTotals(b, nil)
			UpdatePaymentStatus(b)
			assert.Equal(t, tc.want, b.PaymentStatus)
		})
	}
}

func TestSetStatus_Priority(t *testing.T) {
	today := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	cases := []struct {
		name     string
		doc      entity.DocStatus
		workflow string
		payment  PaymentStatus
		due      *time.Time
		want     Status
	}{
		{"draft wins", entity.DocStatusDraft, WorkflowCompleted, PaymentPaid, &yesterday, StatusDraft},
		{"cancelled", entity.DocStatusCancelled, WorkflowCompleted, PaymentPaid, nil, StatusCancelled},
		{"workflow completed", entity.DocStatusSubmitted, WorkflowCompleted, PaymentUnpaid, &yesterday, StatusCompleted},
		{"paid", entity.DocStatusSubmitted, "", PaymentPaid, &yesterday, StatusFullyPaid},
		{"partial beats overdue", entity.DocStatusSubmitted, "", PaymentPartiallyPaid, &yesterday, StatusPartiallyPaid},
		{"overdue", entity.DocStatusSubmitted, "", PaymentUnpaid, &yesterday, StatusOverdue},
		{"due today is not overdue", entity.DocStatusSubmitted, "", PaymentUnpaid, &today, StatusPendingPayment},
		{"pending", entity.DocStatusSubmitted, "", PaymentUnpaid, &tomorrow, StatusPendingPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := New(id.New())
			b.DocStatus = tc.doc
			b.WorkflowState = tc.workflow
			b.PaymentStatus = tc.payment
			b.DueDate = tc.due
			SetStatus(b, today)
			assert.Equal(t, tc.want, b.Status)
		})
	}
}

func TestValidate(t *testing.T) {
	b := New(id.Nil())
	require.Error(t, b.Validate(context.Background()))

	b = New(id.New())
	b.Payments = []Payment{{ModeOfPayment: "Cash", Amount: m("0")}}
	require.Error(t, b.Validate(context.Background()))
}

func TestCalculateTotals_ReturnRowsAreNegative(t *testing.T) {
	b := New(id.New())
	b.IsReturn = true
	b.ReturnItems = []ReturnLine{
		{Quantity: m("2"), Rate: m("70"), Amount: m("140")},
		{Quantity: m("1"), Rate: m("15.5")},
	}
	CalculateTotals(b, vat)

	assert.True(t, m("-140").Equal(b.ReturnItems[0].Amount), "stored amount is recomputed")
	assert.True(t, m("-155.5").Equal(b.TotalReturnAmount))
	assert.True(t, m("-155.5").Equal(b.Subtotal))
	assert.True(t, m("-17.105").Equal(b.TaxAmount))
	assert.True(t, m("-172.605").Equal(b.GrandTotal))
}
