package workorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/apperror"
	"workshop/internal/core/types"
)

func completeOrder() *WorkOrder {
	now := time.Now()
	w := NewWorkOrder("CUST-001", "B 1234 XY")
	w.ServiceDate = &now
	w.ServiceAdvisor = "advisor@example.com"
	w.Parts = []PartLine{{Part: "P-001", Quantity: types.Qty(2), Rate: types.MustMoney("50"), Amount: types.MustMoney("100")}}
	return w
}

func TestValidate_NewPurchaseNeedsPO(t *testing.T) {
	w := completeOrder()
	w.Parts[0].Source = PartSourceNewPurchase

	err := w.Validate(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingRequiredField))

	w.Parts[0].PurchaseOrder = "PO-0001"
	assert.NoError(t, w.Validate(context.Background()))
}

func TestValidate_OPLNeedsVendor(t *testing.T) {
	w := completeOrder()
	w.JobTypes = []JobLine{{JobType: "JT-PAINT", IsOPL: true}}

	err := w.Validate(context.Background())
	require.Error(t, err)
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, "JT-PAINT", appErr.Details["job_type"])

	w.JobTypes[0].Vendor = "Body Shop Ltd"
	assert.NoError(t, w.Validate(context.Background()))
}

func TestValidateForSubmit(t *testing.T) {
	assert.NoError(t, completeOrder().ValidateForSubmit(context.Background()))

	missing := completeOrder()
	missing.Customer = ""
	missing.ServiceAdvisor = ""
	err := missing.ValidateForSubmit(context.Background())
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingRequiredField, appErr.Code)
	assert.Equal(t, []string{"customer", "service_advisor"}, appErr.Details["fields"])

	empty := completeOrder()
	empty.Parts = nil
	assert.True(t, apperror.HasCode(empty.ValidateForSubmit(context.Background()), apperror.CodeValidation))

	noRate := completeOrder()
	noRate.Parts[0].Rate = types.Zero()
	assert.True(t, apperror.HasCode(noRate.ValidateForSubmit(context.Background()), apperror.CodeQuantityViolation))
}

func TestCalculateTotal(t *testing.T) {
	w := completeOrder()
	w.JobTypes = []JobLine{{JobType: "JT-01", Amount: types.MustMoney("200")}}
	w.ExternalServices = []ExternalLine{{ServiceName: "Towing", Amount: types.MustMoney("75")}}
	w.CalculateTotal()
	assert.True(t, types.MustMoney("375").Equal(w.TotalAmount))
}

func TestTransitionTo(t *testing.T) {
	w := completeOrder()
	require.NoError(t, w.TransitionTo(StatusInProgress))
	require.NoError(t, w.TransitionTo(StatusCompleted))
	assert.True(t, w.Status.Billable())

	err := w.TransitionTo(StatusDraft)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidStateTransition))
}

func TestApplyConsumption(t *testing.T) {
	w := completeOrder()
	w.Parts = append(w.Parts, PartLine{Part: "P-002", Quantity: types.Qty(4)})

	w.ApplyConsumption([]ConsumedDelta{
		{Part: "P-001", Qty: types.Qty(1)},
		{Part: "P-002", Qty: types.Qty(3)},
		{Part: "P-404", Qty: types.Qty(9)},
	})
	assert.True(t, types.Qty(1).Equal(w.ConsumedQty("P-001")))
	assert.True(t, types.Qty(1).Equal(w.Parts[0].RemainingQty()))
	assert.True(t, types.Qty(1).Equal(w.Parts[1].RemainingQty()))

	w.ApplyConsumption([]ConsumedDelta{{Part: "P-002", Qty: types.Qty(-5)}})
	assert.True(t, w.ConsumedQty("P-002").IsZero(), "consumed quantity floors at zero")
	assert.True(t, w.ConsumedQty("P-404").IsZero())
}

func TestAcceptsMaterial(t *testing.T) {
	w := completeOrder()
	err := w.AcceptsMaterial()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "draft work order")

	require.NoError(t, w.MarkSubmitted(EntityName))
	assert.NoError(t, w.AcceptsMaterial())

	w.Status = StatusCancelled
	assert.Error(t, w.AcceptsMaterial())
}
