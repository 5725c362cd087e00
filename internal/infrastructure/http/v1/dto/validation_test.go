package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop/internal/core/types"
)

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, registerOn(v))
	return v
}

func rules(err error) map[string]string {
	out := map[string]string{}
	for _, fe := range ValidationDetails(err) {
		out[fe.Field] = fe.Rule
	}
	return out
}

func TestValidation_DecimalRules(t *testing.T) {
	v := newValidator(t)

	ok := OpnameRequest{
		Warehouse: "Main",
		Items:     []OpnameItemRequest{{Part: "P-1", QtyCounted: types.Zero()}},
	}
	assert.NoError(t, v.Struct(ok))

	bad := BillingFields{
		DiscountAmount: types.MustMoney("-1"),
		Payments:       []PaymentRequest{{ModeOfPayment: "Cash", Amount: types.Zero()}},
	}
	got := rules(v.Struct(bad))
	assert.Equal(t, "dec_gte0", got["discount_amount"])
	assert.Equal(t, "dec_gt0", got["payment_details[0].amount"])
}

func TestValidation_ReferenceKind(t *testing.T) {
	v := newValidator(t)

	req := ServicePriceRequest{ReferenceType: "Service Package", ReferenceName: "SP-1", PriceList: "Std", Rate: types.MustMoney("1")}
	assert.NoError(t, v.Struct(req))

	req.ReferenceType = "invoice"
	assert.Equal(t, map[string]string{"reference_type": "reference"}, rules(v.Struct(req)))
}

func TestValidation_OpnameItemsRequired(t *testing.T) {
	v := newValidator(t)

	got := rules(v.Struct(OpnameRequest{PostingTime: "25:00"}))
	assert.Equal(t, "required", got["warehouse"])
	assert.Equal(t, "required", got["items"])
	assert.Equal(t, "datetime", got["posting_time"])
}

func TestValidationDetails_IgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, ValidationDetails(assert.AnError))
}

func TestDescribe(t *testing.T) {
	msg := Describe([]FieldError{{Field: "rate", Rule: "dec_gte0"}, {Field: "currency", Rule: "len", Param: "3"}})
	assert.Equal(t, "rate: dec_gte0; currency: len=3", msg)
}
