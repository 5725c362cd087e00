package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactories_CodeAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"missing field", NewMissingRequiredField("warehouse"), CodeMissingRequiredField, http.StatusBadRequest},
		{"state", NewInvalidStateTransition("Part Stock Opname", "Adjusted", "adjust"), CodeInvalidStateTransition, http.StatusConflict},
		{"reference", NewReferenceNotFound("Part", "P-1"), CodeReferenceNotFound, http.StatusNotFound},
		{"mismatch", NewReferenceMismatch("x"), CodeReferenceMismatch, http.StatusUnprocessableEntity},
		{"quantity", NewQuantityViolation("x"), CodeQuantityViolation, http.StatusUnprocessableEntity},
		{"permission", NewPermissionDenied("x"), CodePermissionDenied, http.StatusForbidden},
		{"approval", NewApprovalRequired("x"), CodeApprovalRequired, http.StatusUnprocessableEntity},
		{"posting", NewDownstreamPostingFailure("stock entry", errors.New("boom")), CodeDownstreamPostingFailure, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestMissingRequiredField_Message(t *testing.T) {
	err := NewMissingRequiredField("customer", "service_advisor")
	assert.Equal(t, "Mandatory fields required: customer, service_advisor", err.Message)
	assert.Equal(t, []string{"customer", "service_advisor"}, err.Details["fields"])
}

func TestDownstreamPostingFailure_KeepsOriginalMessage(t *testing.T) {
	cause := errors.New("negative stock for item X")
	err := NewDownstreamPostingFailure("Material Issue", cause)

	assert.Contains(t, err.Message, "negative stock for item X")
	assert.ErrorIs(t, err, cause)
}

func TestAsAppError_ThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("submit billing: %w", NewApprovalRequired("discount"))

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeApprovalRequired, appErr.Code)
	assert.True(t, HasCode(wrapped, CodeApprovalRequired))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewNotFound("Work Order", "WO-1")))
	assert.False(t, IsNotFound(NewReferenceNotFound("Part", "P-1")))
	assert.False(t, IsNotFound(nil))
}
