package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appctx "workshop/internal/core/context"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
)

func TestStatusChange_Message(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "cashier@example.com"})
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	e := StatusChange(ctx, "Work Order Billing", id.New(), "Pending Payment", at)

	assert.Equal(t, ActionStatusChange, e.Action)
	assert.Equal(t, "Status changed to Pending Payment by cashier@example.com on 2026-03-01 09:30:00", e.Message)
	assert.JSONEq(t, `{"status":"Pending Payment"}`, string(e.Changes))
}

func TestStatusChange_UnknownUser(t *testing.T) {
	e := StatusChange(context.Background(), "Work Order Billing", id.New(), "Cancelled", time.Now())
	assert.Equal(t, "Unknown", e.UserID)
}

func TestStamp(t *testing.T) {
	ctx := appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "advisor"})
	doc := entity.NewBaseDocument()

	StampCreated(ctx, &doc)
	assert.Equal(t, "advisor", doc.CreatedBy)
	assert.Equal(t, "advisor", doc.UpdatedBy)

	StampUpdated(appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "manager"}), &doc)
	assert.Equal(t, "advisor", doc.CreatedBy)
	assert.Equal(t, "manager", doc.UpdatedBy)
}
