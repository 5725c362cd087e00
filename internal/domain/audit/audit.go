// Package audit records document history: who changed what and when.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appctx "workshop/internal/core/context"
	"workshop/internal/core/entity"
	"workshop/internal/core/id"
)

// Action is the kind of audited operation.
type Action string

const (
	ActionCreate       Action = "create"
	ActionUpdate       Action = "update"
	ActionSubmit       Action = "submit"
	ActionCancel       Action = "cancel"
	ActionStatusChange Action = "status_change"
	ActionApprove      Action = "approve"
)

// Entry is one history record of a document.
type Entry struct {
	ID         id.ID           `db:"id" json:"id"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   id.ID           `db:"entity_id" json:"entity_id"`
	Action     Action          `db:"action" json:"action"`
	UserID     string          `db:"user_id" json:"user_id"`
	Message    string          `db:"message" json:"message"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Recorder stores history entries.
type Recorder interface {
	Log(ctx context.Context, entry Entry) error
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// StatusChange builds the entry written whenever a document status moves.
// The message reads "Status changed to <status> by <user> on <timestamp>".
func StatusChange(ctx context.Context, entityType string, entityID id.ID, status string, at time.Time) Entry {
	user := appctx.GetUserID(ctx)
	if user == "" {
		user = "Unknown"
	}
	changes, _ := json.Marshal(map[string]string{"status": status})
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     ActionStatusChange,
		UserID:     user,
		Message:    fmt.Sprintf("Status changed to %s by %s on %s", status, user, at.Format("2006-01-02 15:04:05")),
		Changes:    changes,
		CreatedAt:  at,
	}
}

// StampCreated sets CreatedBy and UpdatedBy from the acting user.
// Without a user in ctx the document is left untouched.
func StampCreated(ctx context.Context, doc *entity.BaseDocument) {
	if userID := appctx.GetUserID(ctx); userID != "" {
		doc.CreatedBy = userID
		doc.UpdatedBy = userID
	}
}

// StampUpdated sets UpdatedBy from the acting user.
func StampUpdated(ctx context.Context, doc *entity.BaseDocument) {
	if userID := appctx.GetUserID(ctx); userID != "" {
		doc.UpdatedBy = userID
	}
}
