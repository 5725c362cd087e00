package entity

import (
	"time"

	"workshop/internal/core/apperror"
)

// DocStatus is the submission state shared by all transactional documents.
// Transitions: Draft -> Submitted -> Cancelled. There is no way back.
type DocStatus int

const (
	DocStatusDraft     DocStatus = 0
	DocStatusSubmitted DocStatus = 1
	DocStatusCancelled DocStatus = 2
)

func (s DocStatus) String() string {
	switch s {
	case DocStatusDraft:
		return "Draft"
	case DocStatusSubmitted:
		return "Submitted"
	case DocStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Document is the base type for workshop transactions
// (work order billing, stock opname, stock adjustment).
type Document struct {
	BaseDocument

	// Number is the human-facing document number (e.g. "WOB-2026-00001")
	Number string `db:"number" json:"number"`

	// PostingDate is the business date of the document
	PostingDate time.Time `db:"posting_date" json:"posting_date"`

	DocStatus DocStatus `db:"docstatus" json:"docstatus"`

	Comment string `db:"comment" json:"comment,omitempty"`
}

// NewDocument creates a draft Document dated today.
func NewDocument() Document {
	return Document{
		BaseDocument: NewBaseDocument(),
		PostingDate:  time.Now().UTC().Truncate(24 * time.Hour),
	}
}

// CanModify checks if document fields may still change.
func (d *Document) CanModify(entity string) error {
	if d.DocStatus != DocStatusDraft {
		return apperror.NewInvalidStateTransition(entity, d.DocStatus.String(), "modify")
	}
	return nil
}

// MarkSubmitted moves a draft to Submitted.
func (d *Document) MarkSubmitted(entity string) error {
	if d.DocStatus != DocStatusDraft {
		return apperror.NewInvalidStateTransition(entity, d.DocStatus.String(), "submit")
	}
	d.DocStatus = DocStatusSubmitted
	d.Touch()
	return nil
}

// MarkCancelled moves a submitted document to Cancelled.
func (d *Document) MarkCancelled(entity string) error {
	if d.DocStatus != DocStatusSubmitted {
		return apperror.NewInvalidStateTransition(entity, d.DocStatus.String(), "cancel")
	}
	d.DocStatus = DocStatusCancelled
	d.Touch()
	return nil
}

func (d *Document) IsSubmitted() bool { return d.DocStatus == DocStatusSubmitted }
func (d *Document) IsCancelled() bool { return d.DocStatus == DocStatusCancelled }
