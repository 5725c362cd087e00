package billing

import "workshop/internal/core/types"

// Config holds billing settings.
type Config struct {
	Approval ApprovalPolicy

	// DueDays is added to the posting date when no due date is given.
	DueDays int

	DefaultCurrency     string
	ExternalServiceItem string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Approval: ApprovalPolicy{
			Threshold:     types.Zero(),
			ApproverRoles: []string{DefaultApproverRole},
		},
		DueDays: 30,
	}
}
