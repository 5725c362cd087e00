package billing

import (
	"fmt"
	"strings"
	"time"

	"workshop/internal/core/apperror"
	appctx "workshop/internal/core/context"
	"workshop/internal/core/types"
)

// DefaultApproverRole is used when no approver roles are configured.
const DefaultApproverRole = "Accountant"

// ApprovalPolicy is the discount sign-off configuration.
type ApprovalPolicy struct {
	Threshold     types.Money
	ApproverRoles []string
}

// ParseApproverRoles splits a comma or newline separated role list.
// An empty list falls back to DefaultApproverRole.
func ParseApproverRoles(raw string) []string {
	var roles []string
	for _, r := range strings.FieldsFunc(raw, func(c rune) bool { return c == ',' || c == '\n' }) {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 {
		return []string{DefaultApproverRole}
	}
	return roles
}

// RequiresApproval reports whether the discount exceeds the threshold.
func (p ApprovalPolicy) RequiresApproval(b *Billing) bool {
	return b.DiscountAmount.GreaterThan(p.Threshold)
}

// CanApprove reports whether actorRoles include an approver role.
func (p ApprovalPolicy) CanApprove(actorRoles []string) bool {
	return appctx.HasAnyRole(actorRoles, p.ApproverRoles)
}

// ValidateDiscountApproval fails with ApprovalRequired when the discount is
// above the threshold, the actor holds no approver role and the billing is
// not already Approved. It has no side effects.
func ValidateDiscountApproval(b *Billing, policy ApprovalPolicy, actorRoles []string) error {
	if !policy.RequiresApproval(b) {
		return nil
	}
	if policy.CanApprove(actorRoles) || b.ApprovalStatus == ApprovalApproved {
		return nil
	}
	return apperror.NewApprovalRequired(fmt.Sprintf(
		"Discount exceeds allowed threshold of %s. Requires approval from roles: %s",
		policy.Threshold.String(), strings.Join(policy.ApproverRoles, ", "))).
		WithDetail("discount_amount", b.DiscountAmount.String()).
		WithDetail("threshold", policy.Threshold.String())
}

// UpdateApprovalFields keeps approval fields consistent with the discount:
// a gated discount without a status becomes Pending Approval, an Approved
// billing gets approver and timestamp once, anything else has them cleared.
func UpdateApprovalFields(b *Billing, policy ApprovalPolicy, user string, now time.Time) {
	if b.ApprovalStatus == ApprovalNone && policy.RequiresApproval(b) {
		b.ApprovalStatus = ApprovalPending
	}
	if b.ApprovalStatus != ApprovalApproved {
		b.ApprovedBy = ""
		b.ApprovedOn = nil
		return
	}
	if b.ApprovedBy == "" {
		b.ApprovedBy = user
		b.ApprovedOn = &now
	}
}

// Approve marks the billing Approved by approver at now.
func (b *Billing) Approve(approver string, now time.Time) {
	b.ApprovalStatus = ApprovalApproved
	b.ApprovedBy = approver
	b.ApprovedOn = &now
}
