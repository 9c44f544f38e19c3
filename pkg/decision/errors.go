package decision

import "errors"

var (
	// ErrNotEligible indicates the user holds no matching membership for the role
	ErrNotEligible = errors.New("decision: user is not eligible to decide in this role")

	// ErrAlreadyDecided indicates the decision for (version, user, role) is final
	ErrAlreadyDecided = errors.New("decision: decision already made")

	// ErrMissingReason indicates a rejection without a reason
	ErrMissingReason = errors.New("decision: rejection requires a reason")

	// ErrApprovalNotOpen indicates an approver decision before reviewer acceptance
	ErrApprovalNotOpen = errors.New("decision: approver stage is not open until reviewers accept")
)
