// ABOUTME: Policy file version data model and status state machine
// ABOUTME: Versions reference their policy by identifier and order by sequence number

package version

import "time"

// Status of a policy file version in the approval lifecycle
type Status string

const (
	// StatusCreated is the initial state of every new version
	StatusCreated Status = "CREATED"

	// StatusUnderReview is recorded once the first reviewer decision lands
	// while the reviewer quorum is still unresolved
	StatusUnderReview Status = "UNDER_REVIEW"

	// StatusRejectedByReviewers is terminal: the reviewer quorum rejected
	StatusRejectedByReviewers Status = "REJECTED_BY_REVIEWERS"

	// StatusUnderApproval means the reviewer quorum accepted and the
	// approver stage is open
	StatusUnderApproval Status = "UNDER_APPROVAL"

	// StatusApproved is terminal: the approver quorum accepted
	StatusApproved Status = "APPROVED"

	// StatusRejected is terminal: the approver quorum rejected
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further decisions can move this version
func (s Status) Terminal() bool {
	switch s {
	case StatusRejectedByReviewers, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Valid reports whether the status is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusUnderReview, StatusRejectedByReviewers,
		StatusUnderApproval, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// FileVersion is one version of a policy's file. Seq orders versions within
// a policy; the latest version is the one with the highest Seq.
type FileVersion struct {
	VersionID string
	PolicyID  string
	Seq       uint64

	Label    string // version label, e.g. "1.2"
	FileRef  string // blob store reference, bytes live with the collaborator
	FileName string
	FileType string

	Status          Status
	FinalAcceptance bool // reviewer quorum passed
	FinalApproval   bool // approver quorum passed

	CreatedAt      time.Time
	ApprovedAt     time.Time // zero until StatusApproved
	EffectiveStart time.Time
	EffectiveEnd   time.Time // zero means open-ended
}
