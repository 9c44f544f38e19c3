// ABOUTME: Decision ledger data model
// ABOUTME: One role-tagged decision row per (version, user, role), keyed by identifier

package decision

import (
	"time"

	"github.com/nainya/policystore/pkg/policy"
)

// Outcome of a single reviewer or approver decision
type Outcome string

const (
	OutcomePending  Outcome = "PENDING"
	OutcomeAccepted Outcome = "ACCEPTED"
	OutcomeRejected Outcome = "REJECTED"
)

// Decided reports whether the outcome is terminal
func (o Outcome) Decided() bool {
	return o == OutcomeAccepted || o == OutcomeRejected
}

// Decision is one eligible voter's decision on one file version. Rows are
// seeded PENDING when a version is created (or a voter is added) and move
// exactly once to a terminal outcome.
type Decision struct {
	DecisionID string
	PolicyID   string
	VersionID  string
	UserID     string
	Role       policy.Role
	Outcome    Outcome
	Reason     string // present iff Outcome is REJECTED
	CreatedAt  time.Time
	DecidedAt  time.Time // zero while PENDING
}
