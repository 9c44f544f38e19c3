// ABOUTME: Aggregation engine result types
// ABOUTME: Tally counts one stage's decisions; Result reports the evaluation outcome

package approval

import (
	"github.com/nainya/policystore/pkg/decision"
	"github.com/nainya/policystore/pkg/policy"
	"github.com/nainya/policystore/pkg/version"
)

// Verdict of a resolved stage
type Verdict string

const (
	VerdictPending Verdict = "PENDING"
	VerdictAccept  Verdict = "ACCEPT"
	VerdictReject  Verdict = "REJECT"
)

// Tally counts the decisions of one (version, role) stage
type Tally struct {
	Total    int
	Accepted int
	Rejected int
	Pending  int
}

// TallyDecisions counts a stage's decision set
func TallyDecisions(decs []*decision.Decision) Tally {
	t := Tally{Total: len(decs)}
	for _, d := range decs {
		switch d.Outcome {
		case decision.OutcomeAccepted:
			t.Accepted++
		case decision.OutcomeRejected:
			t.Rejected++
		default:
			t.Pending++
		}
	}
	return t
}

// Resolved reports whether every eligible voter has cast a terminal decision.
// A stage with zero eligible voters never resolves.
func (t Tally) Resolved() bool {
	return t.Total > 0 && t.Pending == 0
}

// Verdict applies the quorum rule: ACCEPT on a strict majority of accepts,
// REJECT otherwise. An exact 50/50 split is a REJECT.
func (t Tally) Verdict() Verdict {
	if !t.Resolved() {
		return VerdictPending
	}
	if 2*t.Accepted > t.Total {
		return VerdictAccept
	}
	return VerdictReject
}

// AcceptRatio returns accepted/total as a real number, 0 for an empty stage
func (t Tally) AcceptRatio() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Accepted) / float64(t.Total)
}

// Result reports one evaluation of a stage against the current decision set
type Result struct {
	VersionID string
	Role      policy.Role
	Tally     Tally
	Resolved  bool
	Verdict   Verdict

	// Transitioned is true when the evaluation applied a verdict transition
	// to the version; Status then holds the new status
	Transitioned bool
	Status       version.Status
}
