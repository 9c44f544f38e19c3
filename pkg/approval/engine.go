// ABOUTME: Approval aggregation engine: quorum evaluation and status transitions
// ABOUTME: Stateless over the ledger; every evaluation re-reads the full decision set

package approval

import (
	"time"

	"github.com/nainya/policystore/pkg/decision"
	"github.com/nainya/policystore/pkg/policy"
	"github.com/nainya/policystore/pkg/storage"
	"github.com/nainya/policystore/pkg/version"
)

// Engine computes quorum outcomes from the decision ledger and drives the
// file version state machine. It holds no state of its own: the verdict is a
// pure function of the current decision set, and the caller provides the
// transaction that makes the decision write and the transition one unit.
type Engine struct {
	versions  *version.Store
	decisions *decision.Store
}

// NewEngine creates a new aggregation engine
func NewEngine(versions *version.Store, decisions *decision.Store) *Engine {
	return &Engine{versions: versions, decisions: decisions}
}

// Evaluate re-runs stage resolution for (version, role) against the decision
// set visible in tx and applies any resulting transition to the version row.
// The passed version is mutated in place when a transition applies.
func (e *Engine) Evaluate(tx *storage.KVTX, v *version.FileVersion, role policy.Role) (*Result, error) {
	decs, err := e.decisions.List(tx, v.VersionID, role)
	if err != nil {
		return nil, err
	}

	tally := TallyDecisions(decs)
	res := &Result{
		VersionID: v.VersionID,
		Role:      role,
		Tally:     tally,
		Resolved:  tally.Resolved(),
		Verdict:   tally.Verdict(),
		Status:    v.Status,
	}

	switch role {
	case policy.RoleReviewer:
		return res, e.evaluateReviewers(tx, v, res)
	case policy.RoleApprover:
		return res, e.evaluateApprovers(tx, v, res)
	default:
		return res, nil
	}
}

// evaluateReviewers resolves the reviewer stage. Acceptance opens the
// approver stage; rejection is terminal and the approver stage never runs.
func (e *Engine) evaluateReviewers(tx *storage.KVTX, v *version.FileVersion, res *Result) error {
	if v.Status.Terminal() || v.FinalAcceptance {
		return nil
	}

	if !res.Resolved {
		// Not a verdict: just surface that review is in progress
		if v.Status == version.StatusCreated && res.Tally.Pending < res.Tally.Total {
			v.Status = version.StatusUnderReview
			res.Status = v.Status
			return e.versions.Put(tx, v)
		}
		return nil
	}

	if res.Verdict == VerdictAccept {
		v.FinalAcceptance = true
		v.Status = version.StatusUnderApproval
	} else {
		v.FinalAcceptance = false
		v.Status = version.StatusRejectedByReviewers
	}

	res.Transitioned = true
	res.Status = v.Status
	return e.versions.Put(tx, v)
}

// evaluateApprovers resolves the approver stage, which only exists while the
// reviewer stage has accepted
func (e *Engine) evaluateApprovers(tx *storage.KVTX, v *version.FileVersion, res *Result) error {
	if v.Status.Terminal() || !v.FinalAcceptance {
		return nil
	}
	if !res.Resolved {
		return nil
	}

	if res.Verdict == VerdictAccept {
		v.FinalApproval = true
		v.Status = version.StatusApproved
		v.ApprovedAt = time.Now()
	} else {
		v.FinalApproval = false
		v.Status = version.StatusRejected
	}

	res.Transitioned = true
	res.Status = v.Status
	return e.versions.Put(tx, v)
}
