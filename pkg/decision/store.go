// ABOUTME: Decision ledger store with roster seeding and eligibility checks
// ABOUTME: Recording validates membership and blocks re-decision; aggregation is elsewhere

package decision

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/policystore/pkg/policy"
	"github.com/nainya/policystore/pkg/storage"
)

// Prefixes for decision storage
const (
	PREFIX_DECISION      = uint32(3000) // (versionID, userID, role)
	PREFIX_DECISION_ROLE = uint32(3100) // Index by (versionID, role, userID)
)

// Store is the durable ledger of per-user, per-role, per-version decisions.
// It consults the membership registry to validate eligibility.
type Store struct {
	kv      *storage.KV
	members *policy.Store
}

// NewStore creates a new decision ledger
func NewStore(kv *storage.KV, members *policy.Store) *Store {
	return &Store{kv: kv, members: members}
}

// Seed creates PENDING decision rows for every REVIEWER and APPROVER
// membership that has no row for this version yet. Idempotent: existing rows
// are left untouched, so re-seeding never duplicates or resets a decision.
func (ds *Store) Seed(tx *storage.KVTX, versionID string, members []*policy.Membership) int {
	seeded := 0
	for _, m := range members {
		if !m.Role.Votes() {
			continue
		}
		if ds.seedOne(tx, versionID, m.PolicyID, m.UserID, m.Role) {
			seeded++
		}
	}
	return seeded
}

// SeedUser creates a single PENDING row for a newly added voter if absent
func (ds *Store) SeedUser(tx *storage.KVTX, versionID, policyID, userID string, role policy.Role) bool {
	if !role.Votes() {
		return false
	}
	return ds.seedOne(tx, versionID, policyID, userID, role)
}

func (ds *Store) seedOne(tx *storage.KVTX, versionID, policyID, userID string, role policy.Role) bool {
	key := decisionKey(versionID, userID, role)
	if _, ok := tx.Get(key); ok {
		return false
	}

	d := &Decision{
		DecisionID: uuid.NewString(),
		PolicyID:   policyID,
		VersionID:  versionID,
		UserID:     userID,
		Role:       role,
		Outcome:    OutcomePending,
		CreatedAt:  time.Now(),
	}
	tx.Set(key, encodeDecision(d))
	tx.Set(roleIndexKey(versionID, role, userID), []byte{})
	return true
}

// Record moves a PENDING decision to its terminal outcome. It fails with
// ErrNotEligible when the user holds no matching membership (or was never
// seeded onto this version), ErrAlreadyDecided on any re-decision attempt,
// and ErrMissingReason when rejecting without a reason.
func (ds *Store) Record(tx *storage.KVTX, policyID, versionID, userID string, role policy.Role, accepted bool, reason string) (*Decision, error) {
	if !role.Votes() {
		return nil, ErrNotEligible
	}
	if !ds.members.HasMemberTx(tx, policyID, userID, role) {
		return nil, ErrNotEligible
	}
	if !accepted && strings.TrimSpace(reason) == "" {
		return nil, ErrMissingReason
	}

	val, ok := tx.Get(decisionKey(versionID, userID, role))
	if !ok {
		return nil, ErrNotEligible
	}
	d, err := decodeDecision(val)
	if err != nil {
		return nil, err
	}
	if d.Outcome.Decided() {
		return nil, ErrAlreadyDecided
	}

	if accepted {
		d.Outcome = OutcomeAccepted
		d.Reason = ""
	} else {
		d.Outcome = OutcomeRejected
		d.Reason = reason
	}
	d.DecidedAt = time.Now()

	tx.Set(decisionKey(versionID, userID, role), encodeDecision(d))
	return d, nil
}

// List returns all decisions for a (version, role), seeded PENDING rows
// included. It accepts a Reader so an open transaction sees its own writes.
func (ds *Store) List(r storage.Reader, versionID string, role policy.Role) ([]*Decision, error) {
	start := storage.EncodeKey(PREFIX_DECISION_ROLE, []storage.Value{
		storage.NewStringValue(versionID),
		storage.NewStringValue(string(role)),
	})

	var decisions []*Decision
	var scanErr error

	r.Scan(start, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_DECISION_ROLE {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil || len(vals) < 3 {
			return true
		}
		if string(vals[0].Str) != versionID || string(vals[1].Str) != string(role) {
			return false
		}

		userID := string(vals[2].Str)
		row, ok := r.Get(decisionKey(versionID, userID, role))
		if !ok {
			return true
		}
		d, err := decodeDecision(row)
		if err != nil {
			scanErr = err
			return false
		}
		decisions = append(decisions, d)
		return true
	})

	return decisions, scanErr
}

// ListCommitted is List against committed state only
func (ds *Store) ListCommitted(versionID string, role policy.Role) ([]*Decision, error) {
	return ds.List(ds.kv, versionID, role)
}

// DeleteByVersion removes every decision row for a version
func (ds *Store) DeleteByVersion(tx *storage.KVTX, versionID string) {
	for _, role := range []policy.Role{policy.RoleReviewer, policy.RoleApprover} {
		decs, err := ds.List(tx, versionID, role)
		if err != nil {
			continue
		}
		for _, d := range decs {
			tx.Del(decisionKey(versionID, d.UserID, role))
			tx.Del(roleIndexKey(versionID, role, d.UserID))
		}
	}
}

// Key and row encoding helpers

func decisionKey(versionID, userID string, role policy.Role) []byte {
	return storage.EncodeKey(PREFIX_DECISION, []storage.Value{
		storage.NewStringValue(versionID),
		storage.NewStringValue(userID),
		storage.NewStringValue(string(role)),
	})
}

func roleIndexKey(versionID string, role policy.Role, userID string) []byte {
	return storage.EncodeKey(PREFIX_DECISION_ROLE, []storage.Value{
		storage.NewStringValue(versionID),
		storage.NewStringValue(string(role)),
		storage.NewStringValue(userID),
	})
}

func encodeDecision(d *Decision) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewStringValue(d.DecisionID),
		storage.NewStringValue(d.PolicyID),
		storage.NewStringValue(d.VersionID),
		storage.NewStringValue(d.UserID),
		storage.NewStringValue(string(d.Role)),
		storage.NewStringValue(string(d.Outcome)),
		storage.NewStringValue(d.Reason),
		storage.NewTimeValue(d.CreatedAt),
		storage.NewTimeValue(d.DecidedAt),
	})
}

func decodeDecision(data []byte) (*Decision, error) {
	vals, err := storage.DecodeValues(data)
	if err != nil {
		return nil, err
	}
	if len(vals) < 9 {
		return nil, ErrNotEligible
	}
	d := &Decision{
		DecisionID: string(vals[0].Str),
		PolicyID:   string(vals[1].Str),
		VersionID:  string(vals[2].Str),
		UserID:     string(vals[3].Str),
		Role:       policy.Role(vals[4].Str),
		Outcome:    Outcome(vals[5].Str),
		Reason:     string(vals[6].Str),
		CreatedAt:  vals[7].Time,
		DecidedAt:  vals[8].Time,
	}
	if d.DecidedAt.Unix() == (time.Time{}).Unix() {
		d.DecidedAt = time.Time{}
	}
	return d, nil
}
