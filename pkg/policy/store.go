// ABOUTME: Policy and membership store implementation
// ABOUTME: Enforces the single-creator rule and add-only memberships

package policy

import (
	"time"

	"github.com/google/uuid"

	"github.com/nainya/policystore/pkg/storage"
)

// Prefixes for policy storage
const (
	PREFIX_POLICY      = uint32(1000) // (policyID)
	PREFIX_MEMBER      = uint32(1100) // (policyID, userID, role)
	PREFIX_MEMBER_ROLE = uint32(1200) // Index by (policyID, role, userID)
)

// Store manages policies and their memberships
type Store struct {
	kv *storage.KV
}

// NewStore creates a new policy store
func NewStore(kv *storage.KV) *Store {
	return &Store{kv: kv}
}

// Create stores a new policy. A missing PolicyID or CreatedAt is filled in.
func (ps *Store) Create(tx *storage.KVTX, p *Policy) error {
	if p.PolicyID == "" {
		p.PolicyID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	tx.Set(policyKey(p.PolicyID), encodePolicy(p))
	return nil
}

// Update overwrites the name and description of an existing policy
func (ps *Store) Update(tx *storage.KVTX, policyID, name, description string) (*Policy, error) {
	val, ok := tx.Get(policyKey(policyID))
	if !ok {
		return nil, ErrPolicyNotFound
	}
	p, err := decodePolicy(val)
	if err != nil {
		return nil, err
	}

	p.Name = name
	p.Description = description
	tx.Set(policyKey(p.PolicyID), encodePolicy(p))
	return p, nil
}

// Delete removes a policy and all of its memberships. Versions and decisions
// are owned by their own stores and cascaded by the caller.
func (ps *Store) Delete(tx *storage.KVTX, policyID string) error {
	if _, ok := tx.Get(policyKey(policyID)); !ok {
		return ErrPolicyNotFound
	}
	tx.Del(policyKey(policyID))

	for _, m := range ps.MembersTx(tx, policyID) {
		tx.Del(memberKey(m.PolicyID, m.UserID, m.Role))
		tx.Del(memberRoleKey(m.PolicyID, m.Role, m.UserID))
	}
	return nil
}

// Get retrieves a policy by ID
func (ps *Store) Get(policyID string) (*Policy, error) {
	val, ok := ps.kv.Get(policyKey(policyID))
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return decodePolicy(val)
}

// List returns all policies ordered by ID
func (ps *Store) List() ([]*Policy, error) {
	var policies []*Policy
	var scanErr error

	ps.kv.Scan(storage.EncodeKey(PREFIX_POLICY, nil), func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_POLICY {
			return false
		}
		p, err := decodePolicy(val)
		if err != nil {
			scanErr = err
			return false
		}
		policies = append(policies, p)
		return true
	})

	return policies, scanErr
}

// AddMember grants a user a role on a policy. Adding a second CREATOR fails,
// as does granting a role the user already holds.
func (ps *Store) AddMember(tx *storage.KVTX, policyID, userID string, role Role) (*Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if _, ok := tx.Get(policyKey(policyID)); !ok {
		return nil, ErrPolicyNotFound
	}
	if _, ok := tx.Get(memberKey(policyID, userID, role)); ok {
		return nil, ErrDuplicateMember
	}
	if role == RoleCreator && ps.hasRoleTx(tx, policyID, RoleCreator) {
		return nil, ErrDuplicateCreator
	}

	m := &Membership{
		MembershipID: uuid.NewString(),
		PolicyID:     policyID,
		UserID:       userID,
		Role:         role,
		CreatedAt:    time.Now(),
	}

	tx.Set(memberKey(policyID, userID, role), encodeMembership(m))
	tx.Set(memberRoleKey(policyID, role, userID), []byte{})
	return m, nil
}

// Members returns all memberships of a policy
func (ps *Store) Members(policyID string) ([]*Membership, error) {
	if _, ok := ps.kv.Get(policyKey(policyID)); !ok {
		return nil, ErrPolicyNotFound
	}
	return scanMembers(ps.kv, policyID), nil
}

// MembersByRole returns the user IDs holding a role on a policy, ordered
func (ps *Store) MembersByRole(policyID string, role Role) []string {
	return membersByRole(ps.kv, policyID, role)
}

// HasMember reports whether the user holds the given role on the policy
func (ps *Store) HasMember(policyID, userID string, role Role) bool {
	_, ok := ps.kv.Get(memberKey(policyID, userID, role))
	return ok
}

// HasMemberTx is HasMember against an open transaction
func (ps *Store) HasMemberTx(tx *storage.KVTX, policyID, userID string, role Role) bool {
	_, ok := tx.Get(memberKey(policyID, userID, role))
	return ok
}

// HasCreator reports whether the policy has a CREATOR membership
func (ps *Store) HasCreator(policyID string) bool {
	return len(membersByRole(ps.kv, policyID, RoleCreator)) > 0
}

// MembersTx lists memberships inside an open transaction
func (ps *Store) MembersTx(tx *storage.KVTX, policyID string) []*Membership {
	return scanMembers(tx, policyID)
}

// hasRoleTx checks the role index inside an open transaction
func (ps *Store) hasRoleTx(tx *storage.KVTX, policyID string, role Role) bool {
	return len(membersByRole(tx, policyID, role)) > 0
}

// Key and row encoding helpers

func policyKey(policyID string) []byte {
	return storage.EncodeKey(PREFIX_POLICY, []storage.Value{
		storage.NewStringValue(policyID),
	})
}

func memberKey(policyID, userID string, role Role) []byte {
	return storage.EncodeKey(PREFIX_MEMBER, []storage.Value{
		storage.NewStringValue(policyID),
		storage.NewStringValue(userID),
		storage.NewStringValue(string(role)),
	})
}

func memberRoleKey(policyID string, role Role, userID string) []byte {
	return storage.EncodeKey(PREFIX_MEMBER_ROLE, []storage.Value{
		storage.NewStringValue(policyID),
		storage.NewStringValue(string(role)),
		storage.NewStringValue(userID),
	})
}

func encodePolicy(p *Policy) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewStringValue(p.PolicyID),
		storage.NewStringValue(p.Name),
		storage.NewStringValue(p.Description),
		storage.NewTimeValue(p.CreatedAt),
	})
}

func decodePolicy(data []byte) (*Policy, error) {
	vals, err := storage.DecodeValues(data)
	if err != nil {
		return nil, err
	}
	if len(vals) < 4 {
		return nil, ErrPolicyNotFound
	}
	return &Policy{
		PolicyID:    string(vals[0].Str),
		Name:        string(vals[1].Str),
		Description: string(vals[2].Str),
		CreatedAt:   vals[3].Time,
	}, nil
}

func encodeMembership(m *Membership) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewStringValue(m.MembershipID),
		storage.NewStringValue(m.PolicyID),
		storage.NewStringValue(m.UserID),
		storage.NewStringValue(string(m.Role)),
		storage.NewTimeValue(m.CreatedAt),
	})
}

func decodeMembership(data []byte) (*Membership, error) {
	vals, err := storage.DecodeValues(data)
	if err != nil {
		return nil, err
	}
	if len(vals) < 5 {
		return nil, ErrInvalidRole
	}
	return &Membership{
		MembershipID: string(vals[0].Str),
		PolicyID:     string(vals[1].Str),
		UserID:       string(vals[2].Str),
		Role:         Role(vals[3].Str),
		CreatedAt:    vals[4].Time,
	}, nil
}

// scanMembers walks the primary membership rows for a policy
func scanMembers(r storage.Reader, policyID string) []*Membership {
	start := storage.EncodeKey(PREFIX_MEMBER, []storage.Value{
		storage.NewStringValue(policyID),
	})

	var members []*Membership
	r.Scan(start, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_MEMBER {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil || len(vals) < 3 || string(vals[0].Str) != policyID {
			return false
		}
		m, err := decodeMembership(val)
		if err != nil {
			return true
		}
		members = append(members, m)
		return true
	})
	return members
}

// membersByRole walks the (policyID, role, userID) index
func membersByRole(r storage.Reader, policyID string, role Role) []string {
	start := storage.EncodeKey(PREFIX_MEMBER_ROLE, []storage.Value{
		storage.NewStringValue(policyID),
		storage.NewStringValue(string(role)),
	})

	var users []string
	r.Scan(start, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_MEMBER_ROLE {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil || len(vals) < 3 {
			return true
		}
		if string(vals[0].Str) != policyID || string(vals[1].Str) != string(role) {
			return false
		}
		users = append(users, string(vals[2].Str))
		return true
	})
	return users
}
