// ABOUTME: Policy and membership data model
// ABOUTME: Memberships are add-only and reference their policy by identifier

package policy

import "time"

// Role held by a policy member
type Role string

const (
	RoleCreator  Role = "CREATOR"
	RoleReviewer Role = "REVIEWER"
	RoleApprover Role = "APPROVER"
)

// Valid reports whether the role is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleReviewer, RoleApprover:
		return true
	}
	return false
}

// Votes reports whether the role participates in a decision stage
func (r Role) Votes() bool {
	return r == RoleReviewer || r == RoleApprover
}

// Policy owns a sequence of file versions and a set of memberships,
// both stored separately and keyed back to it by PolicyID only
type Policy struct {
	PolicyID    string
	Name        string
	Description string
	CreatedAt   time.Time
}

// Membership grants a user a role on a policy. Immutable once created.
type Membership struct {
	MembershipID string
	PolicyID     string
	UserID       string
	Role         Role
	CreatedAt    time.Time
}
