package policy

import "errors"

var (
	// ErrPolicyNotFound indicates a lookup for a policy that does not exist
	ErrPolicyNotFound = errors.New("policy: policy not found")

	// ErrInvalidRole indicates a role outside CREATOR/REVIEWER/APPROVER
	ErrInvalidRole = errors.New("policy: invalid role")

	// ErrDuplicateCreator indicates an attempt to add a second CREATOR
	ErrDuplicateCreator = errors.New("policy: policy already has a creator")

	// ErrDuplicateMember indicates the user already holds this role on the policy
	ErrDuplicateMember = errors.New("policy: user already holds this role")

	// ErrNoCreator indicates an operation that requires the policy to have a creator
	ErrNoCreator = errors.New("policy: policy has no creator")
)
