package version

import "errors"

var (
	// ErrVersionNotFound indicates a lookup for a version that does not exist
	ErrVersionNotFound = errors.New("version: version not found")

	// ErrInvalidDateRange indicates an effective end date before the start date
	ErrInvalidDateRange = errors.New("version: effective end date precedes start date")

	// ErrVersionFinalized indicates a write against a version in a terminal status
	ErrVersionFinalized = errors.New("version: version has reached a terminal status")
)
