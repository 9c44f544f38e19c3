// ABOUTME: User directory collaborator interface
// ABOUTME: Account CRUD lives elsewhere; the core only asks whether a user exists

package directory

import (
	"errors"
	"sync"
)

// ErrUserNotFound indicates a reference to a user the directory does not know
var ErrUserNotFound = errors.New("directory: user not found")

// Directory is the external membership/user directory collaborator
type Directory interface {
	UserExists(userID string) bool
}

// OpenDirectory accepts every user ID. Used when the real directory is an
// external system and identity is checked upstream.
type OpenDirectory struct{}

// UserExists always reports true
func (OpenDirectory) UserExists(userID string) bool {
	return true
}

// MemoryDirectory is an in-process Directory for tests and single-node use
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

// NewMemoryDirectory creates a directory containing the given users
func NewMemoryDirectory(userIDs ...string) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]struct{}, len(userIDs))}
	for _, id := range userIDs {
		d.users[id] = struct{}{}
	}
	return d
}

// Add registers a user
func (d *MemoryDirectory) Add(userID string) {
	d.mu.Lock()
	d.users[userID] = struct{}{}
	d.mu.Unlock()
}

// UserExists reports whether the directory knows the user
func (d *MemoryDirectory) UserExists(userID string) bool {
	d.mu.RLock()
	_, ok := d.users[userID]
	d.mu.RUnlock()
	return ok
}
