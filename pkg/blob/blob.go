// ABOUTME: Blob store collaborator interface for policy file bytes
// ABOUTME: Compression and real storage live behind this boundary, not in the core

package blob

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrBlobNotFound indicates a lookup for an unknown file reference
var ErrBlobNotFound = errors.New("blob: blob not found")

// Store is the external blob collaborator. The core only ever holds the
// returned reference; the bytes, and any compression, are the store's concern.
type Store interface {
	Put(data []byte) (string, error)
	Get(ref string) ([]byte, error)
	Delete(ref string) error
}

// MemoryStore is an in-process Store for tests and single-node deployments
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory blob store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of data and returns its reference
func (ms *MemoryStore) Put(data []byte) (string, error) {
	ref := uuid.NewString()
	ms.mu.Lock()
	ms.blobs[ref] = append([]byte{}, data...)
	ms.mu.Unlock()
	return ref, nil
}

// Get returns a copy of the stored bytes
func (ms *MemoryStore) Get(ref string) ([]byte, error) {
	ms.mu.RLock()
	data, ok := ms.blobs[ref]
	ms.mu.RUnlock()
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte{}, data...), nil
}

// Delete removes a blob; deleting an unknown reference is not an error
func (ms *MemoryStore) Delete(ref string) error {
	ms.mu.Lock()
	delete(ms.blobs, ref)
	ms.mu.Unlock()
	return nil
}
