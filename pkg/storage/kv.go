// ABOUTME: Durable KV store with an ordered in-memory index over a commit log
// ABOUTME: All mutation happens in transactions; readers see committed state only

package storage

import (
	"sort"
	"sync"
)

// KV represents a persistent key-value store. The full index is held in
// memory as a sorted key slice plus a value map and rebuilt from the commit
// log on Open.
type KV struct {
	Path string

	mu   sync.RWMutex
	log  *commitLog
	keys []string // sorted committed keys
	data map[string][]byte

	closed bool
}

// Open opens or creates the store and replays the commit log
func (db *KV) Open() error {
	log, err := openLog(db.Path)
	if err != nil {
		return err
	}

	db.log = log
	db.data = make(map[string][]byte)
	db.keys = db.keys[:0]

	err = log.Replay(func(op byte, key, val []byte) {
		switch op {
		case OP_SET:
			db.applySet(string(key), val)
		case OP_DELETE:
			db.applyDelete(string(key))
		}
	})
	if err != nil {
		_ = log.Close()
		return err
	}
	return nil
}

// Close closes the store
func (db *KV) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.log.Close()
}

// Get retrieves a committed value by key
func (db *KV) Get(key []byte) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	val, ok := db.data[string(key)]
	return val, ok
}

// Scan walks committed keys >= start in order until the callback returns false
func (db *KV) Scan(start []byte, callback func(key, val []byte) bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	i := sort.SearchStrings(db.keys, string(start))
	for ; i < len(db.keys); i++ {
		k := db.keys[i]
		if !callback([]byte(k), db.data[k]) {
			return
		}
	}
}

// Set writes a single key in its own transaction
func (db *KV) Set(key []byte, val []byte) error {
	return db.Update(func(tx *KVTX) error {
		tx.Set(key, val)
		return nil
	})
}

// Del deletes a single key in its own transaction and reports whether it existed
func (db *KV) Del(key []byte) (bool, error) {
	var existed bool
	err := db.Update(func(tx *KVTX) error {
		existed = tx.Del(key)
		return nil
	})
	return existed, err
}

// Update runs fn inside a write transaction. The transaction commits when fn
// returns nil and aborts otherwise; transactions are mutually exclusive, so a
// read-modify-write inside fn can never race another writer.
func (db *KV) Update(fn func(tx *KVTX) error) error {
	tx := db.Begin()
	if err := fn(tx); err != nil {
		tx.Abort()
		return err
	}
	return tx.Commit()
}

// applySet inserts or updates a key in the committed index.
// Caller holds the write lock (or is single-threaded replay).
func (db *KV) applySet(key string, val []byte) {
	if _, ok := db.data[key]; !ok {
		i := sort.SearchStrings(db.keys, key)
		db.keys = append(db.keys, "")
		copy(db.keys[i+1:], db.keys[i:])
		db.keys[i] = key
	}
	db.data[key] = val
}

// applyDelete removes a key from the committed index
func (db *KV) applyDelete(key string) {
	if _, ok := db.data[key]; !ok {
		return
	}
	delete(db.data, key)
	i := sort.SearchStrings(db.keys, key)
	if i < len(db.keys) && db.keys[i] == key {
		db.keys = append(db.keys[:i], db.keys[i+1:]...)
	}
}
