// ABOUTME: Transaction support for atomic multi-key operations
// ABOUTME: Implements Begin/Commit/Abort with staged writes and read-your-writes

package storage

import "sort"

// pendingWrite is a staged Set or tombstone awaiting commit
type pendingWrite struct {
	val       []byte
	tombstone bool
}

// KVTX represents a key-value transaction. It holds the store's write lock
// from Begin until Commit or Abort, so at most one transaction is in flight.
type KVTX struct {
	db     *KV
	writes map[string]pendingWrite
	order  []logOp
	done   bool
}

// Begin starts a new transaction
func (db *KV) Begin() *KVTX {
	db.mu.Lock()
	return &KVTX{
		db:     db,
		writes: make(map[string]pendingWrite),
	}
}

// Commit appends the staged operations to the commit log as one durable batch
// and applies them to the in-memory index
func (tx *KVTX) Commit() error {
	defer tx.finish()

	if tx.db.closed {
		return ErrClosed
	}
	if len(tx.order) == 0 {
		return nil
	}

	if err := tx.db.log.AppendBatch(tx.order); err != nil {
		return err
	}
	for _, op := range tx.order {
		switch op.op {
		case OP_SET:
			tx.db.applySet(string(op.key), op.val)
		case OP_DELETE:
			tx.db.applyDelete(string(op.key))
		}
	}
	return nil
}

// Abort discards all staged operations
func (tx *KVTX) Abort() {
	tx.finish()
}

func (tx *KVTX) finish() {
	if tx.done {
		return
	}
	tx.done = true
	tx.db.mu.Unlock()
}

// Get retrieves a value within the transaction, seeing staged writes first
func (tx *KVTX) Get(key []byte) ([]byte, bool) {
	if w, ok := tx.writes[string(key)]; ok {
		if w.tombstone {
			return nil, false
		}
		return w.val, true
	}
	val, ok := tx.db.data[string(key)]
	return val, ok
}

// Set stages an insert or update within the transaction
func (tx *KVTX) Set(key []byte, val []byte) {
	k := append([]byte{}, key...)
	v := append([]byte{}, val...)
	tx.writes[string(k)] = pendingWrite{val: v}
	tx.order = append(tx.order, logOp{op: OP_SET, key: k, val: v})
}

// Del stages a deletion within the transaction
func (tx *KVTX) Del(key []byte) bool {
	_, existed := tx.Get(key)
	k := append([]byte{}, key...)
	tx.writes[string(k)] = pendingWrite{tombstone: true}
	tx.order = append(tx.order, logOp{op: OP_DELETE, key: k})
	return existed
}

// Scan walks keys >= start in order, merging committed state with staged
// writes, until the callback returns false
func (tx *KVTX) Scan(start []byte, callback func(key, val []byte) bool) {
	staged := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		staged = append(staged, k)
	}
	sort.Strings(staged)

	committed := tx.db.keys
	i := sort.SearchStrings(committed, string(start))
	j := sort.SearchStrings(staged, string(start))

	for i < len(committed) || j < len(staged) {
		var k string
		useStaged := false

		switch {
		case i >= len(committed):
			k, useStaged = staged[j], true
		case j >= len(staged):
			k = committed[i]
		case staged[j] < committed[i]:
			k, useStaged = staged[j], true
		case staged[j] == committed[i]:
			k, useStaged = staged[j], true
			i++ // staged version shadows committed
		default:
			k = committed[i]
		}

		if useStaged {
			j++
			w := tx.writes[k]
			if w.tombstone {
				continue
			}
			if !callback([]byte(k), w.val) {
				return
			}
		} else {
			i++
			if !callback([]byte(k), tx.db.data[k]) {
				return
			}
		}
	}
}
