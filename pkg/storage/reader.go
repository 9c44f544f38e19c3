// ABOUTME: Read-side abstraction shared by the store and its transactions
// ABOUTME: Lets query helpers run against committed state or an open transaction

package storage

// Reader is the read surface common to *KV and *KVTX. Query helpers that must
// observe writes staged in an open transaction take a Reader instead of the
// store itself.
type Reader interface {
	Get(key []byte) ([]byte, bool)
	Scan(start []byte, callback func(key, val []byte) bool)
}
