// ABOUTME: Version store implementation with explicit sequence ordering
// ABOUTME: The latest version is always the highest-sequence query, never list position

package version

import (
	"time"

	"github.com/google/uuid"

	"github.com/nainya/policystore/pkg/storage"
)

// Prefixes for version storage
const (
	PREFIX_VERSION     = uint32(2000) // (versionID)
	PREFIX_VERSION_SEQ = uint32(2100) // Index by (policyID, seq) -> versionID
)

// Store manages policy file versions
type Store struct {
	kv *storage.KV
}

// NewStore creates a new version store
func NewStore(kv *storage.KV) *Store {
	return &Store{kv: kv}
}

// Create stores a new version for a policy in status CREATED with both
// quorum flags cleared. The sequence number is one past the current highest.
func (vs *Store) Create(tx *storage.KVTX, v *FileVersion) error {
	if err := checkDates(v.EffectiveStart, v.EffectiveEnd); err != nil {
		return err
	}

	if v.VersionID == "" {
		v.VersionID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	v.Status = StatusCreated
	v.FinalAcceptance = false
	v.FinalApproval = false
	v.ApprovedAt = time.Time{}

	latest, err := Latest(tx, v.PolicyID)
	switch err {
	case nil:
		v.Seq = latest.Seq + 1
	case ErrVersionNotFound:
		v.Seq = 1
	default:
		return err
	}

	tx.Set(versionKey(v.VersionID), encodeVersion(v))
	tx.Set(seqKey(v.PolicyID, v.Seq), []byte(v.VersionID))
	return nil
}

// Put overwrites an existing version row. The sequence index is immutable,
// so status and flag changes never touch it.
func (vs *Store) Put(tx *storage.KVTX, v *FileVersion) error {
	if _, ok := tx.Get(versionKey(v.VersionID)); !ok {
		return ErrVersionNotFound
	}
	tx.Set(versionKey(v.VersionID), encodeVersion(v))
	return nil
}

// Get retrieves a version by ID
func (vs *Store) Get(versionID string) (*FileVersion, error) {
	return getVersion(vs.kv, versionID)
}

// GetTx retrieves a version inside an open transaction
func (vs *Store) GetTx(tx *storage.KVTX, versionID string) (*FileVersion, error) {
	return getVersion(tx, versionID)
}

// UpdateMetadata overwrites the mutable metadata fields of a version. It
// refuses versions in a terminal status and end dates before the stored
// start date. Decisions and quorum flags are never touched here.
func (vs *Store) UpdateMetadata(tx *storage.KVTX, versionID, fileRef, fileName, fileType, label string, effectiveEnd time.Time) (*FileVersion, error) {
	v, err := getVersion(tx, versionID)
	if err != nil {
		return nil, err
	}
	if v.Status.Terminal() {
		return nil, ErrVersionFinalized
	}
	if err := checkDates(v.EffectiveStart, effectiveEnd); err != nil {
		return nil, err
	}

	v.FileRef = fileRef
	v.FileName = fileName
	v.FileType = fileType
	v.Label = label
	v.EffectiveEnd = effectiveEnd

	tx.Set(versionKey(v.VersionID), encodeVersion(v))
	return v, nil
}

// ListByPolicy returns a policy's versions in sequence order
func (vs *Store) ListByPolicy(policyID string) ([]*FileVersion, error) {
	return listByPolicy(vs.kv, policyID)
}

// ListByPolicyTx is ListByPolicy against an open transaction
func (vs *Store) ListByPolicyTx(tx *storage.KVTX, policyID string) ([]*FileVersion, error) {
	return listByPolicy(tx, policyID)
}

func listByPolicy(r storage.Reader, policyID string) ([]*FileVersion, error) {
	var versions []*FileVersion
	var scanErr error

	scanSeq(r, policyID, func(seq uint64, versionID string) bool {
		v, err := getVersion(r, versionID)
		if err != nil {
			scanErr = err
			return false
		}
		versions = append(versions, v)
		return true
	})

	return versions, scanErr
}

// DeleteByPolicy removes all versions of a policy and returns their IDs so
// the caller can cascade dependent records
func (vs *Store) DeleteByPolicy(tx *storage.KVTX, policyID string) []string {
	type entry struct {
		seq uint64
		id  string
	}
	var entries []entry
	scanSeq(tx, policyID, func(seq uint64, versionID string) bool {
		entries = append(entries, entry{seq: seq, id: versionID})
		return true
	})

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		tx.Del(versionKey(e.id))
		tx.Del(seqKey(policyID, e.seq))
		ids = append(ids, e.id)
	}
	return ids
}

// Latest returns the version with the highest sequence number for a policy
func Latest(r storage.Reader, policyID string) (*FileVersion, error) {
	var latestID string
	scanSeq(r, policyID, func(seq uint64, versionID string) bool {
		latestID = versionID
		return true
	})

	if latestID == "" {
		return nil, ErrVersionNotFound
	}
	return getVersion(r, latestID)
}

// checkDates enforces that the effective window never ends before it starts.
// A zero end date means the version is open-ended.
func checkDates(start, end time.Time) error {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return ErrInvalidDateRange
	}
	return nil
}

// Key and row encoding helpers

func versionKey(versionID string) []byte {
	return storage.EncodeKey(PREFIX_VERSION, []storage.Value{
		storage.NewStringValue(versionID),
	})
}

func seqKey(policyID string, seq uint64) []byte {
	return storage.EncodeKey(PREFIX_VERSION_SEQ, []storage.Value{
		storage.NewStringValue(policyID),
		storage.NewUint64Value(seq),
	})
}

func encodeVersion(v *FileVersion) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewStringValue(v.VersionID),
		storage.NewStringValue(v.PolicyID),
		storage.NewUint64Value(v.Seq),
		storage.NewStringValue(v.Label),
		storage.NewStringValue(v.FileRef),
		storage.NewStringValue(v.FileName),
		storage.NewStringValue(v.FileType),
		storage.NewStringValue(string(v.Status)),
		storage.NewBoolValue(v.FinalAcceptance),
		storage.NewBoolValue(v.FinalApproval),
		storage.NewTimeValue(v.CreatedAt),
		storage.NewTimeValue(v.ApprovedAt),
		storage.NewTimeValue(v.EffectiveStart),
		storage.NewTimeValue(v.EffectiveEnd),
	})
}

func decodeVersion(data []byte) (*FileVersion, error) {
	vals, err := storage.DecodeValues(data)
	if err != nil {
		return nil, err
	}
	if len(vals) < 14 {
		return nil, ErrVersionNotFound
	}
	return &FileVersion{
		VersionID:       string(vals[0].Str),
		PolicyID:        string(vals[1].Str),
		Seq:             vals[2].U64,
		Label:           string(vals[3].Str),
		FileRef:         string(vals[4].Str),
		FileName:        string(vals[5].Str),
		FileType:        string(vals[6].Str),
		Status:          Status(vals[7].Str),
		FinalAcceptance: vals[8].Bool,
		FinalApproval:   vals[9].Bool,
		CreatedAt:       vals[10].Time,
		ApprovedAt:      normalizeZero(vals[11].Time),
		EffectiveStart:  normalizeZero(vals[12].Time),
		EffectiveEnd:    normalizeZero(vals[13].Time),
	}, nil
}

func getVersion(r storage.Reader, versionID string) (*FileVersion, error) {
	val, ok := r.Get(versionKey(versionID))
	if !ok {
		return nil, ErrVersionNotFound
	}
	return decodeVersion(val)
}

// scanSeq walks the (policyID, seq) index in ascending sequence order
func scanSeq(r storage.Reader, policyID string, cb func(seq uint64, versionID string) bool) {
	start := storage.EncodeKey(PREFIX_VERSION_SEQ, []storage.Value{
		storage.NewStringValue(policyID),
	})

	r.Scan(start, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_VERSION_SEQ {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil || len(vals) < 2 || string(vals[0].Str) != policyID {
			return false
		}
		return cb(vals[1].U64, string(val))
	})
}

// normalizeZero maps a decoded zero timestamp back to time.Time{} so IsZero
// checks keep working after a reload
func normalizeZero(t time.Time) time.Time {
	if t.Unix() == (time.Time{}).Unix() {
		return time.Time{}
	}
	return t
}
