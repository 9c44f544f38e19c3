// ABOUTME: Policy template store implementation
// ABOUTME: Templates are keyed by ID with a per-policy index for listing

package template

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/policystore/pkg/storage"
)

// ErrTemplateNotFound indicates a lookup for a template that does not exist
var ErrTemplateNotFound = errors.New("template: template not found")

// Prefixes for template storage
const (
	PREFIX_TEMPLATE        = uint32(4000) // (templateID)
	PREFIX_TEMPLATE_POLICY = uint32(4100) // Index by (policyID, templateID)
)

// Store manages policy templates
type Store struct {
	kv *storage.KV
}

// NewStore creates a new template store
func NewStore(kv *storage.KV) *Store {
	return &Store{kv: kv}
}

// Create stores a new template record
func (ts *Store) Create(tx *storage.KVTX, t *Template) error {
	if t.TemplateID == "" {
		t.TemplateID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	tx.Set(templateKey(t.TemplateID), encodeTemplate(t))
	tx.Set(policyIndexKey(t.PolicyID, t.TemplateID), []byte{})
	return nil
}

// Get retrieves a template by ID
func (ts *Store) Get(templateID string) (*Template, error) {
	val, ok := ts.kv.Get(templateKey(templateID))
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return decodeTemplate(val)
}

// ListByPolicy returns all templates of a policy
func (ts *Store) ListByPolicy(policyID string) ([]*Template, error) {
	start := storage.EncodeKey(PREFIX_TEMPLATE_POLICY, []storage.Value{
		storage.NewStringValue(policyID),
	})

	var templates []*Template
	var scanErr error

	ts.kv.Scan(start, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_TEMPLATE_POLICY {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil || len(vals) < 2 || string(vals[0].Str) != policyID {
			return false
		}
		t, err := ts.Get(string(vals[1].Str))
		if err != nil {
			scanErr = err
			return false
		}
		templates = append(templates, t)
		return true
	})

	return templates, scanErr
}

// DeleteByPolicy removes all template records of a policy and returns their
// blob references so the caller can release the stored bytes
func (ts *Store) DeleteByPolicy(tx *storage.KVTX, policyID string) []string {
	start := storage.EncodeKey(PREFIX_TEMPLATE_POLICY, []storage.Value{
		storage.NewStringValue(policyID),
	})

	type entry struct {
		id  string
		ref string
	}
	var entries []entry

	tx.Scan(start, func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != PREFIX_TEMPLATE_POLICY {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil || len(vals) < 2 || string(vals[0].Str) != policyID {
			return false
		}
		id := string(vals[1].Str)
		if row, ok := tx.Get(templateKey(id)); ok {
			if t, err := decodeTemplate(row); err == nil {
				entries = append(entries, entry{id: id, ref: t.FileRef})
			}
		}
		return true
	})

	refs := make([]string, 0, len(entries))
	for _, e := range entries {
		tx.Del(templateKey(e.id))
		tx.Del(policyIndexKey(policyID, e.id))
		refs = append(refs, e.ref)
	}
	return refs
}

// Key and row encoding helpers

func templateKey(templateID string) []byte {
	return storage.EncodeKey(PREFIX_TEMPLATE, []storage.Value{
		storage.NewStringValue(templateID),
	})
}

func policyIndexKey(policyID, templateID string) []byte {
	return storage.EncodeKey(PREFIX_TEMPLATE_POLICY, []storage.Value{
		storage.NewStringValue(policyID),
		storage.NewStringValue(templateID),
	})
}

func encodeTemplate(t *Template) []byte {
	return storage.EncodeValues([]storage.Value{
		storage.NewStringValue(t.TemplateID),
		storage.NewStringValue(t.PolicyID),
		storage.NewStringValue(t.Name),
		storage.NewStringValue(t.FileRef),
		storage.NewStringValue(t.FileName),
		storage.NewStringValue(t.FileType),
		storage.NewTimeValue(t.CreatedAt),
	})
}

func decodeTemplate(data []byte) (*Template, error) {
	vals, err := storage.DecodeValues(data)
	if err != nil {
		return nil, err
	}
	if len(vals) < 7 {
		return nil, ErrTemplateNotFound
	}
	return &Template{
		TemplateID: string(vals[0].Str),
		PolicyID:   string(vals[1].Str),
		Name:       string(vals[2].Str),
		FileRef:    string(vals[3].Str),
		FileName:   string(vals[4].Str),
		FileType:   string(vals[5].Str),
		CreatedAt:  vals[6].Time,
	}, nil
}
