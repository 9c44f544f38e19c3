// Package service exposes the policy lifecycle operations to the transport layer
package service

import (
	"fmt"
	"time"

	"github.com/nainya/policystore/internal/logger"
	"github.com/nainya/policystore/internal/metrics"
	"github.com/nainya/policystore/pkg/approval"
	"github.com/nainya/policystore/pkg/blob"
	"github.com/nainya/policystore/pkg/decision"
	"github.com/nainya/policystore/pkg/directory"
	"github.com/nainya/policystore/pkg/policy"
	"github.com/nainya/policystore/pkg/storage"
	"github.com/nainya/policystore/pkg/template"
	"github.com/nainya/policystore/pkg/version"
)

// Service wires the stores, the aggregation engine and the external
// collaborators together. Every mutating operation runs as one storage
// transaction, so a decision write and its status transition commit as a
// unit or not at all.
type Service struct {
	kv        *storage.KV
	policies  *policy.Store
	versions  *version.Store
	decisions *decision.Store
	templates *template.Store
	engine    *approval.Engine

	blobs blob.Store
	users directory.Directory

	log     *logger.Logger
	metrics *metrics.Metrics

	startTime time.Time
}

// VersionInput carries the caller-supplied fields for a new or updated
// file version. File bytes go to the blob collaborator, never the store.
type VersionInput struct {
	File     []byte
	FileName string
	FileType string
	Label    string

	CreatedAt      time.Time // zero means now
	EffectiveStart time.Time
	EffectiveEnd   time.Time // zero means open-ended
}

// New opens the backing store at dbPath and builds the service.
// Metrics may be nil (tests register no collectors).
func New(dbPath string, blobs blob.Store, users directory.Directory, log *logger.Logger, m *metrics.Metrics) (*Service, error) {
	kv := &storage.KV{Path: dbPath}
	if err := kv.Open(); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	policies := policy.NewStore(kv)
	versions := version.NewStore(kv)
	decisions := decision.NewStore(kv, policies)

	return &Service{
		kv:        kv,
		policies:  policies,
		versions:  versions,
		decisions: decisions,
		templates: template.NewStore(kv),
		engine:    approval.NewEngine(versions, decisions),
		blobs:     blobs,
		users:     users,
		log:       log,
		metrics:   m,
		startTime: time.Now(),
	}, nil
}

// Close closes the backing store
func (s *Service) Close() error {
	return s.kv.Close()
}

// instrument wraps an operation with metrics and a completion log line
func (s *Service) instrument(op string, fn func() error) error {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.OperationsInFlight.Inc()
		defer s.metrics.OperationsInFlight.Dec()
	}

	err := fn()

	duration := time.Since(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.RecordOperation(op, status, duration)
	}
	s.log.LogOperation(op, duration, err)
	return err
}

// ========== Policy Operations ==========

// CreatePolicy creates a policy with empty version and membership sets
func (s *Service) CreatePolicy(name, description string) (*policy.Policy, error) {
	p := &policy.Policy{Name: name, Description: description}
	err := s.instrument("CreatePolicy", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			return s.policies.Create(tx, p)
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePolicy overwrites a policy's name and description
func (s *Service) UpdatePolicy(policyID, name, description string) (*policy.Policy, error) {
	var p *policy.Policy
	err := s.instrument("UpdatePolicy", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			var err error
			p, err = s.policies.Update(tx, policyID, name, description)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePolicy removes a policy and cascades to its versions, decisions,
// memberships and templates. Stored blobs are released afterwards.
func (s *Service) DeletePolicy(policyID string) error {
	var blobRefs []string

	err := s.instrument("DeletePolicy", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			rows, err := s.versions.ListByPolicyTx(tx, policyID)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if row.FileRef != "" {
					blobRefs = append(blobRefs, row.FileRef)
				}
			}

			for _, vid := range s.versions.DeleteByPolicy(tx, policyID) {
				s.decisions.DeleteByVersion(tx, vid)
			}
			blobRefs = append(blobRefs, s.templates.DeleteByPolicy(tx, policyID)...)
			return s.policies.Delete(tx, policyID)
		})
	})
	if err != nil {
		return err
	}

	for _, ref := range blobRefs {
		if err := s.blobs.Delete(ref); err != nil {
			s.log.Warn("blob cleanup failed").Str("ref", ref).Err(err).Send()
		}
	}
	return nil
}

// GetPolicy retrieves a policy by ID
func (s *Service) GetPolicy(policyID string) (*policy.Policy, error) {
	return s.policies.Get(policyID)
}

// ListPolicies returns all policies
func (s *Service) ListPolicies() ([]*policy.Policy, error) {
	return s.policies.List()
}

// ListMembers returns all memberships of a policy
func (s *Service) ListMembers(policyID string) ([]*policy.Membership, error) {
	return s.policies.Members(policyID)
}

// AddMember grants a user a role on a policy. A new REVIEWER or APPROVER is
// also seeded with a PENDING decision on the policy's latest version, so the
// roster a version resolves against is always the membership set.
func (s *Service) AddMember(policyID, userID string, role policy.Role) (*policy.Membership, error) {
	if !s.users.UserExists(userID) {
		return nil, directory.ErrUserNotFound
	}

	var m *policy.Membership
	err := s.instrument("AddMember", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			var err error
			m, err = s.policies.AddMember(tx, policyID, userID, role)
			if err != nil {
				return err
			}
			if !role.Votes() {
				return nil
			}

			latest, err := version.Latest(tx, policyID)
			if err == version.ErrVersionNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			s.decisions.SeedUser(tx, latest.VersionID, policyID, userID, role)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ========== Version Operations ==========

// AddVersion stores the file bytes with the blob collaborator, creates the
// next version of the policy in status CREATED and clones the current
// reviewer/approver roster onto it as PENDING decisions
func (s *Service) AddVersion(policyID string, in VersionInput) (*version.FileVersion, error) {
	if _, err := s.policies.Get(policyID); err != nil {
		return nil, err
	}
	if !s.policies.HasCreator(policyID) {
		return nil, policy.ErrNoCreator
	}
	if !in.EffectiveStart.IsZero() && !in.EffectiveEnd.IsZero() && in.EffectiveEnd.Before(in.EffectiveStart) {
		return nil, version.ErrInvalidDateRange
	}

	// Blob I/O stays outside the transaction
	fileRef, err := s.blobs.Put(in.File)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	v := &version.FileVersion{
		PolicyID:       policyID,
		Label:          in.Label,
		FileRef:        fileRef,
		FileName:       in.FileName,
		FileType:       in.FileType,
		CreatedAt:      in.CreatedAt,
		EffectiveStart: in.EffectiveStart,
		EffectiveEnd:   in.EffectiveEnd,
	}

	err = s.instrument("AddVersion", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			if err := s.versions.Create(tx, v); err != nil {
				return err
			}

			members := s.policies.MembersTx(tx, policyID)
			seeded := s.decisions.Seed(tx, v.VersionID, members)
			if s.metrics != nil {
				s.metrics.RosterSeedsTotal.Add(float64(seeded))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// UpdateVersionMetadata overwrites a version's file, label and effective end
// date. Status and quorum flags belong to the aggregation engine and are
// never written here; terminal versions refuse the update.
func (s *Service) UpdateVersionMetadata(versionID string, in VersionInput) (*version.FileVersion, error) {
	current, err := s.versions.Get(versionID)
	if err != nil {
		return nil, err
	}

	fileRef := current.FileRef
	fileName := current.FileName
	fileType := current.FileType
	if in.File != nil {
		if fileRef, err = s.blobs.Put(in.File); err != nil {
			return nil, fmt.Errorf("store file: %w", err)
		}
		fileName = in.FileName
		fileType = in.FileType
	}

	var v *version.FileVersion
	err = s.instrument("UpdateVersionMetadata", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			var err error
			v, err = s.versions.UpdateMetadata(tx, versionID, fileRef, fileName, fileType, in.Label, in.EffectiveEnd)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetVersion retrieves a version by ID
func (s *Service) GetVersion(versionID string) (*version.FileVersion, error) {
	return s.versions.Get(versionID)
}

// GetLatestVersion returns the highest-sequence version of a policy
func (s *Service) GetLatestVersion(policyID string) (*version.FileVersion, error) {
	if _, err := s.policies.Get(policyID); err != nil {
		return nil, err
	}
	return version.Latest(s.kv, policyID)
}

// ListVersions returns a policy's versions in sequence order
func (s *Service) ListVersions(policyID string) ([]*version.FileVersion, error) {
	if _, err := s.policies.Get(policyID); err != nil {
		return nil, err
	}
	return s.versions.ListByPolicy(policyID)
}

// DownloadVersionFile fetches a version's file bytes from the blob store
func (s *Service) DownloadVersionFile(versionID string) ([]byte, *version.FileVersion, error) {
	v, err := s.versions.Get(versionID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(v.FileRef)
	if err != nil {
		return nil, nil, err
	}
	return data, v, nil
}

// ========== Decision Operations ==========

// SubmitDecision records one reviewer or approver decision and immediately
// re-evaluates the stage. The ledger write and any status transition commit
// in the same transaction; concurrent submissions are serialized by the
// store, so two voters can never both observe an unresolved stage and race
// conflicting transitions.
func (s *Service) SubmitDecision(versionID, userID string, role policy.Role, accepted bool, reason string) (*decision.Decision, *approval.Result, error) {
	var d *decision.Decision
	var res *approval.Result

	err := s.instrument("SubmitDecision", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			v, err := s.versions.GetTx(tx, versionID)
			if err != nil {
				return err
			}
			if v.Status.Terminal() {
				return version.ErrVersionFinalized
			}
			if role == policy.RoleApprover && !v.FinalAcceptance {
				return decision.ErrApprovalNotOpen
			}

			if d, err = s.decisions.Record(tx, v.PolicyID, versionID, userID, role, accepted, reason); err != nil {
				return err
			}

			res, err = s.engine.Evaluate(tx, v, role)
			return err
		})
	})
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(string(role), string(d.Outcome))
		s.metrics.PendingDecisionsSeen.Set(float64(res.Tally.Pending))
		if res.Resolved {
			s.metrics.RecordResolution(string(role), string(res.Verdict))
		}
	}
	if res.Resolved {
		s.log.LogQuorumResolution(versionID, string(role), string(res.Verdict), res.Tally.Accepted, res.Tally.Total)
	}
	return d, res, nil
}

// ListDecisions returns the decision set for a (version, role)
func (s *Service) ListDecisions(versionID string, role policy.Role) ([]*decision.Decision, error) {
	if _, err := s.versions.Get(versionID); err != nil {
		return nil, err
	}
	return s.decisions.ListCommitted(versionID, role)
}

// ========== Template Operations ==========

// StoreTemplate stores a template file for a policy
func (s *Service) StoreTemplate(policyID, name string, file []byte, fileName, fileType string) (*template.Template, error) {
	if _, err := s.policies.Get(policyID); err != nil {
		return nil, err
	}

	fileRef, err := s.blobs.Put(file)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	t := &template.Template{
		PolicyID: policyID,
		Name:     name,
		FileRef:  fileRef,
		FileName: fileName,
		FileType: fileType,
	}
	err = s.instrument("StoreTemplate", func() error {
		return s.kv.Update(func(tx *storage.KVTX) error {
			return s.templates.Create(tx, t)
		})
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTemplate retrieves a template record by ID
func (s *Service) GetTemplate(templateID string) (*template.Template, error) {
	return s.templates.Get(templateID)
}

// ListTemplates returns all templates of a policy
func (s *Service) ListTemplates(policyID string) ([]*template.Template, error) {
	if _, err := s.policies.Get(policyID); err != nil {
		return nil, err
	}
	return s.templates.ListByPolicy(policyID)
}

// DownloadTemplate fetches a template's file bytes from the blob store
func (s *Service) DownloadTemplate(templateID string) ([]byte, *template.Template, error) {
	t, err := s.templates.Get(templateID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.blobs.Get(t.FileRef)
	if err != nil {
		return nil, nil, err
	}
	return data, t, nil
}

// ========== Status ==========

// Stats summarizes store contents for the observability endpoints
type Stats struct {
	Policies      int64     `json:"policies"`
	Versions      int64     `json:"versions"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	StartedAt     time.Time `json:"started_at"`
}

// Stats counts policies and versions and refreshes the store gauges
func (s *Service) Stats() Stats {
	policies, _ := s.policies.List()

	var versions int64
	s.kv.Scan(storage.EncodeKey(version.PREFIX_VERSION, nil), func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != version.PREFIX_VERSION {
			return false
		}
		versions++
		return true
	})

	st := Stats{
		Policies:      int64(len(policies)),
		Versions:      versions,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		StartedAt:     s.startTime,
	}
	if s.metrics != nil {
		s.metrics.UpdateStoreStats(0, st.Policies, st.Versions)
	}
	return st
}
