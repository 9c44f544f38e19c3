// ABOUTME: Tests for the version store
// ABOUTME: Covers sequence assignment, latest queries and metadata rules

package version

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nainya/policystore/pkg/storage"
)

func openStore(t *testing.T) (*storage.KV, *Store) {
	kv := &storage.KV{Path: filepath.Join(t.TempDir(), "test.db")}
	if err := kv.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv, NewStore(kv)
}

func createVersion(t *testing.T, kv *storage.KV, vs *Store, v *FileVersion) *FileVersion {
	err := kv.Update(func(tx *storage.KVTX) error {
		return vs.Create(tx, v)
	})
	if err != nil {
		t.Fatalf("Failed to create version: %v", err)
	}
	return v
}

func TestVersionCreateDefaults(t *testing.T) {
	kv, vs := openStore(t)

	v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", Label: "1.0", FileRef: "ref-1"})

	if v.VersionID == "" {
		t.Fatal("Expected generated version ID")
	}
	if v.Seq != 1 {
		t.Errorf("Expected seq 1, got %d", v.Seq)
	}
	if v.Status != StatusCreated {
		t.Errorf("Expected CREATED, got %s", v.Status)
	}
	if v.FinalAcceptance || v.FinalApproval {
		t.Error("New version must have both quorum flags cleared")
	}
}

func TestVersionSequenceIncrements(t *testing.T) {
	kv, vs := openStore(t)

	for i := 1; i <= 5; i++ {
		v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1"})
		if v.Seq != uint64(i) {
			t.Errorf("Expected seq %d, got %d", i, v.Seq)
		}
	}

	// Independent policies get independent sequences
	other := createVersion(t, kv, vs, &FileVersion{PolicyID: "p2"})
	if other.Seq != 1 {
		t.Errorf("Expected seq 1 for new policy, got %d", other.Seq)
	}
}

func TestLatestIsHighestSequence(t *testing.T) {
	kv, vs := openStore(t)

	createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", Label: "1.0"})
	createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", Label: "1.1"})
	last := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", Label: "2.0"})

	latest, err := Latest(kv, "p1")
	if err != nil {
		t.Fatalf("Failed to get latest: %v", err)
	}
	if latest.VersionID != last.VersionID {
		t.Errorf("Expected %s as latest, got %s", last.VersionID, latest.VersionID)
	}
	if latest.Label != "2.0" {
		t.Errorf("Expected label 2.0, got %s", latest.Label)
	}
}

func TestLatestMissingPolicy(t *testing.T) {
	kv, _ := openStore(t)
	if _, err := Latest(kv, "nonexistent"); err != ErrVersionNotFound {
		t.Errorf("Expected ErrVersionNotFound, got %v", err)
	}
}

func TestListByPolicyOrder(t *testing.T) {
	kv, vs := openStore(t)

	for _, label := range []string{"a", "b", "c"} {
		createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", Label: label})
	}

	versions, err := vs.ListByPolicy("p1")
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("Expected 3 versions, got %d", len(versions))
	}
	for i, label := range []string{"a", "b", "c"} {
		if versions[i].Label != label {
			t.Errorf("Position %d: expected %s, got %s", i, label, versions[i].Label)
		}
		if versions[i].Seq != uint64(i+1) {
			t.Errorf("Position %d: expected seq %d, got %d", i, i+1, versions[i].Seq)
		}
	}
}

func TestCreateRejectsInvalidDateRange(t *testing.T) {
	kv, vs := openStore(t)

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, -1, 0)

	err := kv.Update(func(tx *storage.KVTX) error {
		return vs.Create(tx, &FileVersion{PolicyID: "p1", EffectiveStart: start, EffectiveEnd: end})
	})
	if err != ErrInvalidDateRange {
		t.Errorf("Expected ErrInvalidDateRange, got %v", err)
	}
}

func TestCreateAllowsOpenEndedRange(t *testing.T) {
	kv, vs := openStore(t)

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", EffectiveStart: start})

	got, err := vs.Get(v.VersionID)
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if !got.EffectiveEnd.IsZero() {
		t.Errorf("Expected open-ended version, got end %v", got.EffectiveEnd)
	}
}

func TestUpdateMetadata(t *testing.T) {
	kv, vs := openStore(t)
	v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", Label: "1.0", FileRef: "old-ref"})

	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	err := kv.Update(func(tx *storage.KVTX) error {
		_, err := vs.UpdateMetadata(tx, v.VersionID, "new-ref", "doc.pdf", "application/pdf", "1.1", end)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to update metadata: %v", err)
	}

	got, err := vs.Get(v.VersionID)
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if got.FileRef != "new-ref" || got.Label != "1.1" {
		t.Errorf("Metadata not applied: %s / %s", got.FileRef, got.Label)
	}
	if !got.EffectiveEnd.Equal(end) {
		t.Errorf("Expected end %v, got %v", end, got.EffectiveEnd)
	}
	if got.Status != StatusCreated {
		t.Errorf("Metadata update must not change status, got %s", got.Status)
	}
}

func TestUpdateMetadataRefusesTerminal(t *testing.T) {
	kv, vs := openStore(t)
	v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1"})

	err := kv.Update(func(tx *storage.KVTX) error {
		v.Status = StatusApproved
		return vs.Put(tx, v)
	})
	if err != nil {
		t.Fatalf("Failed to put version: %v", err)
	}

	err = kv.Update(func(tx *storage.KVTX) error {
		_, err := vs.UpdateMetadata(tx, v.VersionID, "ref", "f", "t", "l", time.Time{})
		return err
	})
	if err != ErrVersionFinalized {
		t.Errorf("Expected ErrVersionFinalized, got %v", err)
	}
}

func TestUpdateMetadataRejectsEndBeforeStart(t *testing.T) {
	kv, vs := openStore(t)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1", EffectiveStart: start})

	err := kv.Update(func(tx *storage.KVTX) error {
		_, err := vs.UpdateMetadata(tx, v.VersionID, "ref", "f", "t", "l", start.AddDate(0, 0, -1))
		return err
	})
	if err != ErrInvalidDateRange {
		t.Errorf("Expected ErrInvalidDateRange, got %v", err)
	}
}

func TestDeleteByPolicy(t *testing.T) {
	kv, vs := openStore(t)

	a := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1"})
	b := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1"})
	keep := createVersion(t, kv, vs, &FileVersion{PolicyID: "p2"})

	var ids []string
	err := kv.Update(func(tx *storage.KVTX) error {
		ids = vs.DeleteByPolicy(tx, "p1")
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to delete versions: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Expected 2 deleted IDs, got %d", len(ids))
	}

	for _, id := range []string{a.VersionID, b.VersionID} {
		if _, err := vs.Get(id); err != ErrVersionNotFound {
			t.Errorf("Version %s survived delete", id)
		}
	}
	if _, err := vs.Get(keep.VersionID); err != nil {
		t.Errorf("Unrelated version deleted: %v", err)
	}
}

func TestZeroTimesSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	kv := &storage.KV{Path: path}
	if err := kv.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	vs := NewStore(kv)

	v := createVersion(t, kv, vs, &FileVersion{PolicyID: "p1"})
	if err := kv.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	kv2 := &storage.KV{Path: path}
	if err := kv2.Open(); err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer kv2.Close()

	got, err := NewStore(kv2).Get(v.VersionID)
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if !got.ApprovedAt.IsZero() {
		t.Errorf("ApprovedAt not zero after reload: %v", got.ApprovedAt)
	}
	if !got.EffectiveStart.IsZero() || !got.EffectiveEnd.IsZero() {
		t.Error("Effective dates not zero after reload")
	}
}

func TestStatusHelpers(t *testing.T) {
	terminal := []Status{StatusRejectedByReviewers, StatusApproved, StatusRejected}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []Status{StatusCreated, StatusUnderReview, StatusUnderApproval}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if Status("UNKNOWN").Valid() {
		t.Error("Unknown status reported valid")
	}
}
