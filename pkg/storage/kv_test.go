// ABOUTME: Integration tests for the commit-log-backed KV store
// ABOUTME: Tests persistence, replay of uncommitted tails, and transactions

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func testPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func TestKVBasicOperations(t *testing.T) {
	db := &KV{Path: testPath(t)}
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Set([]byte("key1"), []byte("value1")); err != nil {
		t.Fatalf("Failed to set key1: %v", err)
	}
	if err := db.Set([]byte("key2"), []byte("value2")); err != nil {
		t.Fatalf("Failed to set key2: %v", err)
	}

	val, ok := db.Get([]byte("key1"))
	if !ok {
		t.Fatal("key1 not found")
	}
	if string(val) != "value1" {
		t.Errorf("Expected value1, got %s", val)
	}

	existed, err := db.Del([]byte("key1"))
	if err != nil {
		t.Fatalf("Failed to delete key1: %v", err)
	}
	if !existed {
		t.Error("Expected key1 to exist before delete")
	}
	if _, ok := db.Get([]byte("key1")); ok {
		t.Error("key1 still present after delete")
	}
}

func TestKVPersistence(t *testing.T) {
	path := testPath(t)

	// First session: write data
	{
		db := &KV{Path: path}
		if err := db.Open(); err != nil {
			t.Fatalf("Failed to open database: %v", err)
		}
		for i := 0; i < 100; i++ {
			key := []byte(fmt.Sprintf("key%03d", i))
			val := []byte(fmt.Sprintf("value%03d", i))
			if err := db.Set(key, val); err != nil {
				t.Fatalf("Failed to set %s: %v", key, err)
			}
		}
		if err := db.Close(); err != nil {
			t.Fatalf("Failed to close database: %v", err)
		}
	}

	// Second session: verify data persisted
	{
		db := &KV{Path: path}
		if err := db.Open(); err != nil {
			t.Fatalf("Failed to reopen database: %v", err)
		}
		defer db.Close()

		for i := 0; i < 100; i++ {
			key := []byte(fmt.Sprintf("key%03d", i))
			val, ok := db.Get(key)
			if !ok {
				t.Fatalf("%s not found after reopen", key)
			}
			expected := fmt.Sprintf("value%03d", i)
			if string(val) != expected {
				t.Errorf("Expected %s, got %s", expected, val)
			}
		}
	}
}

func TestKVScanOrder(t *testing.T) {
	db := &KV{Path: testPath(t)}
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Insert out of order
	for _, k := range []string{"c", "a", "e", "b", "d"} {
		if err := db.Set([]byte(k), []byte("v")); err != nil {
			t.Fatalf("Failed to set %s: %v", k, err)
		}
	}

	var got []string
	db.Scan([]byte("b"), func(key, val []byte) bool {
		got = append(got, string(key))
		return true
	})

	expected := []string{"b", "c", "d", "e"}
	if len(got) != len(expected) {
		t.Fatalf("Expected %d keys, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], got[i])
		}
	}
}

func TestTransactionAbort(t *testing.T) {
	db := &KV{Path: testPath(t)}
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Set([]byte("stable"), []byte("1")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	err := db.Update(func(tx *KVTX) error {
		tx.Set([]byte("doomed"), []byte("x"))
		tx.Del([]byte("stable"))
		return fmt.Errorf("rollback")
	})
	if err == nil {
		t.Fatal("Expected error from aborted transaction")
	}

	if _, ok := db.Get([]byte("doomed")); ok {
		t.Error("Aborted write is visible")
	}
	if _, ok := db.Get([]byte("stable")); !ok {
		t.Error("Aborted delete removed committed key")
	}
}

func TestTransactionReadYourWrites(t *testing.T) {
	db := &KV{Path: testPath(t)}
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Set([]byte("b"), []byte("old")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	err := db.Update(func(tx *KVTX) error {
		tx.Set([]byte("a"), []byte("new"))
		tx.Set([]byte("b"), []byte("updated"))
		tx.Del([]byte("b"))

		if _, ok := tx.Get([]byte("b")); ok {
			t.Error("Staged delete not visible inside transaction")
		}
		val, ok := tx.Get([]byte("a"))
		if !ok || string(val) != "new" {
			t.Errorf("Staged write not visible inside transaction: %s", val)
		}

		var keys []string
		tx.Scan([]byte(""), func(key, val []byte) bool {
			keys = append(keys, string(key))
			return true
		})
		if len(keys) != 1 || keys[0] != "a" {
			t.Errorf("Transaction scan saw %v, expected [a]", keys)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestReplayDiscardsUncommittedTail(t *testing.T) {
	path := testPath(t)

	db := &KV{Path: path}
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Set([]byte("committed"), []byte("yes")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// Simulate a crash mid-transaction: a set record with no commit marker
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	partial := encodeRecord(OP_SET, []byte("phantom"), []byte("no"))
	if _, err := f.Write(partial); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	f.Close()

	db2 := &KV{Path: path}
	if err := db2.Open(); err != nil {
		t.Fatalf("Failed to reopen after crash: %v", err)
	}
	defer db2.Close()

	if _, ok := db2.Get([]byte("committed")); !ok {
		t.Error("Committed key lost after recovery")
	}
	if _, ok := db2.Get([]byte("phantom")); ok {
		t.Error("Uncommitted write survived recovery")
	}
}

func TestReplayStopsAtTruncatedRecord(t *testing.T) {
	path := testPath(t)

	db := &KV{Path: path}
	if err := db.Open(); err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := db.Set([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// Append garbage bytes shorter than a record header
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("Failed to open log: %v", err)
	}
	f.Write([]byte{1, 2, 3})
	f.Close()

	db2 := &KV{Path: path}
	if err := db2.Open(); err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer db2.Close()

	if _, ok := db2.Get([]byte("k")); !ok {
		t.Error("Committed key lost after truncated tail")
	}
}
