// ABOUTME: Tests for order-preserving key and value encoding
// ABOUTME: Verifies lexicographic ordering matches logical column ordering

package storage

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0)
	vals := []Value{
		NewStringValue("policy-123"),
		NewUint64Value(42),
		NewTimeValue(now),
		NewBoolValue(true),
		NewBoolValue(false),
	}

	decoded, err := DecodeValues(EncodeValues(vals))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(decoded) != len(vals) {
		t.Fatalf("Expected %d values, got %d", len(vals), len(decoded))
	}

	if string(decoded[0].Str) != "policy-123" {
		t.Errorf("Expected policy-123, got %s", decoded[0].Str)
	}
	if decoded[1].U64 != 42 {
		t.Errorf("Expected 42, got %d", decoded[1].U64)
	}
	if !decoded[2].Time.Equal(now) {
		t.Errorf("Expected %v, got %v", now, decoded[2].Time)
	}
	if !decoded[3].Bool || decoded[4].Bool {
		t.Errorf("Bool round-trip failed: %v %v", decoded[3].Bool, decoded[4].Bool)
	}
}

func TestEncodeBytesWithSpecialChars(t *testing.T) {
	raw := []byte{'a', 0x00, 'b', 0xFF, 'c', 0xFE, 'd'}

	decoded, err := DecodeValues(EncodeValues([]Value{NewBytesValue(raw)}))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !bytes.Equal(decoded[0].Str, raw) {
		t.Errorf("Expected %v, got %v", raw, decoded[0].Str)
	}
}

func TestUint64KeyOrdering(t *testing.T) {
	// Encoded sequence numbers must sort in numeric order
	prev := EncodeKey(2100, []Value{NewStringValue("p"), NewUint64Value(0)})
	for _, seq := range []uint64{1, 2, 9, 10, 255, 256, 1 << 32} {
		cur := EncodeKey(2100, []Value{NewStringValue("p"), NewUint64Value(seq)})
		if bytes.Compare(prev, cur) >= 0 {
			t.Errorf("Encoding broke ordering at seq %d", seq)
		}
		prev = cur
	}
}

func TestTimeKeyOrdering(t *testing.T) {
	// Pre-epoch times must still sort before later ones
	times := []time.Time{
		time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Unix(0, 0),
		time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := 1; i < len(times); i++ {
		a := EncodeValues([]Value{NewTimeValue(times[i-1])})
		b := EncodeValues([]Value{NewTimeValue(times[i])})
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("Time ordering broken between %v and %v", times[i-1], times[i])
		}
	}
}

func TestExtractPrefixAndValues(t *testing.T) {
	key := EncodeKey(3000, []Value{
		NewStringValue("version-1"),
		NewStringValue("user-1"),
	})

	if ExtractPrefix(key) != 3000 {
		t.Errorf("Expected prefix 3000, got %d", ExtractPrefix(key))
	}

	vals, err := ExtractValues(key)
	if err != nil {
		t.Fatalf("Failed to extract values: %v", err)
	}
	if len(vals) != 2 {
		t.Fatalf("Expected 2 values, got %d", len(vals))
	}
	if string(vals[0].Str) != "version-1" || string(vals[1].Str) != "user-1" {
		t.Errorf("Extracted wrong values: %s, %s", vals[0].Str, vals[1].Str)
	}
}

func TestDecodeTruncatedInput(t *testing.T) {
	enc := EncodeValues([]Value{NewUint64Value(7)})
	if _, err := DecodeValues(enc[:5]); err == nil {
		t.Error("Expected error decoding truncated uint64")
	}

	enc = EncodeValues([]Value{NewStringValue("abc")})
	if _, err := DecodeValues(enc[:len(enc)-1]); err == nil {
		t.Error("Expected error decoding unterminated bytes")
	}
}
