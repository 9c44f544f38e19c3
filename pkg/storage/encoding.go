// ABOUTME: Order-preserving encoding for composite keys and row values
// ABOUTME: Supports bytes, uint64 and time columns with lexicographic ordering

package storage

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Value types for composite keys and encoded rows
const (
	TYPE_BYTES  = 1
	TYPE_UINT64 = 2
	TYPE_TIME   = 3 // Stored as int64 Unix timestamp
	TYPE_BOOL   = 4
)

// Value represents a single column in a composite key or row
type Value struct {
	Type uint8
	Str  []byte
	U64  uint64
	Time time.Time
	Bool bool
}

// NewBytesValue creates a bytes value
func NewBytesValue(data []byte) Value {
	return Value{Type: TYPE_BYTES, Str: data}
}

// NewStringValue creates a bytes value from a string
func NewStringValue(s string) Value {
	return Value{Type: TYPE_BYTES, Str: []byte(s)}
}

// NewUint64Value creates a uint64 value
func NewUint64Value(u uint64) Value {
	return Value{Type: TYPE_UINT64, U64: u}
}

// NewTimeValue creates a time value
func NewTimeValue(t time.Time) Value {
	return Value{Type: TYPE_TIME, Time: t}
}

// NewBoolValue creates a bool value
func NewBoolValue(b bool) Value {
	return Value{Type: TYPE_BOOL, Bool: b}
}

// EncodeValues encodes multiple values in order-preserving format.
// Each value is tagged with its type so decoding needs no schema.
func EncodeValues(vals []Value) []byte {
	out := make([]byte, 0, 128)
	for _, v := range vals {
		out = append(out, byte(v.Type))

		switch v.Type {
		case TYPE_UINT64:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], v.U64)
			out = append(out, buf[:]...)

		case TYPE_TIME:
			// Sign bit flipped so pre-1970 dates still order correctly
			var buf [8]byte
			u := uint64(v.Time.Unix()) + (1 << 63)
			binary.BigEndian.PutUint64(buf[:], u)
			out = append(out, buf[:]...)

		case TYPE_BYTES:
			out = append(out, escapeBytes(v.Str)...)
			out = append(out, 0)

		case TYPE_BOOL:
			if v.Bool {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}

		default:
			panic(fmt.Sprintf("unknown value type: %d", v.Type))
		}
	}
	return out
}

// escapeBytes escapes null bytes and 0xFF for embedding in keys
func escapeBytes(s []byte) []byte {
	escapes := 0
	for _, b := range s {
		if b == 0 || b == 0xFF {
			escapes++
		}
	}
	if escapes == 0 {
		return s
	}

	out := make([]byte, 0, len(s)+escapes)
	for _, b := range s {
		switch b {
		case 0:
			out = append(out, 0xFE, 0x00)
		case 0xFF:
			out = append(out, 0xFE, 0xFF)
		default:
			out = append(out, b)
		}
	}
	return out
}

// unescapeBytes reverses escapeBytes
func unescapeBytes(s []byte) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0xFE && i+1 < len(s) {
			out = append(out, s[i+1])
			i++
		} else {
			out = append(out, s[i])
		}
	}
	return out
}

// DecodeValues decodes values from encoded format
func DecodeValues(data []byte) ([]Value, error) {
	vals := make([]Value, 0, 8)
	pos := 0

	for pos < len(data) {
		typ := data[pos]
		pos++

		switch typ {
		case TYPE_UINT64:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("incomplete uint64 at pos %d", pos)
			}
			vals = append(vals, NewUint64Value(binary.BigEndian.Uint64(data[pos:pos+8])))
			pos += 8

		case TYPE_TIME:
			if pos+8 > len(data) {
				return nil, fmt.Errorf("incomplete time at pos %d", pos)
			}
			u := binary.BigEndian.Uint64(data[pos : pos+8])
			vals = append(vals, NewTimeValue(time.Unix(int64(u-(1<<63)), 0)))
			pos += 8

		case TYPE_BYTES:
			end := pos
			for end < len(data) && data[end] != 0 {
				end++
			}
			if end >= len(data) {
				return nil, fmt.Errorf("unterminated bytes at pos %d", pos)
			}
			vals = append(vals, NewBytesValue(unescapeBytes(data[pos:end])))
			pos = end + 1

		case TYPE_BOOL:
			if pos >= len(data) {
				return nil, fmt.Errorf("incomplete bool at pos %d", pos)
			}
			vals = append(vals, NewBoolValue(data[pos] == 1))
			pos++

		default:
			return nil, fmt.Errorf("unknown value type: %d at pos %d", typ, pos-1)
		}
	}

	return vals, nil
}

// EncodeKey encodes a composite key with a table prefix
func EncodeKey(prefix uint32, vals []Value) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], prefix)
	out := append([]byte{}, buf[:]...)
	out = append(out, EncodeValues(vals)...)
	return out
}

// ExtractPrefix extracts the table prefix from an encoded key
func ExtractPrefix(key []byte) uint32 {
	if len(key) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(key[:4])
}

// ExtractValues extracts and decodes the columns of an encoded key
func ExtractValues(key []byte) ([]Value, error) {
	if len(key) < 4 {
		return nil, fmt.Errorf("key too short")
	}
	return DecodeValues(key[4:])
}
