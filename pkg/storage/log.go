// ABOUTME: CRC32-framed append-only commit log backing the KV store
// ABOUTME: Records are grouped per transaction and applied only after a commit marker

package storage

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// Log operation types
const (
	OP_SET    = byte(1)
	OP_DELETE = byte(2)
	OP_COMMIT = byte(3)
)

// recordHeaderSize is OpType(1) + KeyLen(4) + ValLen(4)
const recordHeaderSize = 9

// logOp is a single staged operation inside a transaction
type logOp struct {
	op  byte
	key []byte
	val []byte
}

// commitLog is the durable append-only record of committed transactions
type commitLog struct {
	path string
	file *os.File
}

// openLog opens or creates the commit log file
func openLog(path string) (*commitLog, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open commit log: %w", err)
	}
	return &commitLog{path: path, file: f}, nil
}

// Close closes the log file
func (l *commitLog) Close() error {
	return l.file.Close()
}

// encodeRecord frames a single record: [header][key][val][crc32]
func encodeRecord(op byte, key, val []byte) []byte {
	total := recordHeaderSize + len(key) + len(val) + 4
	buf := make([]byte, total)

	buf[0] = op
	binary.LittleEndian.PutUint32(buf[1:5], uint32(len(key)))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(val)))

	offset := recordHeaderSize
	copy(buf[offset:], key)
	offset += len(key)
	copy(buf[offset:], val)
	offset += len(val)

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:], crc)
	return buf
}

// AppendBatch writes a transaction's operations followed by a commit marker
// and fsyncs. A crash before the marker leaves a tail that replay discards.
func (l *commitLog) AppendBatch(ops []logOp) error {
	buf := make([]byte, 0, 256)
	for _, op := range ops {
		buf = append(buf, encodeRecord(op.op, op.key, op.val)...)
	}
	buf = append(buf, encodeRecord(OP_COMMIT, nil, nil)...)

	if _, err := l.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek commit log: %w", err)
	}
	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("append commit log: %w", err)
	}
	return l.file.Sync()
}

// Replay streams committed transactions to apply, in commit order.
// Replay stops at the first truncated or corrupted record: everything past
// that point belongs to a transaction that never committed.
func (l *commitLog) Replay(apply func(op byte, key, val []byte)) error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("read commit log: %w", err)
	}

	var pending []logOp
	pos := 0

	for pos < len(data) {
		op, key, val, n, err := decodeRecord(data[pos:])
		if err != nil {
			// Incomplete trailing transaction, discard
			break
		}
		pos += n

		if op == OP_COMMIT {
			for _, p := range pending {
				apply(p.op, p.key, p.val)
			}
			pending = pending[:0]
			continue
		}
		pending = append(pending, logOp{op: op, key: key, val: val})
	}

	return nil
}

// decodeRecord parses one framed record, returning its size
func decodeRecord(data []byte) (op byte, key, val []byte, n int, err error) {
	if len(data) < recordHeaderSize+4 {
		return 0, nil, nil, 0, ErrTruncated
	}

	op = data[0]
	keyLen := int(binary.LittleEndian.Uint32(data[1:5]))
	valLen := int(binary.LittleEndian.Uint32(data[5:9]))

	total := recordHeaderSize + keyLen + valLen + 4
	if len(data) < total {
		return 0, nil, nil, 0, ErrTruncated
	}

	body := total - 4
	storedCRC := binary.LittleEndian.Uint32(data[body:total])
	if storedCRC != crc32.ChecksumIEEE(data[:body]) {
		return 0, nil, nil, 0, ErrCorrupted
	}

	offset := recordHeaderSize
	if keyLen > 0 {
		key = make([]byte, keyLen)
		copy(key, data[offset:offset+keyLen])
		offset += keyLen
	}
	if valLen > 0 {
		val = make([]byte, valLen)
		copy(val, data[offset:offset+valLen])
	}

	return op, key, val, total, nil
}
