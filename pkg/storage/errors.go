package storage

import "errors"

var (
	// ErrTruncated indicates a log record was cut short, usually by a crash
	ErrTruncated = errors.New("storage: truncated log record")

	// ErrCorrupted indicates a log record failed its checksum
	ErrCorrupted = errors.New("storage: corrupted log record")

	// ErrClosed indicates an operation on a closed store
	ErrClosed = errors.New("storage: store is closed")
)
