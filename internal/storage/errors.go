package storage

import "errors"

// Storage errors shared by every store implementation.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a history record whose
	// history_id already exists. History is append-only; duplicates must
	// surface instead of silently replacing a record.
	ErrDuplicateKey = errors.New("duplicate key: history store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
