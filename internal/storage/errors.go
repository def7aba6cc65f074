package storage

import "errors"

// Sentinel errors shared by all store implementations. Transition and
// ledger stores are append-only: a duplicate key is a rejected write,
// never an update.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a record with the same key already
	// exists. Deterministic transition IDs make this the dedup signal on
	// replay reruns.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
