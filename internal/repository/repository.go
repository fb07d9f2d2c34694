package repository

import "errors"

var (
	// ErrNotFound means no row matched.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict means a compare-and-swap update lost the race: the
	// row's version no longer matched the snapshot the caller read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrActiveSessionExists means the partial unique index on active
	// sessions rejected an insert.
	ErrActiveSessionExists = errors.New("active session already exists")
)
