package local

import "errors"

var (
	// ErrNotFound is returned when a record is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for collection, id or file names that are
	// empty or contain path separators
	ErrInvalidName = errors.New("invalid record name")
)
