package storage

import "errors"

var (
	// ErrNotFound is returned when a record does not exist in the backend.
	ErrNotFound = errors.New("record not found")

	// ErrConnection is returned when the backend cannot be reached.
	ErrConnection = errors.New("storage connection failed")
)
