package history

import "errors"

// Common errors returned by the history store.
var (
	// ErrEntryNotFound is returned when an entry is not found.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrInvalidID is returned when an entry ID is not a UUID.
	ErrInvalidID = errors.New("invalid entry ID")

	// ErrNilSnapshot is returned when Record is given a nil snapshot.
	ErrNilSnapshot = errors.New("snapshot must not be nil")
)
