package supervisor

import "errors"

// Common errors returned by the supervisor package.
var (
	// ErrStart is returned when the child cannot be spawned.
	ErrStart = errors.New("failed to start process")

	// ErrTimeout is returned by Wait when the hard timeout killed the child.
	ErrTimeout = errors.New("process exceeded hard timeout")

	// ErrNotRunning is returned by Send after the terminal has closed.
	ErrNotRunning = errors.New("process is not running")

	// ErrEmptyPath is returned when Spec.Path is empty.
	ErrEmptyPath = errors.New("executable path must not be empty")
)
