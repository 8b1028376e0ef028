package display

import "errors"

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// ErrNilSnapshot is returned when there is nothing to format.
var ErrNilSnapshot = errors.New("no snapshot to display")

// ErrNilSummary is returned when there is no activity summary to format.
var ErrNilSummary = errors.New("no activity summary to display")
