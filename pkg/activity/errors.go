package activity

import "errors"

// Common errors returned by the activity package.
var (
	// ErrMalformedLine is returned when a log line is not valid JSON.
	ErrMalformedLine = errors.New("malformed JSON line")

	// ErrNotUsage is returned for lines that carry no token usage, such
	// as user messages and summaries.
	ErrNotUsage = errors.New("line carries no usage")

	// ErrInvalidTimestamp is returned when a usage line has no timestamp.
	ErrInvalidTimestamp = errors.New("invalid timestamp: must not be zero")

	// ErrNegativeTokenCount is returned when any token count is negative.
	ErrNegativeTokenCount = errors.New("invalid token count: must be non-negative")

	// ErrInvalidWindow is returned by ParseWindow.
	ErrInvalidWindow = errors.New("window must be session, week or a positive duration")

	// ErrFileTooLarge is returned when a file exceeds Config.MaxFileSize.
	ErrFileTooLarge = errors.New("file size exceeds maximum limit")
)
