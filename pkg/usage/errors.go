package usage

import (
	"errors"
	"fmt"
)

// Kind classifies a fetch failure.
type Kind string

// Failure kinds surfaced to callers.
const (
	KindNoCredential            Kind = "no_credential"
	KindInvalidCredentialFormat Kind = "invalid_credential_format"
	KindAuthenticationFailed    Kind = "authentication_failed"
	KindServerError             Kind = "server_error"
	KindNoOrganization          Kind = "no_organization"
	KindTimeout                 Kind = "timeout"
	KindProcessSpawnFailure     Kind = "process_spawn_failure"
	KindProcessError            Kind = "process_error"
	KindNoOutput                Kind = "no_output"
	KindUnknown                 Kind = "unknown"
)

// RequiresReauth reports whether the caller should drop its cached
// "credential exists" flag and prompt for a new credential.
func (k Kind) RequiresReauth() bool {
	return k == KindAuthenticationFailed || k == KindInvalidCredentialFormat
}

// Sentinel errors for errors.Is checks. Matching compares Kind only.
var (
	ErrNoCredential            = &Error{Kind: KindNoCredential}
	ErrInvalidCredentialFormat = &Error{Kind: KindInvalidCredentialFormat}
	ErrAuthenticationFailed    = &Error{Kind: KindAuthenticationFailed}
	ErrServerError             = &Error{Kind: KindServerError}
	ErrNoOrganization          = &Error{Kind: KindNoOrganization}
	ErrTimeout                 = &Error{Kind: KindTimeout}
	ErrProcessSpawnFailure     = &Error{Kind: KindProcessSpawnFailure}
	ErrProcessError            = &Error{Kind: KindProcessError}
	ErrNoOutput                = &Error{Kind: KindNoOutput}
)

// Error is a typed fetch failure.
type Error struct {
	Kind Kind

	// Status is the HTTP status for KindServerError.
	Status int

	// ExitCode and Stderr describe a failed child for KindProcessError.
	ExitCode int
	Stderr   string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindNoCredential:
		msg = "no session key found"
	case KindInvalidCredentialFormat:
		msg = "invalid session key format"
	case KindAuthenticationFailed:
		msg = "unauthorized"
	case KindServerError:
		msg = fmt.Sprintf("server error: %d", e.Status)
	case KindNoOrganization:
		msg = "no organizations found"
	case KindTimeout:
		msg = "usage command timed out"
	case KindProcessSpawnFailure:
		msg = "failed to start usage command"
	case KindProcessError:
		msg = fmt.Sprintf("usage command exited with code %d", e.ExitCode)
		if e.Stderr != "" {
			msg += ": " + e.Stderr
		}
	case KindNoOutput:
		msg = "usage command produced no output"
	default:
		msg = "usage fetch failed"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an Error of the given kind wrapping cause.
func NewError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
