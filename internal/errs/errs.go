// Package errs defines the stable, distinguishable error kinds the
// telemetry core reports across its pipeline stages.
package errs

import "fmt"

// Kind is one of the error tags named in the error handling design.
type Kind string

const (
	MalformedCapture       Kind = "MalformedCapture"
	UnsupportedChannelType Kind = "UnsupportedChannelType"
	MissingChannel         Kind = "MissingChannel"
	NoUsableLap            Kind = "NoUsableLap"
	TrackStoreUnavailable  Kind = "TrackStoreUnavailable"
	SeedingFailed          Kind = "SeedingFailed"
	Cancelled              Kind = "Cancelled"
	Internal               Kind = "Internal"
)

// Error wraps an underlying cause with a stable Kind tag so callers can
// branch with errors.Is/As without string-matching messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so
// errors.Is(err, errs.New(errs.MissingChannel, "", nil)) works without
// requiring identical messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// Wrap is a convenience for New(kind, fmt.Sprintf(format, args...), cause).
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: cause}
}

// Sentinel returns a bare *Error of the given kind, for use with errors.Is.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind} }
