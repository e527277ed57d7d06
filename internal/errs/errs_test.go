package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesByKindNotMessage(t *testing.T) {
	err := Wrap(MissingChannel, nil, "channel %q", "LapDist")

	if !errors.Is(err, Sentinel(MissingChannel)) {
		t.Error("errors.Is should match on Kind alone")
	}
	if errors.Is(err, Sentinel(NoUsableLap)) {
		t.Error("errors.Is should not match a different Kind")
	}
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := fmt.Errorf("eof")
	err := New(MalformedCapture, "truncated header", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) should hold through Unwrap")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the wrapped cause")
	}
}

func TestError_AsExtractsKind(t *testing.T) {
	err := Wrap(TrackStoreUnavailable, nil, "open %q", "trackstore.db")

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("errors.As should extract *Error")
	}
	if e.Kind != TrackStoreUnavailable {
		t.Errorf("Kind = %q, want %q", e.Kind, TrackStoreUnavailable)
	}
}

func TestError_MessageIncludesCauseWhenPresent(t *testing.T) {
	withCause := New(Internal, "boom", fmt.Errorf("nested"))
	withoutCause := New(Internal, "boom", nil)

	if withCause.Error() == withoutCause.Error() {
		t.Error("messages with and without a cause should differ")
	}
}
