package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	if KindOf(NewInvalidInputError("C", "m")) != ErrorKindInvalidInput {
		t.Error("expected invalid_input kind")
	}
	if KindOf(errors.New("plain")) != ErrorKindInternal {
		t.Error("foreign errors default to internal")
	}

	wrapped := fmt.Errorf("context: %w", ErrSessionNotFound)
	if !IsNotFound(wrapped) {
		t.Error("kind must survive wrapping")
	}
}

func TestWithCauseDoesNotMutateSentinel(t *testing.T) {
	cause := errors.New("boom")
	derived := ErrSessionNotFound.WithCause(cause)

	if ErrSessionNotFound.Cause != nil {
		t.Fatal("sentinel error was mutated by WithCause")
	}
	if !errors.Is(derived, cause) {
		t.Error("derived error must unwrap to its cause")
	}
}

func TestWithMetadataCopies(t *testing.T) {
	base := NewExternalError("X", "m").WithMetadata("a", 1)
	derived := base.WithMetadata("b", 2)

	if _, ok := base.Metadata["b"]; ok {
		t.Error("metadata of the base error was mutated")
	}
	if derived.Metadata["a"] != 1 || derived.Metadata["b"] != 2 {
		t.Errorf("derived metadata incomplete: %v", derived.Metadata)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := NewExternalError("GEMINI_UNAVAILABLE", "call failed").WithCause(errors.New("dial tcp"))
	want := "GEMINI_UNAVAILABLE: call failed: dial tcp"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}
