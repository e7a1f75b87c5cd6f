package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("socket reset")
	err := WrapError(ErrNetwork, "connection lost", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	err := NewError(ErrPermissionDenied, "rule rejected write")
	if KindOf(err) != ErrPermissionDenied {
		t.Fatalf("KindOf = %v, want %v", KindOf(err), ErrPermissionDenied)
	}
	if KindOf(fmt.Errorf("plain error")) != ErrInternal {
		t.Fatal("KindOf on a non-model error should default to ErrInternal")
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := NewError(ErrDataStale, "hash mismatch")
	wrapped := fmt.Errorf("transaction failed: %w", base)
	if KindOf(wrapped) != ErrDataStale {
		t.Fatalf("KindOf should see through fmt.Errorf wrapping, got %v", KindOf(wrapped))
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	err := WrapError(ErrNetwork, "dial failed", fmt.Errorf("timeout"))
	got := err.Error()
	if !strings.Contains(got, "timeout") {
		t.Fatalf("expected error message to include the cause, got %q", got)
	}
}
