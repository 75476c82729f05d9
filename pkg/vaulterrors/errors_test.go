package vaulterrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesOnKind(t *testing.T) {
	err := New(RegionNotFound, "r-%d", 7)
	if !errors.Is(err, ErrRegionNotFound) {
		t.Fatalf("expected errors.Is to match on Kind, got %v", err)
	}
	if errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected mismatched Kind not to match, got %v", err)
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	inner := New(BackendUnavailable, "connection refused")
	outer := fmt.Errorf("recover regions: %w", inner)
	if !errors.Is(outer, ErrBackendUnavailable) {
		t.Fatalf("expected match through fmt.Errorf wrapping, got %v", outer)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(BackendUnavailable, cause, "upsert point %s", "u1")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(New(PayloadMissing, "ab/abcd"))
	if !ok || kind != PayloadMissing {
		t.Fatalf("expected PayloadMissing, got %v (ok=%v)", kind, ok)
	}
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatal("expected KindOf to reject a non-vault error")
	}
}

func TestErrorString(t *testing.T) {
	err := New(DuplicateID, "u1")
	if got := err.Error(); got != "DuplicateId: u1" {
		t.Fatalf("unexpected Error() text %q", got)
	}
}
