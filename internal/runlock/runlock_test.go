package runlock

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAcquireIsExclusive(t *testing.T) {
	root := t.TempDir()

	first, err := Acquire(root)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if first.Path() != filepath.Join(root, FileName) {
		t.Fatalf("unexpected lock path %q", first.Path())
	}

	if _, err := Acquire(root); !errors.Is(err, ErrHeld) {
		t.Fatalf("expected ErrHeld for second acquire, got %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := Acquire(root)
	if err != nil {
		t.Fatalf("expected lock to be free after release: %v", err)
	}
	_ = second.Release()
}

func TestAcquireMissingRoot(t *testing.T) {
	if _, err := Acquire(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Fatalf("nil release should be a no-op: %v", err)
	}
}
