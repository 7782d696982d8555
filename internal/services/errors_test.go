package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"m4bsweep/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "encode", "ffmpeg", "exit status 1", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"encode", "ffmpeg", "exit status 1"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestKindLabels(t *testing.T) {
	cases := map[string]error{
		"":              nil,
		"timeout":       services.Wrap(services.ErrTimeout, "encode", "ffmpeg", "deadline", nil),
		"canceled":      services.Wrap(services.ErrCanceled, "encode", "ffmpeg", "interrupted", nil),
		"validation":    services.Wrap(services.ErrValidation, "encode", "verify", "chapter mismatch", nil),
		"external_tool": services.Wrap(services.ErrExternalTool, "probe", "ffprobe", "exit", nil),
		"transient":     errors.New("plain"),
	}
	for want, err := range cases {
		if got := services.Kind(err); got != want {
			t.Fatalf("Kind(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestContextMarker(t *testing.T) {
	if services.ContextMarker(context.Background()) != nil {
		t.Fatal("expected nil marker for live context")
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if !errors.Is(services.ContextMarker(canceled), services.ErrCanceled) {
		t.Fatal("expected canceled marker")
	}

	expired, cancelExpired := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancelExpired()
	<-expired.Done()
	if !errors.Is(services.ContextMarker(expired), services.ErrTimeout) {
		t.Fatal("expected timeout marker")
	}
}
