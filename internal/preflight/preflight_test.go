package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"m4bsweep/internal/services"
	"m4bsweep/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func fakeStatfs(bavail uint64) func(string, *unix.Statfs_t) error {
	return func(_ string, st *unix.Statfs_t) error {
		st.Bavail = bavail
		st.Bsize = 4096
		return nil
	}
}

func TestCheckFreeSpace(t *testing.T) {
	restore := SetStatfsForTests(fakeStatfs(1 << 18)) // 1 GiB in 4 KiB blocks
	defer restore()

	if result := CheckFreeSpace("space", "/books", 1<<29); !result.Passed {
		t.Fatalf("expected pass with 1 GiB free, got %s", result.Detail)
	}
	result := CheckFreeSpace("space", "/books", 2<<30)
	if result.Passed {
		t.Fatal("expected failure below floor")
	}
	if !strings.Contains(result.Detail, "need 2.0 GiB") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckFreeSpace_StatError(t *testing.T) {
	restore := SetStatfsForTests(func(string, *unix.Statfs_t) error { return unix.ENOENT })
	defer restore()

	if result := CheckFreeSpace("space", "/missing", 0); result.Passed {
		t.Fatal("expected statfs failure to fail the check")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_StubbedTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())

	results := RunAll(context.Background(), cfg)
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	want := "FFmpeg,FFprobe,FFmpeg aac encoder,Library root,Free space"
	if got := strings.Join(names, ","); got != want {
		t.Fatalf("unexpected checks: got %s want %s", got, want)
	}
	if err := Failed(results); err != nil {
		t.Fatalf("expected no failure, got %v", err)
	}
}

func TestRunAll_MissingBinarySkipsEncoderCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Encode.FFmpegBinary = filepath.Join(t.TempDir(), "no-ffmpeg")
	cfg.Sweep.DryRun = true

	results := RunAll(context.Background(), cfg)
	for _, r := range results {
		if strings.HasSuffix(r.Name, "encoder") {
			t.Fatalf("encoder check should be skipped when ffmpeg is missing: %+v", r)
		}
		if r.Name == "Free space" {
			t.Fatal("free space is not checked for dry runs")
		}
	}
	err := Failed(results)
	if err == nil {
		t.Fatal("expected missing ffmpeg to fail preflight")
	}
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(err.Error(), "FFmpeg") {
		t.Fatalf("expected failure to name FFmpeg, got %v", err)
	}
}

func TestRunAll_NoRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Sweep.Root = ""

	for _, r := range RunAll(context.Background(), cfg) {
		if r.Name == "Library root" {
			t.Fatal("root check should be skipped without a root")
		}
	}
}
