package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"m4bsweep/internal/history"
	"m4bsweep/internal/pathclass"
	"m4bsweep/internal/pipeline"
	"m4bsweep/internal/runlock"
	"m4bsweep/internal/testsupport"
)

func TestRunConvertsMixedLibrary(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("a.m4b"), "aac")
	testsupport.WriteBook(t, env.path("nested/b.m4b"), "mp3")
	testsupport.WriteBook(t, env.path("c.m4b"), "")

	out, stderr, err := runCLI(t, []string{"run"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr)
	}
	for _, fragment := range []string{"Already Encoded", "Unrecognized Codec", "Converted", "Saved"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in summary:\n%s", fragment, out)
		}
	}
	if got := testsupport.BookCodec(t, env.path("nested/b.m4b")); got != "aac" {
		t.Fatalf("expected b.m4b converted to aac, got %q", got)
	}
	backup := pathclass.BackupPath(env.path("nested/b.m4b"))
	if got := testsupport.BookCodec(t, backup); got != "mp3" {
		t.Fatalf("expected backup to hold the original, got %q", got)
	}
	if env.transcoder.Calls() != 1 {
		t.Fatalf("expected one transcode, got %d", env.transcoder.Calls())
	}
	if !strings.Contains(stderr, "sweep started") {
		t.Fatalf("expected logs on stderr, got %q", stderr)
	}

	store, err := history.Open(env.cfg.History.Path)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	runs, err := store.ListRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Converted != 1 || runs[0].SkippedEncoded != 1 || runs[0].SkippedUnrecognized != 1 {
		t.Fatalf("unexpected history: %+v", runs)
	}
	if !runs[0].Finished() {
		t.Fatal("expected run to be closed out")
	}
}

func TestRunSecondPassConvertsNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")

	if _, stderr, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("first run: %v\n%s", err, stderr)
	}
	if _, stderr, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("second run: %v\n%s", err, stderr)
	}
	if env.transcoder.Calls() != 1 {
		t.Fatalf("second run should not transcode, got %d calls", env.transcoder.Calls())
	}
}

func TestRunFailureMapsToExitStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	env.transcoder.FailPaths = map[string]bool{"bad.m4b": true}
	testsupport.WriteBook(t, env.path("bad.m4b"), "mp3")

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, pipeline.ErrJobsFailed) {
		t.Fatalf("expected ErrJobsFailed, got %v", err)
	}
	if exitCode(err) != exitJobsFailed {
		t.Fatalf("expected exit status %d, got %d", exitJobsFailed, exitCode(err))
	}
	if !strings.Contains(out, "bad.m4b") || !strings.Contains(out, "external_tool") {
		t.Fatalf("expected failure table naming the file, got:\n%s", out)
	}
	if got := testsupport.BookCodec(t, env.path("bad.m4b")); got != "mp3" {
		t.Fatalf("original must be untouched, got %q", got)
	}
	if _, err := os.Stat(pathclass.TempPath(env.path("bad.m4b"))); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be removed, stat err=%v", err)
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	target := env.path("b.m4b")
	testsupport.WriteBook(t, target, "mp3")

	if _, stderr, err := runCLI(t, []string{"run", "--keep-backup=false", "--jobs", "1", env.root}, env.configPath); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}
	if _, err := os.Stat(pathclass.BackupPath(target)); !os.IsNotExist(err) {
		t.Fatalf("expected no backup with --keep-backup=false, stat err=%v", err)
	}
	if got := testsupport.BookCodec(t, target); got != "aac" {
		t.Fatalf("expected converted file, got %q", got)
	}
}

func TestRunDryRunChangesNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	target := env.path("b.m4b")
	testsupport.WriteBook(t, target, "mp3")

	out, _, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !strings.Contains(out, "Would Convert") {
		t.Fatalf("expected would-convert row, got:\n%s", out)
	}
	if env.transcoder.Calls() != 0 {
		t.Fatal("dry run must not transcode")
	}
	if got := testsupport.BookCodec(t, target); got != "mp3" {
		t.Fatalf("dry run modified the file: %q", got)
	}
}

func TestRunCleansStaleTemps(t *testing.T) {
	env := setupCLITestEnv(t)
	target := env.path("b.m4b")
	testsupport.WriteBook(t, target, "aac")
	stale := pathclass.TempPath(target)
	if err := os.WriteFile(stale, []byte("partial"), 0o644); err != nil {
		t.Fatalf("write stale temp: %v", err)
	}

	out, _, err := runCLI(t, []string{"run", "--clean-temp"}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Removed 1 stale temporary file") {
		t.Fatalf("expected cleanup message, got:\n%s", out)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale temp removed, stat err=%v", err)
	}
}

func TestRunRefusesConcurrentSweep(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")

	lock, err := runlock.Acquire(env.root)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lock.Release()

	_, _, err = runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, runlock.ErrHeld) {
		t.Fatalf("expected ErrHeld, got %v", err)
	}
	if exitCode(err) != exitFailure {
		t.Fatalf("expected exit status %d, got %d", exitFailure, exitCode(err))
	}
	if env.transcoder.Calls() != 0 {
		t.Fatal("locked run must not transcode")
	}
}

func TestRunCanceledBeforeStartIsInterrupted(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := runCLIContext(t, ctx, []string{"run"}, env.configPath)
	if exitCode(err) != exitInterrupted {
		t.Fatalf("expected interrupt exit status, got %d (%v)", exitCode(err), err)
	}
	if got := testsupport.BookCodec(t, env.path("b.m4b")); got != "mp3" {
		t.Fatalf("interrupted run modified the file: %q", got)
	}
}

func TestRunRequiresRoot(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Sweep.Root = ""
	writeTestConfig(t, env.configPath, env.cfg)

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "sweep.root is required") {
		t.Fatalf("expected missing root error, got %v", err)
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{errors.New("boom"), exitFailure},
		{pipeline.ErrJobsFailed, exitJobsFailed},
		{pipeline.ErrInterrupted, exitInterrupted},
		{context.Canceled, exitInterrupted},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
