package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"m4bsweep/internal/history"
	"m4bsweep/internal/pathclass"
	"m4bsweep/internal/services"
	"m4bsweep/internal/testsupport"
)

func TestScanCommandListsActions(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("a.m4b"), "aac")
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")
	testsupport.WriteBook(t, env.path("c.m4b"), "")
	if err := os.WriteFile(pathclass.TempPath(env.path("b.m4b")), []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}

	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, fragment := range []string{"a.m4b", "Already Encoded", "mp3", "Convert", "Unrecognized Codec", "Stale Temp", "--clean-temp"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in scan output:\n%s", fragment, out)
		}
	}
	if env.transcoder.Calls() != 0 {
		t.Fatal("scan must not transcode")
	}
	if got := testsupport.BookCodec(t, env.path("b.m4b")); got != "mp3" {
		t.Fatalf("scan modified a file: %q", got)
	}
}

func TestScanCommandReportsOrphanedBackup(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, pathclass.BackupPath(env.path("lost.m4b")), "mp3")

	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, fragment := range []string{"Orphaned Backup", "lost.orig.m4b has no original", "restore with: mv"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in scan output:\n%s", fragment, out)
		}
	}
}

func TestScanCommandNoProbe(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")

	out, _, err := runCLI(t, []string{"scan", "--no-probe"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "b.m4b") {
		t.Fatalf("expected file listed, got:\n%s", out)
	}
	if env.inspector.Calls.Load() != 0 {
		t.Fatal("--no-probe must not inspect files")
	}
}

func TestScanCommandEmptyTree(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"scan"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "No .m4b files found") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCheckCommandPasses(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	for _, fragment := range []string{"FFmpeg", "FFprobe", "aac encoder", "Library root", "OK"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in check output:\n%s", fragment, out)
		}
	}
	if strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected failure:\n%s", out)
	}
}

func TestCheckCommandReportsMissingTool(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Encode.FFmpegBinary = filepath.Join(t.TempDir(), "missing-ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if !strings.Contains(out, "FAIL") {
		t.Fatalf("expected FAIL row, got:\n%s", out)
	}
}

func TestRunStopsOnPreflightFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Encode.FFmpegBinary = filepath.Join(t.TempDir(), "missing-ffmpeg")
	writeTestConfig(t, env.configPath, env.cfg)
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")

	_, _, err := runCLI(t, []string{"run"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if env.inspector.Calls.Load() != 0 {
		t.Fatal("no file should be probed after a failed preflight")
	}
}

func TestHistoryCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteBook(t, env.path("a.m4b"), "aac")
	testsupport.WriteBook(t, env.path("b.m4b"), "mp3")

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history before runs: %v", err)
	}
	if !strings.Contains(out, "No runs recorded") {
		t.Fatalf("expected empty history, got %q", out)
	}

	if _, stderr, err := runCLI(t, []string{"run"}, env.configPath); err != nil {
		t.Fatalf("run: %v\n%s", err, stderr)
	}

	store, err := history.Open(env.cfg.History.Path)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	runs, err := store.ListRuns(context.Background(), 1)
	_ = store.Close()
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one run, got %d (%v)", len(runs), err)
	}
	runID := runs[0].ID

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, runID[:8]) || !strings.Contains(out, "Finished") {
		t.Fatalf("expected run listed, got:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"history", "--run", runID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	for _, fragment := range []string{"a.m4b", "b.m4b", "Converted", "Already Encoded", "mp3"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in run detail:\n%s", fragment, out)
		}
	}

	if _, _, err := runCLI(t, []string{"history", "--run", "zzzz"}, env.configPath); !errors.Is(err, history.ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(home, "cfg", "m4bsweep.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target in output, got %q", out)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"--log-level", "debug", "config", "show"}, target)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	for _, fragment := range []string{"# source: " + target, "bitrate = '96k'", "level = 'debug'"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in:\n%s", fragment, out)
		}
	}
}

func TestConfigLoadErrorSurfaces(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[sweep]\nmax_concurrency = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"scan"}, path); err == nil {
		t.Fatal("expected invalid config to fail")
	}
}

func TestDisplayHelpers(t *testing.T) {
	if got := displayLabel("unrecognized_codec"); got != "Unrecognized Codec" {
		t.Fatalf("displayLabel = %q", got)
	}
	if got := displayLabel("  "); got != "" {
		t.Fatalf("displayLabel(blank) = %q", got)
	}
	if got := formatBytes(1536); got != "1.5 KiB" {
		t.Fatalf("formatBytes = %q", got)
	}
	if got := formatBytes(-2048); got != "-2.0 KiB" {
		t.Fatalf("formatBytes(negative) = %q", got)
	}
	if got := relPath("/books", "/books/a/b.m4b"); got != "a/b.m4b" {
		t.Fatalf("relPath = %q", got)
	}
	if shouldColorize(&strings.Builder{}) {
		t.Fatal("non-file writers are never colorized")
	}
}

func TestRootArgPrefersPositional(t *testing.T) {
	if got := rootArg([]string{"/a"}, "/b"); got == nil || *got != "/a" {
		t.Fatalf("expected positional root, got %v", got)
	}
	if got := rootArg(nil, "/b"); got == nil || *got != "/b" {
		t.Fatalf("expected flag root, got %v", got)
	}
	if rootArg(nil, " ") != nil {
		t.Fatal("blank root should leave config untouched")
	}
}
