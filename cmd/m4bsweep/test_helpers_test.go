package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"m4bsweep/internal/config"
	"m4bsweep/internal/encode"
	"m4bsweep/internal/probe"
	"m4bsweep/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	root       string
	inspector  *testsupport.FakeInspector
	transcoder *testsupport.FakeTranscoder
}

// setupCLITestEnv writes a config file for a temp library and swaps the
// ffprobe/ffmpeg seams for fakes that understand testsupport books.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	opts = append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)
	cfg := testsupport.NewConfig(t, opts...)
	testsupport.StubMovieDuration(t)

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(testsupport.BaseDir(cfg), "config.toml"),
		root:       cfg.Sweep.Root,
		inspector:  &testsupport.FakeInspector{},
		transcoder: &testsupport.FakeTranscoder{},
	}
	writeTestConfig(t, env.configPath, cfg)

	prevInspector, prevTranscoder := newInspector, newTranscoder
	newInspector = func(*config.Config) probe.Inspector { return env.inspector }
	newTranscoder = func(*config.Config, *slog.Logger) encode.Transcoder { return env.transcoder }
	t.Cleanup(func() {
		newInspector, newTranscoder = prevInspector, prevTranscoder
	})
	return env
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) path(name string) string {
	return filepath.Join(e.root, name)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), args, configPath)
}

func runCLIContext(t *testing.T, ctx context.Context, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}
