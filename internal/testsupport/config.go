package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"m4bsweep/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The sweep root is <base>/library and history lives under <base>/state.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Sweep.Root = filepath.Join(base, "library")
	cfgVal.Sweep.MaxConcurrency = 4
	cfgVal.Sweep.MinFreeGiB = 0
	cfgVal.History.Path = filepath.Join(base, "state", "history.db")
	if err := os.MkdirAll(cfgVal.Sweep.Root, 0o755); err != nil {
		t.Fatalf("mkdir root: %v", err)
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithoutBackup disables backup retention.
func WithoutBackup() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sweep.KeepBackup = false
	}
}

// WithConcurrency overrides the worker pool size.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sweep.MaxConcurrency = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
// Each stub lists an aac encoder so encoder checks pass.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\necho ' A..... = Audio'\necho ' ------'\necho ' A....D aac                  AAC (Advanced Audio Coding)'\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Sweep.Root)
}
