package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Sweep controls which tree is scanned and how the worker pool behaves.
type Sweep struct {
	Root              string `toml:"root"`
	KeepBackup        bool   `toml:"keep_backup"`
	MaxConcurrency    int    `toml:"max_concurrency"`
	DryRun            bool   `toml:"dry_run"`
	CleanTemp         bool   `toml:"clean_temp"`
	JobTimeoutSeconds int    `toml:"job_timeout_seconds"`
	MinFreeGiB        int    `toml:"min_free_gib"`
}

// Encode describes the target audio format and the external tools used to reach it.
type Encode struct {
	Codec         string `toml:"codec"`
	Bitrate       string `toml:"bitrate"`
	SampleRate    int    `toml:"sample_rate"`
	Channels      int    `toml:"channels"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// History configures the SQLite run ledger.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all configuration values for m4bsweep.
//
// Configuration sections by subsystem:
//   - Sweep: root directory, backup retention, worker pool size, timeouts
//   - Encode: target codec parameters and ffmpeg/ffprobe binaries
//   - Logging: log format, level, and optional file sink
//   - History: run ledger location
type Config struct {
	Sweep   Sweep   `toml:"sweep"`
	Encode  Encode  `toml:"encode"`
	Logging Logging `toml:"logging"`
	History History `toml:"history"`
}

// Overrides carries command-line values that take precedence over the file
// and environment. Nil fields leave the loaded value untouched.
type Overrides struct {
	Root           *string
	Bitrate        *string
	SampleRate     *int
	Channels       *int
	KeepBackup     *bool
	MaxConcurrency *int
	DryRun         *bool
	CleanTemp      *bool
	LogLevel       *string
	LogFormat      *string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/m4bsweep/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// WithOverrides returns a copy of the config with the overrides applied,
// normalized, and validated. The receiver is not modified.
func (c Config) WithOverrides(o Overrides) (Config, error) {
	if o.Root != nil {
		c.Sweep.Root = *o.Root
	}
	if o.Bitrate != nil {
		c.Encode.Bitrate = *o.Bitrate
	}
	if o.SampleRate != nil {
		c.Encode.SampleRate = *o.SampleRate
	}
	if o.Channels != nil {
		c.Encode.Channels = *o.Channels
	}
	if o.KeepBackup != nil {
		c.Sweep.KeepBackup = *o.KeepBackup
	}
	if o.MaxConcurrency != nil {
		c.Sweep.MaxConcurrency = *o.MaxConcurrency
	}
	if o.DryRun != nil {
		c.Sweep.DryRun = *o.DryRun
	}
	if o.CleanTemp != nil {
		c.Sweep.CleanTemp = *o.CleanTemp
	}
	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		c.Logging.Format = *o.LogFormat
	}
	if err := c.normalize(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// RequireRoot reports an error when no root directory has been configured.
func (c Config) RequireRoot() error {
	if strings.TrimSpace(c.Sweep.Root) == "" {
		return errors.New("sweep.root is required: pass a directory argument, --root, or set M4BSWEEP_ROOT")
	}
	return nil
}

// JobTimeout returns the per-job deadline, or zero when jobs are unbounded.
func (c Config) JobTimeout() time.Duration {
	if c.Sweep.JobTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Sweep.JobTimeoutSeconds) * time.Second
}

// MinFreeBytes returns the free-space floor enforced before a run.
func (c Config) MinFreeBytes() uint64 {
	if c.Sweep.MinFreeGiB <= 0 {
		return 0
	}
	return uint64(c.Sweep.MinFreeGiB) << 30
}

// Marshal renders the resolved configuration as TOML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	encoder.SetIndentTables(true)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("m4bsweep.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
