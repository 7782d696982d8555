package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment keys recognised by applyEnv.
const (
	EnvRoot              = "M4BSWEEP_ROOT"
	EnvBitrate           = "M4BSWEEP_BITRATE"
	EnvSampleRate        = "M4BSWEEP_SAMPLE_RATE"
	EnvChannels          = "M4BSWEEP_CHANNELS"
	EnvKeepBackup        = "M4BSWEEP_KEEP_BACKUP"
	EnvMaxConcurrency    = "M4BSWEEP_MAX_CONCURRENCY"
	EnvJobTimeoutSeconds = "M4BSWEEP_JOB_TIMEOUT_SECONDS"
	EnvLogLevel          = "M4BSWEEP_LOG_LEVEL"
	EnvFFmpeg            = "M4BSWEEP_FFMPEG"
	EnvFFprobe           = "M4BSWEEP_FFPROBE"
)

func (c *Config) applyEnv() error {
	if value, ok := lookupEnv(EnvRoot); ok {
		c.Sweep.Root = value
	}
	if value, ok := lookupEnv(EnvBitrate); ok {
		c.Encode.Bitrate = value
	}
	if err := envInt(EnvSampleRate, &c.Encode.SampleRate); err != nil {
		return err
	}
	if err := envInt(EnvChannels, &c.Encode.Channels); err != nil {
		return err
	}
	if err := envInt(EnvMaxConcurrency, &c.Sweep.MaxConcurrency); err != nil {
		return err
	}
	if err := envInt(EnvJobTimeoutSeconds, &c.Sweep.JobTimeoutSeconds); err != nil {
		return err
	}
	if value, ok := lookupEnv(EnvKeepBackup); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKeepBackup, err)
		}
		c.Sweep.KeepBackup = parsed
	}
	if value, ok := lookupEnv(EnvLogLevel); ok {
		c.Logging.Level = value
	}
	if value, ok := lookupEnv(EnvFFmpeg); ok {
		c.Encode.FFmpegBinary = value
	}
	if value, ok := lookupEnv(EnvFFprobe); ok {
		c.Encode.FFprobeBinary = value
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

func envInt(key string, target *int) error {
	value, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEncode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Sweep.Root, err = expandPath(strings.TrimSpace(c.Sweep.Root)); err != nil {
		return fmt.Errorf("sweep.root: %w", err)
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = defaultHistoryPath
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}

func (c *Config) normalizeEncode() {
	c.Encode.Codec = strings.ToLower(strings.TrimSpace(c.Encode.Codec))
	if c.Encode.Codec == "" {
		c.Encode.Codec = defaultCodec
	}
	c.Encode.Bitrate = strings.ToLower(strings.TrimSpace(c.Encode.Bitrate))
	if c.Encode.Bitrate == "" {
		c.Encode.Bitrate = defaultBitrate
	}
	c.Encode.FFmpegBinary = strings.TrimSpace(c.Encode.FFmpegBinary)
	if c.Encode.FFmpegBinary == "" {
		c.Encode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encode.FFprobeBinary = strings.TrimSpace(c.Encode.FFprobeBinary)
	if c.Encode.FFprobeBinary == "" {
		c.Encode.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
