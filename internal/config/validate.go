package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
)

var bitratePattern = regexp.MustCompile(`^[1-9][0-9]*k?$`)

// Sample rates accepted by the AAC encoder.
var aacSampleRates = map[int]struct{}{
	8000: {}, 11025: {}, 12000: {}, 16000: {}, 22050: {}, 24000: {},
	32000: {}, 44100: {}, 48000: {}, 64000: {}, 88200: {}, 96000: {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSweep(); err != nil {
		return err
	}
	if err := c.validateEncode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSweep() error {
	if c.Sweep.Root != "" {
		info, err := os.Stat(c.Sweep.Root)
		if err != nil {
			return fmt.Errorf("sweep.root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("sweep.root: %s is not a directory", c.Sweep.Root)
		}
	}
	if c.Sweep.MaxConcurrency < 1 {
		return errors.New("sweep.max_concurrency must be at least 1")
	}
	if c.Sweep.JobTimeoutSeconds < 0 {
		return errors.New("sweep.job_timeout_seconds must be >= 0 (0 disables the timeout)")
	}
	if c.Sweep.MinFreeGiB < 0 {
		return errors.New("sweep.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateEncode() error {
	if c.Encode.Codec != defaultCodec {
		return fmt.Errorf("encode.codec: only %q is supported, got %q", defaultCodec, c.Encode.Codec)
	}
	if !bitratePattern.MatchString(c.Encode.Bitrate) {
		return fmt.Errorf("encode.bitrate: %q is not a bitrate like 96k or 96000", c.Encode.Bitrate)
	}
	if _, ok := aacSampleRates[c.Encode.SampleRate]; !ok {
		return fmt.Errorf("encode.sample_rate: %d is not a supported AAC sample rate", c.Encode.SampleRate)
	}
	if c.Encode.Channels < 1 || c.Encode.Channels > 8 {
		return fmt.Errorf("encode.channels must be between 1 and 8, got %d", c.Encode.Channels)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
