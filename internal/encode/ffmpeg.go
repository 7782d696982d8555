package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"gopkg.in/alessio/shellescape.v1"

	"m4bsweep/internal/logging"
)

var commandContext = exec.CommandContext

// stderrTail bounds how much ffmpeg diagnostic output is kept for failure reasons.
const stderrTail = 2048

// Transcoder writes a converted copy of input to output.
type Transcoder interface {
	Transcode(ctx context.Context, input, output string, params Params) error
}

// Option configures the ffmpeg transcoder.
type Option func(*FFmpeg)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(f *FFmpeg) {
		if strings.TrimSpace(binary) != "" {
			f.binary = strings.TrimSpace(binary)
		}
	}
}

// WithLogger attaches a logger used for command-line debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		f.logger = logger
	}
}

// FFmpeg transcodes with the ffmpeg command-line tool.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

// NewFFmpeg constructs an ffmpeg transcoder using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{binary: "ffmpeg"}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "ffmpeg")
	return f
}

// Args builds the ffmpeg argument list. Every stream is mapped, then subtitle
// and data streams are removed; non-audio streams (cover art) are copied and
// audio is re-encoded. Global and chapter metadata come from the input.
func Args(input, output string, params Params) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-v", "error",
		"-y",
		"-i", input,
		"-map", "0",
		"-map", "-0:s",
		"-map", "-0:d",
		"-map_metadata", "0",
		"-map_chapters", "0",
		"-c", "copy",
		"-c:a", params.Codec,
		"-b:a", params.Bitrate,
		"-ar", params.sampleRateArg(),
		"-ac", params.channelsArg(),
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	}
}

// CommandLine renders the invocation as a shell-safe string for logs.
func (f *FFmpeg) CommandLine(input, output string, params Params) string {
	args := Args(input, output, params)
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(f.binary))
	for _, arg := range args {
		quoted = append(quoted, shellescape.Quote(arg))
	}
	return strings.Join(quoted, " ")
}

// Transcode runs ffmpeg and waits for it to exit. The process is killed when
// ctx ends.
func (f *FFmpeg) Transcode(ctx context.Context, input, output string, params Params) error {
	if input == "" || output == "" {
		return errors.New("ffmpeg: input and output paths required")
	}
	logging.WithContext(ctx, f.logger).Debug("running ffmpeg",
		logging.String("command", f.CommandLine(input, output, params)))

	cmd := commandContext(ctx, f.binary, Args(input, output, params)...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := tail(stderr.String(), stderrTail); detail != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

func tail(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	s = s[len(s)-limit:]
	if idx := strings.IndexByte(s, '\n'); idx >= 0 && idx < len(s)-1 {
		s = s[idx+1:]
	}
	return s
}
