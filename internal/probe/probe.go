// Package probe determines the audio codec of a candidate file and decides
// whether the sweep should convert it.
package probe

import (
	"context"
	"log/slog"
	"strings"

	"m4bsweep/internal/logging"
	"m4bsweep/internal/media/ffprobe"
)

// Inspector reports the streams, chapters, and format of a media file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// InspectorFunc adapts a function to Inspector.
type InspectorFunc func(ctx context.Context, path string) (ffprobe.Result, error)

// Inspect calls f.
func (f InspectorFunc) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return f(ctx, path)
}

// FFprobe inspects files with the ffprobe binary.
type FFprobe struct {
	Binary string
}

// Inspect runs ffprobe against path.
func (f FFprobe) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	return ffprobe.Inspect(ctx, f.Binary, path)
}

// Decision is the policy outcome for a probed file.
type Decision int

const (
	Convert Decision = iota
	SkipAlreadyEncoded
	SkipUnrecognized
)

func (d Decision) String() string {
	switch d {
	case SkipAlreadyEncoded:
		return "already_encoded"
	case SkipUnrecognized:
		return "unrecognized_codec"
	default:
		return "convert"
	}
}

// Report is the result of probing one file. Codec is empty when unknown.
type Report struct {
	Codec  string
	Result ffprobe.Result
	Err    error
}

// Known reports whether a codec was identified.
func (r Report) Known() bool {
	return r.Codec != ""
}

// Prober applies the Inspector to candidate files.
type Prober struct {
	inspector Inspector
	logger    *slog.Logger
}

// New builds a Prober. A nil logger discards output.
func New(inspector Inspector, logger *slog.Logger) *Prober {
	return &Prober{
		inspector: inspector,
		logger:    logging.NewComponentLogger(logger, "probe"),
	}
}

// Probe inspects the first audio stream of path. Inspection failures and
// files without audio yield an unknown codec, never an error.
func (p *Prober) Probe(ctx context.Context, path string) Report {
	result, err := p.inspector.Inspect(ctx, path)
	if err != nil {
		logging.WithContext(ctx, p.logger).Debug("inspection failed", logging.Error(err))
		return Report{Err: err}
	}
	stream, ok := result.FirstAudioStream()
	if !ok {
		return Report{Result: result}
	}
	return Report{
		Codec:  strings.ToLower(strings.TrimSpace(stream.CodecName)),
		Result: result,
	}
}

// Decide maps a probe report to the sweep policy for the target codec.
func Decide(report Report, target string) Decision {
	switch {
	case !report.Known():
		return SkipUnrecognized
	case strings.EqualFold(report.Codec, target):
		return SkipAlreadyEncoded
	default:
		return Convert
	}
}
