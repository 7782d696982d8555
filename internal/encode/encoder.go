package encode

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"m4bsweep/internal/fileutil"
	"m4bsweep/internal/logging"
	"m4bsweep/internal/media/ffprobe"
	"m4bsweep/internal/probe"
	"m4bsweep/internal/services"
)

const stage = "encode"

// Job is one conversion request.
type Job struct {
	Source string
	Temp   string
	// SourceProbe is the inspection of Source used to verify the output.
	SourceProbe ffprobe.Result
}

// Artifact is a verified temporary file ready for replacement.
type Artifact struct {
	Path     string
	Size     int64
	Duration time.Duration
	Probe    ffprobe.Result
}

// Encoder runs a Transcoder into the job's temporary path and verifies the output.
type Encoder struct {
	transcoder Transcoder
	inspector  probe.Inspector
	params     Params
	timeout    time.Duration
	logger     *slog.Logger
}

// NewEncoder wires an Encoder. A zero timeout disables the per-job bound.
func NewEncoder(transcoder Transcoder, inspector probe.Inspector, params Params, timeout time.Duration, logger *slog.Logger) *Encoder {
	return &Encoder{
		transcoder: transcoder,
		inspector:  inspector,
		params:     params,
		timeout:    timeout,
		logger:     logging.NewComponentLogger(logger, stage),
	}
}

// Encode writes the converted file to job.Temp. The original is only read. On
// any failure the temporary file is removed before returning.
func (e *Encoder) Encode(ctx context.Context, job Job) (Artifact, error) {
	if job.Source == "" || job.Temp == "" {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "prepare", "source and temp paths required", nil)
	}
	if job.Source == job.Temp {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "prepare", "temp path must differ from source", nil)
	}
	if !fileutil.SameDir(job.Source, job.Temp) {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "prepare", "temp path must share the source directory", nil)
	}
	if err := fileutil.RemoveIfExists(job.Temp); err != nil {
		return Artifact{}, services.Wrap(services.ErrTransient, stage, "prepare", "remove stale temporary file", err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	logger := logging.WithContext(ctx, e.logger)
	started := time.Now()
	if err := e.transcoder.Transcode(runCtx, job.Source, job.Temp, e.params); err != nil {
		e.discard(logger, job.Temp)
		if marker := services.ContextMarker(runCtx); marker != nil {
			return Artifact{}, services.Wrap(marker, stage, "transcode", interruptMessage(marker, e.timeout), err)
		}
		return Artifact{}, services.Wrap(services.ErrExternalTool, stage, "transcode", "transcoder failed", err)
	}
	if marker := services.ContextMarker(runCtx); marker != nil {
		e.discard(logger, job.Temp)
		return Artifact{}, services.Wrap(marker, stage, "transcode", interruptMessage(marker, e.timeout), runCtx.Err())
	}

	artifact, err := e.verify(runCtx, job)
	if err != nil {
		e.discard(logger, job.Temp)
		return Artifact{}, err
	}
	logger.Debug("transcode verified",
		logging.Duration("elapsed", time.Since(started)),
		logging.Int64("output_bytes", artifact.Size),
	)
	return artifact, nil
}

func (e *Encoder) discard(logger *slog.Logger, path string) {
	if err := fileutil.RemoveIfExists(path); err != nil {
		logging.ErrorWithContext(logger, "failed to remove temporary file", "temp_cleanup_failed",
			logging.String("temp_path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the hidden .tmp file by hand or rerun with --clean-temp"),
		)
	}
}

func interruptMessage(marker error, timeout time.Duration) string {
	if errors.Is(marker, services.ErrTimeout) {
		return "exceeded job timeout of " + timeout.String()
	}
	return "interrupted"
}

func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
