package pipeline

import (
	"context"
	"log/slog"

	"m4bsweep/internal/logging"
)

// Reporter emits one structured record per job transition. Records carry the
// run id, job ordinal, and path from the context.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter wraps logger.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reporter{logger: logger}
}

func (r *Reporter) log(ctx context.Context) *slog.Logger {
	return logging.WithContext(ctx, r.logger)
}

// RunStarted announces the candidate count and run options.
func (r *Reporter) RunStarted(ctx context.Context, root string, candidates int, opts Options) {
	r.log(ctx).Info("sweep started",
		logging.String("root", root),
		logging.Int("candidates", candidates),
		logging.Int("concurrency", opts.Concurrency),
		logging.Bool("keep_backup", opts.KeepBackup),
		logging.Bool("dry_run", opts.DryRun),
		logging.String("target_codec", opts.TargetCodec),
	)
}

// JobStarted marks a file entering the probing state.
func (r *Reporter) JobStarted(ctx context.Context) {
	r.log(ctx).Debug("probing")
}

// Unrecognized warns about a file whose codec could not be determined.
func (r *Reporter) Unrecognized(ctx context.Context, cause error) {
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorHint, "inspect the file with ffprobe; it may be damaged or have no audio stream"),
		logging.String(logging.FieldImpact, "file left unchanged"),
	}
	if cause != nil {
		attrs = append(attrs, logging.Error(cause))
	}
	logging.WarnWithContext(r.log(ctx), "audio codec unrecognized, skipping", "codec_unrecognized", attrs...)
}

// WouldConvert reports a dry-run decision.
func (r *Reporter) WouldConvert(ctx context.Context, codec string) {
	attrs := append(logging.DecisionAttrs("convert", "dry_run", "codec "+codec), logging.String("codec", codec))
	r.log(ctx).Info("would convert", logging.Args(attrs...)...)
}

// Converting marks a file entering the converting state.
func (r *Reporter) Converting(ctx context.Context, codec string) {
	r.log(ctx).Info("converting", logging.String("codec", codec))
}

// JobFinished reports a terminal outcome. Failures log at error level with
// the reason and any recovery hint.
func (r *Reporter) JobFinished(ctx context.Context, o Outcome, done, total int) {
	logger := r.log(ctx)
	if o.Ordinal > 0 {
		logger = logger.With(logging.Int64(logging.FieldJob, o.Ordinal))
	}
	logger = logger.With(
		logging.String(logging.FieldPath, o.Path),
		logging.Int("done", done),
		logging.Int("total", total),
	)

	switch o.Status {
	case StatusConverted:
		attrs := []any{
			logging.String("from_codec", o.SourceCodec),
			logging.Int64("input_bytes", o.InputBytes),
			logging.Int64("output_bytes", o.OutputBytes),
			logging.Duration("elapsed", o.Elapsed),
		}
		if o.Backup != "" {
			attrs = append(attrs, logging.String("backup", o.Backup))
		}
		logger.Info("converted", attrs...)
	case StatusFailed:
		hint := o.Hint
		if hint == "" {
			hint = "original left unchanged; see reason"
		}
		logging.ErrorWithContext(logger, "conversion failed", "job_failed",
			logging.String("reason", o.Reason),
			logging.String("kind", o.Kind),
			logging.String(logging.FieldErrorHint, hint),
		)
	default:
		level := slog.LevelInfo
		if o.Reason == ReasonInterrupted {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "skipped",
			logging.String("reason", o.Reason),
			logging.String("codec", o.SourceCodec),
		)
	}
}

// RunFinished reports the aggregated counts.
func (r *Reporter) RunFinished(ctx context.Context, s Summary) {
	logger := r.log(ctx)
	attrs := []any{
		logging.Int("skipped_already_encoded", s.SkippedEncoded),
		logging.Int("skipped_unrecognized", s.SkippedUnrecognized),
		logging.Int("skipped_dry_run", s.SkippedDryRun),
		logging.Int("skipped_interrupted", s.SkippedInterrupted),
		logging.Int("converted", s.Converted),
		logging.Int("failed", s.Failed),
		logging.Int64("saved_bytes", s.SavedBytes()),
		logging.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	}
	switch {
	case s.Interrupted:
		logger.Warn("sweep interrupted", attrs...)
	case s.Failed > 0:
		logger.Error("sweep finished with failures", attrs...)
	default:
		logger.Info("sweep finished", attrs...)
	}
}
