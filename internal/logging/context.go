package logging

import (
	"context"
	"log/slog"

	"m4bsweep/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the per-run correlation identifier.
	FieldRunID = "run_id"
	// FieldJob is the standardized key for the conversion job ordinal.
	FieldJob = "job"
	// FieldPath is the standardized key for the file a record is about.
	FieldPath = "path"
	// FieldEventType classifies a record for filtering (e.g. job_failed).
	FieldEventType = "event_type"
	// FieldErrorHint carries the operator's next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType tags skip/convert decisions.
	FieldDecisionType = "decision_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if ordinal, ok := services.JobOrdinalFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldJob, ordinal))
	}
	if path, ok := services.PathFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldPath, path))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
