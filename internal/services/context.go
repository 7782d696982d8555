package services

import "context"

type contextKey string

const (
	runIDKey      contextKey = "run_id"
	jobOrdinalKey contextKey = "job"
	pathKey       contextKey = "path"
)

// WithRunID annotates context with the run correlation identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobOrdinal annotates context with the conversion job ordinal.
func WithJobOrdinal(ctx context.Context, ordinal int64) context.Context {
	return context.WithValue(ctx, jobOrdinalKey, ordinal)
}

// JobOrdinalFromContext extracts the job ordinal if present.
func JobOrdinalFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(jobOrdinalKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithPath annotates context with the file being processed.
func WithPath(ctx context.Context, path string) context.Context {
	if path == "" {
		return ctx
	}
	return context.WithValue(ctx, pathKey, path)
}

// PathFromContext returns the file path if present.
func PathFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(pathKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
