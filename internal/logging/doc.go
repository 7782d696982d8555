// Package logging assembles structured slog loggers used across m4bsweep.
//
// It owns the console and JSON handlers, level and output plumbing, and
// context-aware helpers that tag every line with the run id, job ordinal, and
// file path carried on the context. Console records are assembled in full and
// written with a single call under a shared mutex, so lines from concurrent
// workers never interleave.
package logging
