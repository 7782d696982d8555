// Package history persists sweep runs and per-file outcomes in SQLite.
//
// Store implements pipeline.Recorder so the scheduler can write each outcome
// as it lands. The ledger is append-only; the history command reads it back.
package history
