// Package pipeline runs a sweep: a fixed pool of workers takes candidates from
// the scanner, probes each file, converts the ones that need it, and swaps the
// result into place.
//
// Every candidate ends in exactly one Outcome. A failure or panic in one job
// is converted into a Failed outcome and never stops the other workers. The
// Reporter turns job transitions into structured log records and the Summary
// aggregates outcomes for the run's exit status.
package pipeline
