// Package main hosts the m4bsweep CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration (file, environment, flags),
// builds the logger, and hands a sweep to internal/pipeline. Subcommands
// cover the sweep itself, a read-only scan, preflight checks, the run
// history ledger, and configuration scaffolding.
//
// Keep this package lean: new behavior belongs in the internal packages and
// is surfaced here through commands or flags.
package main
