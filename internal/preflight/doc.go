// Package preflight provides readiness checks that run before a sweep
// touches any file.
//
// These checks run in two contexts:
//   - The run command calls RunAll and refuses to start when any check fails,
//     so a missing encoder or a read-only library is reported once instead of
//     once per book.
//   - The "m4bsweep check" command prints every result without running a sweep.
package preflight
