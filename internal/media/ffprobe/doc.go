// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe with streams, chapters, and format sections enabled and
// returns a Result. Helpers on Result answer the questions the sweep asks of a
// file: the first audio stream, which non-audio streams survive a re-encode,
// and the ordered chapter titles.
package ffprobe
