// Package encode re-encodes the audio of a chaptered container into a
// temporary sibling file and verifies the result before anything touches the
// original.
//
// The Transcoder interface hides ffmpeg so the pipeline can be exercised with
// fakes. Encoder owns the temporary artifact: it is either returned verified or
// removed.
package encode
