// Package services holds the error markers and context keys shared by every
// pipeline stage.
//
// Stages wrap failures with Wrap so the pipeline can classify them with
// errors.Is, and annotate contexts with the run id, job ordinal, and file
// path so logging.WithContext can tag every record.
package services
