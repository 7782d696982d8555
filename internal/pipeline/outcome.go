package pipeline

import (
	"errors"
	"time"
)

// Status is the terminal state of a job.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusConverted Status = "converted"
	StatusFailed    Status = "failed"
)

// Skip reasons.
const (
	ReasonAlreadyEncoded    = "already_encoded"
	ReasonUnrecognizedCodec = "unrecognized_codec"
	ReasonDryRun            = "dry_run"
	ReasonInterrupted       = "interrupted"
)

var (
	// ErrJobsFailed is returned when at least one job ended Failed.
	ErrJobsFailed = errors.New("one or more files failed to convert")
	// ErrInterrupted is returned when the run was stopped by a signal.
	ErrInterrupted = errors.New("run interrupted")
)

// Outcome is the terminal result for one candidate file.
type Outcome struct {
	// Ordinal is zero for candidates that were never dispatched.
	Ordinal     int64
	Path        string
	Status      Status
	Reason      string
	Kind        string
	Hint        string
	SourceCodec string
	InputBytes  int64
	OutputBytes int64
	Backup      string
	Elapsed     time.Duration
}

// Label is the compact outcome name used in summaries and history.
func (o Outcome) Label() string {
	if o.Status == StatusSkipped && o.Reason != "" {
		return string(o.Status) + ":" + o.Reason
	}
	return string(o.Status)
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	RunID      string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time

	SkippedEncoded      int
	SkippedUnrecognized int
	SkippedDryRun       int
	SkippedInterrupted  int
	Converted           int
	Failed              int

	InputBytes  int64
	OutputBytes int64
	Interrupted bool

	Outcomes []Outcome
}

// Total is the number of candidates accounted for.
func (s Summary) Total() int {
	return s.SkippedEncoded + s.SkippedUnrecognized + s.SkippedDryRun + s.SkippedInterrupted + s.Converted + s.Failed
}

// SavedBytes is input minus output across converted files. Negative when
// outputs grew.
func (s Summary) SavedBytes() int64 {
	return s.InputBytes - s.OutputBytes
}

// Failures returns the failed outcomes in path order.
func (s Summary) Failures() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// Err maps the summary to the run's error result.
func (s Summary) Err() error {
	switch {
	case s.Interrupted:
		return ErrInterrupted
	case s.Failed > 0:
		return ErrJobsFailed
	default:
		return nil
	}
}

func (s *Summary) add(o Outcome) {
	switch o.Status {
	case StatusConverted:
		s.Converted++
		s.InputBytes += o.InputBytes
		s.OutputBytes += o.OutputBytes
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		switch o.Reason {
		case ReasonAlreadyEncoded:
			s.SkippedEncoded++
		case ReasonUnrecognizedCodec:
			s.SkippedUnrecognized++
		case ReasonDryRun:
			s.SkippedDryRun++
		default:
			s.SkippedInterrupted++
		}
	}
	s.Outcomes = append(s.Outcomes, o)
}
