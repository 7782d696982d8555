package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"m4bsweep/internal/encode"
	"m4bsweep/internal/logging"
	"m4bsweep/internal/pathclass"
	"m4bsweep/internal/probe"
	"m4bsweep/internal/replace"
	"m4bsweep/internal/scan"
	"m4bsweep/internal/services"
)

// Prober classifies a candidate by its first audio stream.
type Prober interface {
	Probe(ctx context.Context, path string) probe.Report
}

// Encoder produces a verified temporary artifact.
type Encoder interface {
	Encode(ctx context.Context, job encode.Job) (encode.Artifact, error)
}

// Replacer installs a temporary artifact in place of its original.
type Replacer interface {
	Replace(ctx context.Context, original, temp string, keepBackup bool) (replace.Result, error)
}

// Recorder persists run progress. Errors are logged and never fail a job.
type Recorder interface {
	BeginRun(ctx context.Context, summary Summary) error
	RecordOutcome(ctx context.Context, runID string, outcome Outcome) error
	FinishRun(ctx context.Context, summary Summary) error
}

// Options tune a Scheduler.
type Options struct {
	Concurrency int
	KeepBackup  bool
	DryRun      bool
	TargetCodec string
}

// Deps are the per-file stages. Recorder may be nil.
type Deps struct {
	Prober   Prober
	Encoder  Encoder
	Replacer Replacer
	Recorder Recorder
}

// Scheduler runs candidates through a fixed-size worker pool.
type Scheduler struct {
	deps     Deps
	opts     Options
	logger   *slog.Logger
	reporter *Reporter
	ordinal  atomic.Int64
}

// NewScheduler validates dependencies and options.
func NewScheduler(deps Deps, opts Options, logger *slog.Logger) (*Scheduler, error) {
	if deps.Prober == nil || deps.Encoder == nil || deps.Replacer == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "prober, encoder, and replacer are required", nil)
	}
	if opts.Concurrency < 1 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", fmt.Sprintf("concurrency must be at least 1, got %d", opts.Concurrency), nil)
	}
	if opts.TargetCodec == "" {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "init", "target codec required", nil)
	}
	logger = logging.NewComponentLogger(logger, "pipeline")
	return &Scheduler{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		reporter: NewReporter(logger),
	}, nil
}

type dispatched struct {
	ordinal   int64
	candidate scan.Candidate
}

// Run processes every candidate and returns once all dispatched jobs have
// finished. When ctx ends, no further candidates are dispatched and the rest
// are reported as interrupted.
func (s *Scheduler) Run(ctx context.Context, root string, candidates []scan.Candidate) Summary {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	summary := Summary{RunID: runID, Root: root, StartedAt: time.Now().UTC()}
	s.record(ctx, "begin run", func(rctx context.Context) error { return s.deps.Recorder.BeginRun(rctx, summary) })
	s.reporter.RunStarted(ctx, root, len(candidates), s.opts)

	workers := s.opts.Concurrency
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	jobs := make(chan dispatched)
	results := make(chan Outcome, len(candidates))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- s.runJob(ctx, job)
			}
		}()
	}

	go func() {
		defer func() {
			close(jobs)
			wg.Wait()
			close(results)
		}()
		for i, candidate := range candidates {
			if ctx.Err() != nil {
				s.skipUndispatched(candidates[i:], results)
				return
			}
			job := dispatched{ordinal: s.ordinal.Add(1), candidate: candidate}
			select {
			case jobs <- job:
			case <-ctx.Done():
				s.skipUndispatched(candidates[i:], results)
				return
			}
		}
	}()

	done := 0
	for outcome := range results {
		done++
		summary.add(outcome)
		s.reporter.JobFinished(ctx, outcome, done, len(candidates))
		s.record(ctx, "record outcome", func(rctx context.Context) error { return s.deps.Recorder.RecordOutcome(rctx, runID, outcome) })
	}

	sort.Slice(summary.Outcomes, func(i, j int) bool { return summary.Outcomes[i].Path < summary.Outcomes[j].Path })
	summary.Interrupted = ctx.Err() != nil
	summary.FinishedAt = time.Now().UTC()
	s.record(ctx, "finish run", func(rctx context.Context) error { return s.deps.Recorder.FinishRun(rctx, summary) })
	s.reporter.RunFinished(ctx, summary)
	return summary
}

func (s *Scheduler) skipUndispatched(rest []scan.Candidate, results chan<- Outcome) {
	for _, candidate := range rest {
		results <- Outcome{Path: candidate.Path, Status: StatusSkipped, Reason: ReasonInterrupted}
	}
}

// runJob executes one candidate. Panics are converted into a Failed outcome.
func (s *Scheduler) runJob(ctx context.Context, job dispatched) (outcome Outcome) {
	path := job.candidate.Path
	ctx = services.WithJobOrdinal(ctx, job.ordinal)
	ctx = services.WithPath(ctx, path)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{
				Ordinal: job.ordinal,
				Path:    path,
				Status:  StatusFailed,
				Reason:  fmt.Sprintf("panic: %v", r),
				Kind:    "panic",
			}
		}
		outcome.Elapsed = time.Since(started)
	}()

	base := Outcome{Ordinal: job.ordinal, Path: path}
	if ctx.Err() != nil {
		return skipped(base, ReasonInterrupted)
	}

	s.reporter.JobStarted(ctx)
	report := s.deps.Prober.Probe(ctx, path)
	base.SourceCodec = report.Codec

	switch probe.Decide(report, s.opts.TargetCodec) {
	case probe.SkipAlreadyEncoded:
		return skipped(base, ReasonAlreadyEncoded)
	case probe.SkipUnrecognized:
		if ctx.Err() != nil {
			return skipped(base, ReasonInterrupted)
		}
		s.reporter.Unrecognized(ctx, report.Err)
		return skipped(base, ReasonUnrecognizedCodec)
	}

	if s.opts.DryRun {
		s.reporter.WouldConvert(ctx, report.Codec)
		return skipped(base, ReasonDryRun)
	}

	if err := replace.CheckBackupFree(path); err != nil {
		return failed(base, err)
	}

	inputBytes := job.candidate.Size
	if info, err := os.Stat(path); err == nil {
		inputBytes = info.Size()
	}

	s.reporter.Converting(ctx, report.Codec)
	artifact, err := s.deps.Encoder.Encode(ctx, encode.Job{
		Source:      path,
		Temp:        pathclass.TempPath(path),
		SourceProbe: report.Result,
	})
	if err != nil {
		if errors.Is(err, services.ErrCanceled) {
			return skipped(base, ReasonInterrupted)
		}
		return failed(base, err)
	}

	result, err := s.deps.Replacer.Replace(ctx, path, artifact.Path, s.opts.KeepBackup)
	if err != nil {
		if errors.Is(err, services.ErrCanceled) {
			return skipped(base, ReasonInterrupted)
		}
		return failed(base, err)
	}

	base.Status = StatusConverted
	base.InputBytes = inputBytes
	base.OutputBytes = artifact.Size
	base.Backup = result.Backup
	return base
}

// record writes history even after ctx is canceled so interrupted runs are
// still closed out.
func (s *Scheduler) record(ctx context.Context, op string, fn func(context.Context) error) {
	if s.deps.Recorder == nil {
		return
	}
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "history write failed", "history_write_failed",
			logging.String("operation", op),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history.path or disable history"),
			logging.String(logging.FieldImpact, "run history incomplete"),
		)
	}
}

func skipped(base Outcome, reason string) Outcome {
	base.Status = StatusSkipped
	base.Reason = reason
	return base
}

func failed(base Outcome, err error) Outcome {
	base.Status = StatusFailed
	base.Reason = err.Error()
	base.Kind = services.Kind(err)
	var recovery *replace.RecoveryError
	if errors.As(err, &recovery) {
		base.Hint = recovery.Hint()
	}
	return base
}
