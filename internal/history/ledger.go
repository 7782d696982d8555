package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"m4bsweep/internal/pipeline"
)

var _ pipeline.Recorder = (*Store)(nil)

// Run is one row of the runs table.
type Run struct {
	ID                  string
	Root                string
	StartedAt           time.Time
	FinishedAt          time.Time
	SkippedEncoded      int
	SkippedUnrecognized int
	SkippedDryRun       int
	SkippedInterrupted  int
	Converted           int
	Failed              int
	InputBytes          int64
	OutputBytes         int64
	Interrupted         bool
}

// Finished reports whether the run was closed out.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// BeginRun inserts the run row.
func (s *Store) BeginRun(ctx context.Context, summary pipeline.Summary) error {
	return s.exec(ctx,
		"INSERT INTO runs (id, root, started_at) VALUES (?, ?, ?)",
		summary.RunID, summary.Root, formatTime(summary.StartedAt),
	)
}

// RecordOutcome appends one outcome row.
func (s *Store) RecordOutcome(ctx context.Context, runID string, o pipeline.Outcome) error {
	return s.exec(ctx, `INSERT INTO outcomes
		(run_id, ordinal, path, status, reason, kind, hint, source_codec, input_bytes, output_bytes, backup_path, elapsed_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Ordinal, o.Path, string(o.Status), o.Reason, o.Kind, o.Hint, o.SourceCodec,
		o.InputBytes, o.OutputBytes, o.Backup, o.Elapsed.Milliseconds(), formatTime(time.Now()),
	)
}

// FinishRun stores the final counts.
func (s *Store) FinishRun(ctx context.Context, summary pipeline.Summary) error {
	return s.exec(ctx, `UPDATE runs SET
		finished_at = ?, skipped_encoded = ?, skipped_unrecognized = ?, skipped_dry_run = ?,
		skipped_interrupted = ?, converted = ?, failed = ?, input_bytes = ?, output_bytes = ?, interrupted = ?
		WHERE id = ?`,
		formatTime(summary.FinishedAt), summary.SkippedEncoded, summary.SkippedUnrecognized, summary.SkippedDryRun,
		summary.SkippedInterrupted, summary.Converted, summary.Failed, summary.InputBytes, summary.OutputBytes,
		summary.Interrupted, summary.RunID,
	)
}

const runColumns = `id, root, started_at, finished_at, skipped_encoded, skipped_unrecognized, skipped_dry_run,
	skipped_interrupted, converted, failed, input_bytes, output_bytes, interrupted`

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by id. A unique id prefix is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2", id, id+"%")
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if run.ID == id {
			return run, nil
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(matches) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return matches[0], nil
	default:
		return Run{}, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
}

// Outcomes returns the outcomes recorded for a run, by path.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]pipeline.Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ordinal, path, status, reason, kind, hint, source_codec,
		input_bytes, output_bytes, backup_path, elapsed_ms
		FROM outcomes WHERE run_id = ? ORDER BY path`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []pipeline.Outcome
	for rows.Next() {
		var (
			o                                     pipeline.Outcome
			status                                string
			reason, kind, hint, codec, backupPath sql.NullString
			elapsedMS                             int64
		)
		if err := rows.Scan(&o.Ordinal, &o.Path, &status, &reason, &kind, &hint, &codec,
			&o.InputBytes, &o.OutputBytes, &backupPath, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = pipeline.Status(status)
		o.Reason = reason.String
		o.Kind = kind.String
		o.Hint = hint.String
		o.SourceCodec = codec.String
		o.Backup = backupPath.String
		o.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run               Run
		started, finished sql.NullString
		interrupted       int
	)
	if err := row.Scan(&run.ID, &run.Root, &started, &finished, &run.SkippedEncoded, &run.SkippedUnrecognized,
		&run.SkippedDryRun, &run.SkippedInterrupted, &run.Converted, &run.Failed, &run.InputBytes,
		&run.OutputBytes, &interrupted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	run.Interrupted = interrupted != 0
	return run, nil
}
