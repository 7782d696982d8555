package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"m4bsweep/internal/pipeline"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLedgerRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	summary := pipeline.Summary{RunID: "0b6f3c2e-run", Root: "/books", StartedAt: started}
	if err := store.BeginRun(ctx, summary); err != nil {
		t.Fatalf("BeginRun returned error: %v", err)
	}
	outcomes := []pipeline.Outcome{
		{Ordinal: 2, Path: "/books/b.m4b", Status: pipeline.StatusConverted, SourceCodec: "mp3", InputBytes: 1000, OutputBytes: 400, Backup: "/books/b.orig.m4b", Elapsed: 1500 * time.Millisecond},
		{Ordinal: 1, Path: "/books/a.m4b", Status: pipeline.StatusSkipped, Reason: pipeline.ReasonAlreadyEncoded, SourceCodec: "aac"},
		{Ordinal: 3, Path: "/books/c.m4b", Status: pipeline.StatusFailed, Reason: "encode: verify", Kind: "validation"},
	}
	for _, o := range outcomes {
		if err := store.RecordOutcome(ctx, summary.RunID, o); err != nil {
			t.Fatalf("RecordOutcome returned error: %v", err)
		}
	}
	summary.FinishedAt = started.Add(time.Minute)
	summary.Converted, summary.SkippedEncoded, summary.Failed = 1, 1, 1
	summary.InputBytes, summary.OutputBytes = 1000, 400
	if err := store.FinishRun(ctx, summary); err != nil {
		t.Fatalf("FinishRun returned error: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	run := runs[0]
	if !run.Finished() || run.Converted != 1 || run.Failed != 1 || run.InputBytes != 1000 || !run.StartedAt.Equal(started) {
		t.Fatalf("unexpected run row: %+v", run)
	}

	got, err := store.Outcomes(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("Outcomes returned error: %v", err)
	}
	if len(got) != 3 || got[0].Path != "/books/a.m4b" || got[1].Backup != "/books/b.orig.m4b" {
		t.Fatalf("unexpected outcomes: %+v", got)
	}
	if got[1].Elapsed != 1500*time.Millisecond || got[2].Kind != "validation" {
		t.Fatalf("unexpected outcome detail: %+v", got)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"abc123", "abd456"} {
		if err := store.BeginRun(ctx, pipeline.Summary{RunID: id, Root: "/books", StartedAt: time.Unix(int64(i), 0)}); err != nil {
			t.Fatal(err)
		}
	}

	run, err := store.GetRun(ctx, "abc")
	if err != nil || run.ID != "abc123" {
		t.Fatalf("GetRun(abc) = %+v, %v", run, err)
	}
	if run.Finished() {
		t.Fatal("run was never finished")
	}
	if _, err := store.GetRun(ctx, "ab"); err == nil {
		t.Fatal("expected ambiguous prefix error")
	}
	if _, err := store.GetRun(ctx, "zzz"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if err := first.BeginRun(context.Background(), pipeline.Summary{RunID: "r1", Root: "/books", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	_ = first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer second.Close()
	runs, err := second.ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected persisted run, got %v (err=%v)", runs, err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	if _, err := Open(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
