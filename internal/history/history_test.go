package history_test

import (
	"context"
	"path/filepath"
	"testing"

	"volsegsync/internal/history"
	"volsegsync/internal/index"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "update", "index")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if runID == "" {
		t.Fatal("expected non-empty run id")
	}

	changes := []index.Change{
		{Subject: "C01-A-D1", Kind: index.ChangeAddedVolume, Detail: "C01-A-D1-v1.nrrd"},
		{Subject: "C01-A-D1", Kind: index.ChangeAddedVersion, Detail: "C01-A-D1-v2.nrrd"},
	}
	if err := store.RecordChanges(ctx, runID, changes); err != nil {
		t.Fatalf("RecordChanges: %v", err)
	}
	if err := store.FinishRun(ctx, runID, history.StatusCompleted, "2 changes"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.ID != runID || run.Command != "update" || run.Index != "index" {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.Status != history.StatusCompleted || run.FinishedAt.IsZero() {
		t.Fatalf("run not finished: %+v", run)
	}

	got, err := store.Changes(ctx, runID)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(got))
	}
	if got[0].Kind != string(index.ChangeAddedVolume) || got[1].Kind != string(index.ChangeAddedVersion) {
		t.Fatalf("changes out of order: %+v", got)
	}
}

func TestRecordChangesEmptySetIsNoop(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, "verify", "index")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.RecordChanges(ctx, runID, nil); err != nil {
		t.Fatalf("RecordChanges: %v", err)
	}
	got, err := store.Changes(ctx, runID)
	if err != nil {
		t.Fatalf("Changes: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no changes, got %d", len(got))
	}
}

func TestFinishRunUnknownID(t *testing.T) {
	store := openStore(t)
	if err := store.FinishRun(context.Background(), "no-such-run", history.StatusFailed, ""); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	first, err := store.BeginRun(ctx, "init", "index")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	second, err := store.BeginRun(ctx, "update", "index")
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}

	runs, err := store.Runs(ctx, 1)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run with limit, got %d", len(runs))
	}
	if runs[0].ID != second && runs[0].ID != first {
		t.Fatalf("unexpected run %q", runs[0].ID)
	}
}
