package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/checkpoint"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createRun(t *testing.T, store *SQLiteStore, runID string, seq ...string) {
	t.Helper()
	run := &domain.Run{
		RunID:     runID,
		Context:   "Start workflow",
		Sequence:  seq,
		Status:    domain.RunStatusActive,
		StartedAt: time.Now(),
	}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
}

func TestSQLiteStoreRuns(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createRun(t, store, "run_1", "title", "content")

	got, err := store.GetRun(ctx, "run_1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil || got.Status != domain.RunStatusActive || len(got.Sequence) != 2 {
		t.Fatalf("unexpected run: %+v", got)
	}

	finished := time.Now()
	if err := store.UpdateRunStatus(ctx, "run_1", domain.RunStatusFinished, &finished); err != nil {
		t.Fatalf("UpdateRunStatus failed: %v", err)
	}
	got, _ = store.GetRun(ctx, "run_1")
	if got.Status != domain.RunStatusFinished || got.FinishedAt == nil {
		t.Fatalf("unexpected run after update: %+v", got)
	}

	missing, err := store.GetRun(ctx, "run_missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil run for missing id, got %+v (%v)", missing, err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil || len(runs) != 1 {
		t.Fatalf("ListRuns: %v, %d runs", err, len(runs))
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createRun(t, store, "run_1", "seo")

	events := []domain.Event{
		{EventID: "e1", RunID: "run_1", Ts: 1, Type: domain.NotificationStepStarted, Step: "seo"},
		{EventID: "e2", RunID: "run_1", Ts: 2, Type: domain.NotificationStepDone, Step: "seo", Payload: json.RawMessage(`{"message":"seo: done"}`)},
		{EventID: "e3", RunID: "run_1", Ts: 3, Type: domain.NotificationRunFinalized},
	}
	for i := range events {
		if err := store.CreateEvent(ctx, &events[i]); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	all, err := store.GetEvents(ctx, "run_1", 0, nil, 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("GetEvents: %v, %d events", err, len(all))
	}
	if all[1].Step != "seo" || string(all[1].Payload) != `{"message":"seo: done"}` {
		t.Fatalf("unexpected event: %+v", all[1])
	}

	filtered, _ := store.GetEvents(ctx, "run_1", 1, []string{string(domain.NotificationRunFinalized)}, 10)
	if len(filtered) != 1 || filtered[0].EventID != "e3" {
		t.Fatalf("unexpected filtered events: %+v", filtered)
	}
}

func TestSQLiteStoreCheckpoints(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	createRun(t, store, "run_1", "title", "content")

	st := domain.NewRunState("run_1", "Start workflow", []string{"title", "content"}, time.Now())
	first, err := store.Save(ctx, "run_1", st)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	st.StepStatus["title"] = domain.StepStatusDone
	st.Outputs["title"] = json.RawMessage(`{"text":"Go"}`)
	st.NodeData["title"] = map[string]json.RawMessage{"score": json.RawMessage(`7`)}
	st.RetryCounts["title"] = 1
	st.Cursor = 1
	second, err := store.Save(ctx, "run_1", st)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	history, err := store.History(ctx, "run_1")
	if err != nil || len(history) != 2 {
		t.Fatalf("History: %v, %d checkpoints", err, len(history))
	}
	if history[0].CheckpointID != first || history[1].CheckpointID != second || history[1].Seq != 2 {
		t.Fatalf("unexpected history order: %+v", history)
	}

	loaded, err := store.Load(ctx, second)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Cursor != 1 || loaded.RetryCounts["title"] != 1 || string(loaded.Outputs["title"]) != `{"text":"Go"}` {
		t.Fatalf("state not restored exactly: %+v", loaded)
	}
	if string(loaded.NodeData["title"]["score"]) != "7" {
		t.Fatalf("node data not restored: %+v", loaded.NodeData)
	}

	run, _ := store.GetRun(ctx, "run_1")
	if run.Cursor != 1 {
		t.Fatalf("expected run cursor to follow checkpoints, got %d", run.Cursor)
	}

	latest, err := store.LatestCheckpoint(ctx, "run_1")
	if err != nil || latest.CheckpointID != second {
		t.Fatalf("LatestCheckpoint: %v, %+v", err, latest)
	}

	cp, err := checkpoint.LatestBefore(ctx, store, "run_1", "title")
	if err != nil || cp.CheckpointID != first {
		t.Fatalf("LatestBefore: %v, %+v", err, cp)
	}
}

func TestSQLiteStoreMissingCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.Load(ctx, "cp_missing"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.LatestCheckpoint(ctx, "run_missing"); !errors.Is(err, checkpoint.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreCheckpointRequiresRun(t *testing.T) {
	store := newTestStore(t)
	st := domain.NewRunState("run_ghost", "x", nil, time.Now())
	if _, err := store.Save(context.Background(), "run_ghost", st); err == nil {
		t.Fatalf("expected foreign key error for unknown run")
	}
}
