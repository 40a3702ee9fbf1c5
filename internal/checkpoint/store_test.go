package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	st := domain.NewRunState("run_1", "ctx", []string{"title"}, time.Now())

	id, err := s.Save(ctx, st.RunID, st)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !strings.HasPrefix(id, "cp_") {
		t.Fatalf("unexpected checkpoint id %q", id)
	}

	// Mutating the caller's state must not leak into the snapshot.
	st.Cursor = 1
	st.StepStatus["title"] = domain.StepStatusDone
	st.Outputs["title"] = json.RawMessage(`{"text":"x"}`)

	loaded, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Cursor != 0 || len(loaded.StepStatus) != 0 || len(loaded.Outputs) != 0 {
		t.Fatalf("snapshot was mutated: %+v", loaded)
	}

	// Mutating a loaded copy must not leak back either.
	loaded.Messages = append(loaded.Messages, "x")
	again, _ := s.Load(ctx, id)
	if len(again.Messages) != 0 {
		t.Fatalf("loaded copy aliases stored snapshot")
	}
}

func TestMemoryStoreHistoryOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	st := domain.NewRunState("run_1", "ctx", []string{"a", "b"}, time.Now())

	for i := 0; i < 3; i++ {
		st.Cursor = i
		if _, err := s.Save(ctx, st.RunID, st); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	if _, err := s.Save(ctx, "run_other", st); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	history, err := s.History(ctx, "run_1")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 checkpoints, got %d", len(history))
	}
	for i, cp := range history {
		if cp.Seq != i+1 || cp.State.Cursor != i {
			t.Fatalf("checkpoint %d out of order: seq=%d cursor=%d", i, cp.Seq, cp.State.Cursor)
		}
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	if _, err := NewMemoryStore().Load(context.Background(), "cp_nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatestBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	st := domain.NewRunState("run_1", "ctx", []string{"title", "content", "seo"}, time.Now())
	initial, _ := s.Save(ctx, st.RunID, st)

	st.StepStatus["title"] = domain.StepStatusDone
	st.Cursor = 1
	afterTitle, _ := s.Save(ctx, st.RunID, st)

	st.StepStatus["content"] = domain.StepStatusFailed
	st.Cursor = 2
	s.Save(ctx, st.RunID, st)

	cp, err := LatestBefore(ctx, s, "run_1", "content")
	if err != nil {
		t.Fatalf("LatestBefore failed: %v", err)
	}
	if cp.CheckpointID != afterTitle {
		t.Fatalf("expected checkpoint after title, got seq %d", cp.Seq)
	}

	cp, err = LatestBefore(ctx, s, "run_1", "title")
	if err != nil {
		t.Fatalf("LatestBefore failed: %v", err)
	}
	if cp.CheckpointID != initial {
		t.Fatalf("expected initial checkpoint for first step")
	}

	if _, err := LatestBefore(ctx, s, "run_missing", "title"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown run, got %v", err)
	}
}
