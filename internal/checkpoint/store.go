// Package checkpoint keeps immutable snapshots of run state for resume.
package checkpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

// ErrNotFound is returned when a checkpoint or run has no snapshot.
var ErrNotFound = errors.New("checkpoint not found")

// Store saves and loads run snapshots. Implementations must copy state on
// both Save and Load so callers never share memory with a stored snapshot.
type Store interface {
	Save(ctx context.Context, runID string, state *domain.RunState) (string, error)
	// History returns a run's checkpoints, oldest first.
	History(ctx context.Context, runID string) ([]domain.Checkpoint, error)
	Load(ctx context.Context, checkpointID string) (*domain.RunState, error)
}

// NewID generates a checkpoint ID.
func NewID() string {
	return "cp_" + uuid.New().String()[:8]
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]domain.Checkpoint
	byRun map[string][]string
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:  make(map[string]domain.Checkpoint),
		byRun: make(map[string][]string),
		now:   time.Now,
	}
}

// Save implements Store.
func (m *MemoryStore) Save(ctx context.Context, runID string, state *domain.RunState) (string, error) {
	if state == nil {
		return "", errors.New("state is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := domain.Checkpoint{
		CheckpointID: NewID(),
		RunID:        runID,
		Seq:          len(m.byRun[runID]) + 1,
		State:        state.Clone(),
		CreatedAt:    m.now(),
	}
	m.byID[cp.CheckpointID] = cp
	m.byRun[runID] = append(m.byRun[runID], cp.CheckpointID)
	return cp.CheckpointID, nil
}

// History implements Store.
func (m *MemoryStore) History(ctx context.Context, runID string) ([]domain.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.byRun[runID]
	out := make([]domain.Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp := m.byID[id]
		cp.State = cp.State.Clone()
		out = append(out, cp)
	}
	return out, nil
}

// Load implements Store.
func (m *MemoryStore) Load(ctx context.Context, checkpointID string) (*domain.RunState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp, ok := m.byID[checkpointID]
	if !ok {
		return nil, ErrNotFound
	}
	return cp.State.Clone(), nil
}

// LatestBefore returns the most recent checkpoint of the run in which step has
// not yet been resolved.
func LatestBefore(ctx context.Context, store Store, runID, step string) (*domain.Checkpoint, error) {
	history, err := store.History(ctx, runID)
	if err != nil {
		return nil, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if !history[i].State.Resolved(step) {
			cp := history[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
