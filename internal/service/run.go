package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/contentflow/internal/checkpoint"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

var (
	// ErrRunNotFound is returned when a run ID is unknown.
	ErrRunNotFound = errors.New("run not found")
	// ErrCheckpointNotFound is returned when no checkpoint matches a resume request.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
	// ErrRunFinalized is returned when resuming from a snapshot of a finalized run.
	ErrRunFinalized = errors.New("run already finalized")
)

// Start plans and launches a run. When a run is already active the call is a
// no-op that reports the active run with Started=false.
func (s *Service) Start(ctx context.Context, text string) (*domain.StartRunResponse, error) {
	if resp, active := s.active(); active {
		return resp, nil
	}

	// Planning may call out to a classifier; keep it outside the lock.
	seq, err := s.planner.Plan(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to plan run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SupervisorActive {
		logging.Info("start ignored, run already active", "run_id", s.runID)
		return &domain.StartRunResponse{RunID: s.runID, Started: false}, nil
	}

	runID := "run_" + uuid.New().String()[:8]
	now := s.now()
	st := domain.NewRunState(runID, text, seq, now)

	run := &domain.Run{
		RunID:     runID,
		Context:   text,
		Sequence:  seq,
		Status:    domain.RunStatusActive,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	// The initial snapshot is the resume target for the first step.
	if _, err := s.store.Save(ctx, runID, st); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	logging.Info("run started", "run_id", runID, "sequence", seq)
	s.launch(ctx, st)
	return &domain.StartRunResponse{RunID: runID, Started: true, Sequence: seq}, nil
}

// Resume restores a checkpoint and drives it to completion under the same
// single-flight guard as Start. Cursor and retry counts are restored exactly.
func (s *Service) Resume(ctx context.Context, checkpointID string) (*domain.StartRunResponse, error) {
	st, err := s.store.Load(ctx, checkpointID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if st.Finalized() {
		return nil, ErrRunFinalized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == domain.SupervisorActive {
		return &domain.StartRunResponse{RunID: s.runID, Started: false}, nil
	}
	if err := s.store.UpdateRunStatus(ctx, st.RunID, domain.RunStatusActive, nil); err != nil {
		return nil, fmt.Errorf("failed to update run: %w", err)
	}

	logging.Info("run resumed", "run_id", st.RunID, "checkpoint_id", checkpointID, "cursor", st.Cursor)
	s.launch(ctx, st)
	return &domain.StartRunResponse{
		RunID:       st.RunID,
		Started:     true,
		Sequence:    st.Sequence,
		ResumedFrom: checkpointID,
	}, nil
}

// ResumeBefore resumes a run from its latest checkpoint in which step was not
// yet resolved.
func (s *Service) ResumeBefore(ctx context.Context, runID, step string) (*domain.StartRunResponse, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	cp, err := checkpoint.LatestBefore(ctx, s.store, runID, step)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Resume(ctx, cp.CheckpointID)
}

// active reports the running run, if any, in the shape Start returns.
func (s *Service) active() (*domain.StartRunResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.SupervisorActive {
		return nil, false
	}
	logging.Info("start ignored, run already active", "run_id", s.runID)
	return &domain.StartRunResponse{RunID: s.runID, Started: false}, true
}

// Status reports whether a run is active.
func (s *Service) Status() domain.SupervisorStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SupervisorStatus{State: s.state, RunID: s.runID}
}

// Stop clears the active flag and cancels the run context. An in-flight step
// receives the cancelled context and may return early; the next step never starts.
func (s *Service) Stop() domain.StopResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.SupervisorActive {
		return domain.StopResponse{Stopped: false}
	}
	runID := s.runID
	s.cancel()
	s.state = domain.SupervisorIdle
	s.runID = ""
	s.cancel = nil
	logging.Info("run stop requested", "run_id", runID)
	return domain.StopResponse{Stopped: true, RunID: runID}
}

// Wait blocks until the most recently launched run goroutine exits.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch marks st active and drives it on its own goroutine. Caller must hold s.mu.
func (s *Service) launch(ctx context.Context, st *domain.RunState) {
	// The run outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.gen++
	s.lastRun = st.RunID
	s.state = domain.SupervisorActive
	s.runID = st.RunID
	s.cancel = cancel
	s.done = done

	go s.drive(runCtx, cancel, st, s.gen, done)
}

func (s *Service) drive(ctx context.Context, cancel context.CancelFunc, st *domain.RunState, gen uint64, done chan struct{}) {
	defer close(done)
	defer cancel()

	status := domain.RunStatusFinished
	var finished *time.Time
	if err := s.runner.Run(ctx, st); err != nil {
		status = domain.RunStatusStopped
		logging.Info("run stopped", "run_id", st.RunID, "cursor", st.Cursor, "err", err)
	} else {
		finishedAt := s.now()
		finished = &finishedAt
	}

	s.mu.Lock()
	owner := s.gen == gen
	// A stopped run may still be finishing its last step after a newer launch.
	superseded := !owner && s.lastRun == st.RunID
	if owner && s.state == domain.SupervisorActive {
		s.state = domain.SupervisorIdle
		s.runID = ""
		s.cancel = nil
	}
	s.mu.Unlock()

	if superseded {
		return
	}
	if err := s.store.UpdateRunStatus(context.WithoutCancel(ctx), st.RunID, status, finished); err != nil {
		logging.Error("failed to update run status", "run_id", st.RunID, "err", err)
	}
}
