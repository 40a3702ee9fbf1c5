package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/gogo/contentflow/internal/checkpoint"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

// GetRun returns a run with its latest snapshot.
func (s *Service) GetRun(ctx context.Context, runID string) (*domain.RunResponse, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	resp := &domain.RunResponse{Run: run}
	cp, err := s.store.LatestCheckpoint(ctx, runID)
	switch {
	case err == nil:
		resp.State = cp.State
	case !errors.Is(err, checkpoint.ErrNotFound):
		return nil, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return resp, nil
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) (*domain.ListRunsResponse, error) {
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return &domain.ListRunsResponse{Runs: runs}, nil
}

// ListCheckpoints returns a run's checkpoints, oldest first.
func (s *Service) ListCheckpoints(ctx context.Context, runID string) (*domain.ListCheckpointsResponse, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	history, err := s.store.History(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	items := make([]domain.CheckpointItem, 0, len(history))
	for _, cp := range history {
		items = append(items, domain.CheckpointItem{
			CheckpointID: cp.CheckpointID,
			Seq:          cp.Seq,
			Cursor:       cp.State.Cursor,
			StepStatus:   cp.State.StepStatus,
			CreatedAt:    cp.CreatedAt.UnixMilli(),
		})
	}
	return &domain.ListCheckpointsResponse{RunID: runID, Checkpoints: items}, nil
}

// GetEvents returns the persisted notifications of a run.
func (s *Service) GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) (*domain.ListEventsResponse, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if run == nil {
		return nil, ErrRunNotFound
	}

	events, err := s.store.GetEvents(ctx, runID, afterTs, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return &domain.ListEventsResponse{RunID: runID, Events: events}, nil
}

// PolicyUsage reports today's quota consumption.
func (s *Service) PolicyUsage() domain.PolicyUsageResponse {
	return domain.PolicyUsageResponse{
		MaxPerDay: s.policyEngine.MaxPerDay(),
		MaxRetry:  s.policyEngine.MaxRetry(),
		Usage:     s.policyEngine.Usage(),
	}
}
