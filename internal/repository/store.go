// Package repository persists runs, their events and checkpoints.
package repository

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/checkpoint"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	checkpoint.Store

	// Run operations
	CreateRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus, finishedAt *time.Time) error

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// LatestCheckpoint returns the newest checkpoint of a run.
	LatestCheckpoint(ctx context.Context, runID string) (*domain.Checkpoint, error)

	Close() error
}
