// Package notify delivers run progress to sinks and step labels to a tracker.
// Delivery is best effort: failures are logged and never reach the runner.
package notify

import (
	"context"
	"errors"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

// Sink receives progress notifications.
type Sink interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n domain.Notification) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, n domain.Notification) error {
	return f(ctx, n)
}

// Tracker mirrors the label of each step in an external task board.
type Tracker interface {
	UpdateStatus(ctx context.Context, step string, label domain.TrackerLabel) error
}

// TrackerFunc adapts a function to the Tracker interface.
type TrackerFunc func(ctx context.Context, step string, label domain.TrackerLabel) error

// UpdateStatus calls f.
func (f TrackerFunc) UpdateStatus(ctx context.Context, step string, label domain.TrackerLabel) error {
	return f(ctx, step, label)
}

// Multi fans a notification out to every sink. All sinks are called even when
// some fail; the errors are joined.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Send delivers n and swallows any failure.
func Send(ctx context.Context, sink Sink, n domain.Notification) {
	if sink == nil {
		return
	}
	if err := sink.Notify(ctx, n); err != nil {
		logging.Warn("notification delivery failed",
			"run_id", n.RunID, "step", n.Step, "kind", n.Kind,
			"error_kind", domain.ErrorKindSinkFailure, "err", err)
	}
}

// Track updates the tracker label of step and swallows any failure. Labels are
// not retried.
func Track(ctx context.Context, tracker Tracker, runID, step string, label domain.TrackerLabel) {
	if tracker == nil {
		return
	}
	if err := tracker.UpdateStatus(ctx, step, label); err != nil {
		logging.Warn("tracker update failed",
			"run_id", runID, "step", step, "label", label,
			"error_kind", domain.ErrorKindSinkFailure, "err", err)
	}
}
