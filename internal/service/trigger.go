package service

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

// RunTrigger starts a run with text on every tick until ctx is done. Ticks that
// find a run already active are skipped by the single-flight guard.
func (s *Service) RunTrigger(ctx context.Context, interval time.Duration, text string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, text)
		}
	}
}

func (s *Service) fire(ctx context.Context, text string) {
	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := s.Start(startCtx, text)
	if err != nil {
		logging.Warn("scheduled run failed to start", "err", err)
		return
	}
	if !resp.Started {
		logging.Debug("scheduled run skipped, run already active", "run_id", resp.RunID)
		return
	}
	logging.Info("scheduled run started", "run_id", resp.RunID)
}
