// Package service supervises pipeline runs: at most one active run per process,
// with start, stop, resume and query operations.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/notify"
	"github.com/xiaot623/gogo/contentflow/internal/planner"
	"github.com/xiaot623/gogo/contentflow/internal/repository"
	"github.com/xiaot623/gogo/contentflow/internal/runner"
	"github.com/xiaot623/gogo/contentflow/policy"
)

// Service is the run supervisor.
type Service struct {
	store        repository.Store
	planner      *planner.Planner
	policyEngine *policy.Engine
	runner       *runner.Runner
	now          func() time.Time

	mu     sync.Mutex
	state  domain.SupervisorState
	runID  string
	cancel context.CancelFunc
	// gen identifies the launch that owns the active flag. Resumes reuse run IDs.
	gen     uint64
	lastRun string
	// done is closed when the most recently launched run goroutine exits.
	// It survives Stop so Wait can still observe the in-flight step.
	done chan struct{}
}

// New creates the supervisor. Progress is recorded to the store's event log
// and forwarded to sink; tracker may be nil.
func New(store repository.Store, p *planner.Planner, policyEngine *policy.Engine, executors runner.Executors, sink notify.Sink, tracker notify.Tracker) *Service {
	s := &Service{
		store:        store,
		planner:      p,
		policyEngine: policyEngine,
		now:          time.Now,
		state:        domain.SupervisorIdle,
	}
	sinks := notify.Multi{&eventRecorder{store: store}}
	if sink != nil {
		sinks = append(sinks, sink)
	}
	opts := []runner.Option{
		runner.WithCheckpoints(store),
		runner.WithSink(sinks),
	}
	if tracker != nil {
		opts = append(opts, runner.WithTracker(tracker))
	}
	s.runner = runner.New(policyEngine, executors, opts...)
	return s
}
