// Package runner advances a run one step at a time, applying the retry budget
// and daily quota and recording every transition.
package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/contentflow/internal/checkpoint"
	"github.com/xiaot623/gogo/contentflow/internal/domain"
	"github.com/xiaot623/gogo/contentflow/internal/logging"
	"github.com/xiaot623/gogo/contentflow/internal/notify"
	"github.com/xiaot623/gogo/contentflow/internal/steps"
)

// Gate is the policy consulted before each attempt.
type Gate interface {
	CanRun(ctx context.Context, step string) bool
	RegisterRun(step string)
	MaxRetry() int
}

// Executors resolves step names to executors.
type Executors interface {
	Lookup(step string) (steps.Executor, bool)
}

// Runner drives RunStates. A Runner holds no per-run state and may drive
// several runs one after another.
type Runner struct {
	gate        Gate
	executors   Executors
	checkpoints checkpoint.Store
	sink        notify.Sink
	tracker     notify.Tracker
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithCheckpoints saves a snapshot after every terminal step transition.
func WithCheckpoints(store checkpoint.Store) Option {
	return func(r *Runner) { r.checkpoints = store }
}

// WithSink sets the notification sink.
func WithSink(sink notify.Sink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithTracker sets the external progress tracker.
func WithTracker(tracker notify.Tracker) Option {
	return func(r *Runner) { r.tracker = tracker }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a runner.
func New(gate Gate, executors Executors, opts ...Option) *Runner {
	r := &Runner{gate: gate, executors: executors, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ticks until the run is terminal and then finalizes it. Cancellation is
// observed between ticks and before finalizing; a cancelled run is left as is
// so it can be resumed. An already finalized state is returned untouched.
func (r *Runner) Run(ctx context.Context, st *domain.RunState) error {
	if st.Finalized() {
		return nil
	}
	for !st.Terminal() {
		if err := ctx.Err(); err != nil {
			logging.Info("run interrupted", "run_id", st.RunID, "cursor", st.Cursor)
			return err
		}
		r.Tick(ctx, st)
	}
	if err := ctx.Err(); err != nil {
		logging.Info("run interrupted before finalize", "run_id", st.RunID)
		return err
	}
	r.Finalize(ctx, st)
	return nil
}

// Tick processes the step under the cursor once and reports whether the run
// is terminal afterwards. A retried step leaves the cursor where it is.
func (r *Runner) Tick(ctx context.Context, st *domain.RunState) bool {
	if st.Terminal() {
		return true
	}
	step := st.CurrentStep()

	if _, ok := st.StepStatus[step]; !ok {
		st.StepStatus[step] = domain.StepStatusNotStarted
		r.trace(st, "%s: not started", step)
		notify.Track(ctx, r.tracker, st.RunID, step, domain.TrackerNotStarted)
	}

	if !r.gate.CanRun(ctx, step) {
		msg := r.trace(st, "%s: policy denied, daily quota exhausted", step)
		logging.Warn("step denied by policy", "run_id", st.RunID, "step", step,
			"error_kind", domain.ErrorKindPolicyDenied)
		r.resolve(ctx, st, step, domain.StepStatusFailed, domain.ErrorKindPolicyDenied, msg)
		return st.Terminal()
	}

	r.trace(st, "%s: started", step)
	r.gate.RegisterRun(step)
	st.StepStatus[step] = domain.StepStatusRunning
	notify.Track(ctx, r.tracker, st.RunID, step, domain.TrackerInProgress)
	notify.Send(ctx, r.sink, domain.Notification{
		RunID:   st.RunID,
		Step:    step,
		Kind:    domain.NotificationStepStarted,
		Message: step + ": started",
		Ts:      r.now().UnixMilli(),
	})

	res, err := r.invoke(ctx, step, st)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		r.interrupt(st, step)
		return false
	}
	v := r.interpret(st, step, res, err)

	if v.outcome == domain.OutcomeDone {
		if res != nil {
			st.Messages = append(st.Messages, res.Messages...)
		}
		if _, exists := st.Outputs[step]; exists {
			logging.Warn("output already present, keeping the original", "run_id", st.RunID, "step", step)
		} else {
			st.Outputs[step] = v.outputs
		}
		if len(v.extra) > 0 {
			if st.NodeData == nil {
				st.NodeData = make(map[string]map[string]json.RawMessage)
			}
			st.NodeData[step] = v.extra
		}
		msg := r.trace(st, "%s: done", step)
		r.resolve(ctx, st, step, domain.StepStatusDone, "", msg)
		return st.Terminal()
	}

	maxRetry := r.gate.MaxRetry()
	if st.RetryCounts[step] < maxRetry {
		st.RetryCounts[step]++
		if v.outcome == domain.OutcomeRetry {
			r.trace(st, "%s: retry requested (%d/%d)", step, st.RetryCounts[step], maxRetry)
		} else {
			r.trace(st, "%s: failed, retrying (%d/%d)", step, st.RetryCounts[step], maxRetry)
		}
		return false
	}

	msg := r.trace(st, "%s: failed after %d retries", step, st.RetryCounts[step])
	logging.Warn("step failed", "run_id", st.RunID, "step", step, "retries", st.RetryCounts[step],
		"error_kind", v.kind)
	r.resolve(ctx, st, step, domain.StepStatusFailed, v.kind, msg)
	return st.Terminal()
}

// interrupt rolls back an attempt cut short by a stop. Nothing is resolved or
// saved, so the last checkpoint still resumes before the step.
func (r *Runner) interrupt(st *domain.RunState, step string) {
	st.StepStatus[step] = domain.StepStatusNotStarted
	r.trace(st, "%s: interrupted", step)
	logging.Info("step interrupted by stop", "run_id", st.RunID, "step", step)
}

// Finalize appends the summary trace and emits RunFinalized. It does nothing
// when the state is already finalized.
func (r *Runner) Finalize(ctx context.Context, st *domain.RunState) {
	if st.Finalized() {
		return
	}
	done, failed := st.Counts()
	msg := r.trace(st, "run finalized: %d done, %d failed", done, failed)
	finalizedAt := r.now()
	st.FinalizedAt = &finalizedAt
	r.save(ctx, st)
	logging.Info("run finalized", "run_id", st.RunID, "done", done, "failed", failed)
	notify.Send(ctx, r.sink, domain.Notification{
		RunID:   st.RunID,
		Kind:    domain.NotificationRunFinalized,
		Message: msg,
		Ts:      r.now().UnixMilli(),
	})
}

// verdict is an executor result normalised to one of the three outcomes.
type verdict struct {
	outcome domain.Outcome
	kind    domain.ErrorKind
	outputs json.RawMessage
	extra   map[string]json.RawMessage
}

func (r *Runner) interpret(st *domain.RunState, step string, res *domain.StepResult, err error) verdict {
	failed := func(kind domain.ErrorKind, format string, args ...interface{}) verdict {
		r.trace(st, "%s: warning: "+format, append([]interface{}{step}, args...)...)
		logging.Warn("step attempt failed", "run_id", st.RunID, "step", step,
			"error_kind", kind, "detail", fmt.Sprintf(format, args...))
		return verdict{outcome: domain.OutcomeFailed, kind: kind}
	}

	switch {
	case err != nil:
		return failed(domain.ErrorKindExecutorFailure, "executor error: %v", err)
	case res == nil:
		return failed(domain.ErrorKindProtocolViolation, "executor returned no result, treating as failed")
	case !res.Status.Valid():
		return failed(domain.ErrorKindProtocolViolation, "unknown status %q, treating as failed", res.Status)
	case res.Status == domain.OutcomeRetry:
		return verdict{outcome: domain.OutcomeRetry, kind: domain.ErrorKindExecutorFailure}
	case res.Status == domain.OutcomeFailed:
		return verdict{outcome: domain.OutcomeFailed, kind: domain.ErrorKindExecutorFailure}
	}

	outputs := res.Outputs
	if outputs == nil {
		outputs = map[string]interface{}{}
	}
	raw, err := json.Marshal(outputs)
	if err != nil {
		return failed(domain.ErrorKindProtocolViolation, "outputs not encodable: %v", err)
	}
	var extra map[string]json.RawMessage
	if len(res.Extra) > 0 {
		extra = make(map[string]json.RawMessage, len(res.Extra))
		for k, val := range res.Extra {
			b, err := json.Marshal(val)
			if err != nil {
				return failed(domain.ErrorKindProtocolViolation, "extra field %q not encodable: %v", k, err)
			}
			extra[k] = b
		}
	}
	return verdict{outcome: domain.OutcomeDone, outputs: raw, extra: extra}
}

// invoke calls the executor with a copy of the state. A missing executor or a
// panic is reported as an error.
func (r *Runner) invoke(ctx context.Context, step string, st *domain.RunState) (res *domain.StepResult, err error) {
	exec, ok := r.executors.Lookup(step)
	if !ok {
		return nil, fmt.Errorf("no executor registered for %s", step)
	}
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("executor panic: %v", p)
		}
	}()
	return exec.Execute(ctx, st.Clone())
}

// resolve records a terminal step transition and advances the cursor.
func (r *Runner) resolve(ctx context.Context, st *domain.RunState, step string, status domain.StepStatus, kind domain.ErrorKind, msg string) {
	st.StepStatus[step] = status
	st.Cursor++
	r.save(ctx, st)

	label, notifyKind := domain.TrackerDone, domain.NotificationStepDone
	if status == domain.StepStatusFailed {
		label, notifyKind = domain.TrackerFailed, domain.NotificationStepFailed
	}
	notify.Track(ctx, r.tracker, st.RunID, step, label)
	notify.Send(ctx, r.sink, domain.Notification{
		RunID:     st.RunID,
		Step:      step,
		Kind:      notifyKind,
		Message:   msg,
		ErrorKind: kind,
		Ts:        r.now().UnixMilli(),
	})
}

func (r *Runner) save(ctx context.Context, st *domain.RunState) {
	if r.checkpoints == nil {
		return
	}
	// Detach from cancellation so a stop during a step still records its outcome.
	if _, err := r.checkpoints.Save(context.WithoutCancel(ctx), st.RunID, st); err != nil {
		logging.Error("failed to save checkpoint", "run_id", st.RunID, "cursor", st.Cursor, "err", err)
	}
}

func (r *Runner) trace(st *domain.RunState, format string, args ...interface{}) string {
	msg := fmt.Sprintf(format, args...)
	st.Messages = append(st.Messages, msg)
	st.UpdatedAt = r.now()
	return msg
}
