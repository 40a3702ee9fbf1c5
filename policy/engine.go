// Package policy gates step execution by daily quota and exposes the retry budget.
package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/rego"

	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

const (
	// DefaultMaxPerDay is the number of attempts a step may make per day.
	DefaultMaxPerDay = 3
	// DefaultMaxRetry is the retry budget of a step within one run.
	DefaultMaxRetry = 2

	decisionAllow = "allow"
)

// Options configures an Engine.
type Options struct {
	MaxPerDay  int
	MaxRetry   int
	StepLimits map[string]int
	// Rules is a rego module defining data.step_policy.decision. Empty means DefaultPolicy.
	Rules    string
	Location *time.Location
	Now      func() time.Time
}

// DefaultOptions returns the quota and retry defaults.
func DefaultOptions() Options {
	return Options{MaxPerDay: DefaultMaxPerDay, MaxRetry: DefaultMaxRetry}
}

// Engine keeps per-step daily counts and decides whether a step may run.
type Engine struct {
	mu         sync.Mutex
	query      rego.PreparedEvalQuery
	maxPerDay  int
	maxRetry   int
	stepLimits map[string]int
	loc        *time.Location
	now        func() time.Time

	dailyCount map[string]int
	lastReset  string
}

// NewEngine creates a new policy engine with the given options.
func NewEngine(ctx context.Context, opts Options) (*Engine, error) {
	rules := opts.Rules
	if rules == "" {
		rules = DefaultPolicy
	}
	r := rego.New(
		rego.Query("data.step_policy.decision"),
		rego.Module("step_policy.rego", rules),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	e := &Engine{
		query:      query,
		maxPerDay:  opts.MaxPerDay,
		maxRetry:   opts.MaxRetry,
		stepLimits: make(map[string]int, len(opts.StepLimits)),
		loc:        opts.Location,
		now:        opts.Now,
		dailyCount: make(map[string]int),
	}
	for step, limit := range opts.StepLimits {
		e.stepLimits[step] = limit
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.lastReset = e.today()
	return e, nil
}

// CanRun reports whether the step is still within today's quota.
func (e *Engine) CanRun(ctx context.Context, step string) bool {
	e.mu.Lock()
	e.maybeReset()
	count := e.dailyCount[step]
	limit := e.limit(step)
	weekday := e.now().In(e.loc).Weekday().String()
	e.mu.Unlock()

	input := map[string]interface{}{
		"step":        step,
		"count":       count,
		"max_per_day": limit,
		"weekday":     weekday,
	}
	decision, err := e.evaluate(ctx, input)
	if err != nil {
		logging.Warn("policy evaluation failed, using quota comparison", "step", step, "err", err)
		return count < limit
	}
	return decision == decisionAllow
}

// RegisterRun records one attempt of the step against today's quota.
func (e *Engine) RegisterRun(step string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maybeReset()
	e.dailyCount[step]++
}

// MaxRetry returns the retry budget for a step within one run.
func (e *Engine) MaxRetry() int {
	return e.maxRetry
}

// MaxPerDay returns the default daily quota.
func (e *Engine) MaxPerDay() int {
	return e.maxPerDay
}

// Usage returns a snapshot of today's attempt counts.
func (e *Engine) Usage() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.maybeReset()
	out := make(map[string]int, len(e.dailyCount))
	for k, v := range e.dailyCount {
		out[k] = v
	}
	return out
}

func (e *Engine) evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", fmt.Errorf("policy produced no decision")
	}
	s, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", fmt.Errorf("unexpected decision type %T", results[0].Expressions[0].Value)
	}
	return s, nil
}

// maybeReset clears the counts on the first access after a calendar-day rollover.
// Caller must hold e.mu.
func (e *Engine) maybeReset() {
	today := e.today()
	if today != e.lastReset {
		e.dailyCount = make(map[string]int)
		e.lastReset = today
	}
}

func (e *Engine) today() string {
	return e.now().In(e.loc).Format("2006-01-02")
}

func (e *Engine) limit(step string) int {
	if limit, ok := e.stepLimits[step]; ok {
		return limit
	}
	return e.maxPerDay
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package step_policy

default decision = "allow"

# Deny once the step has used up its daily quota
decision = "deny" {
	input.count >= input.max_per_day
}
`
