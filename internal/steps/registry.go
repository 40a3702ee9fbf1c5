// Package steps holds step executors and the registry that dispatches to them by name.
package steps

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xiaot623/gogo/contentflow/internal/domain"
)

// Executor performs the work of one step. It receives a copy of the run state
// and must be safe to call again with the same input when retried.
type Executor interface {
	Execute(ctx context.Context, state *domain.RunState) (*domain.StepResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, state *domain.RunState) (*domain.StepResult, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, state *domain.RunState) (*domain.StepResult, error) {
	return f(ctx, state)
}

// Registry stores step executors keyed by step name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty step registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Register adds a new executor for a step name.
func (r *Registry) Register(step string, exec Executor) error {
	if step == "" {
		return fmt.Errorf("step name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[step]; exists {
		return fmt.Errorf("executor already registered for %s", step)
	}
	r.executors[step] = exec
	return nil
}

// MustRegister adds an executor or panics.
func (r *Registry) MustRegister(step string, exec Executor) {
	if err := r.Register(step, exec); err != nil {
		panic(err)
	}
}

// Lookup returns the executor for the step name.
func (r *Registry) Lookup(step string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[step]
	return exec, ok
}

// Has reports whether an executor is registered for the step name.
func (r *Registry) Has(step string) bool {
	_, ok := r.Lookup(step)
	return ok
}

// Names returns the registered step names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
