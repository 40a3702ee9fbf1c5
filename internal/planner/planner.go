// Package planner turns a run context into the ordered list of steps to execute.
package planner

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

// Classifier predicts step names for a piece of text.
type Classifier interface {
	Predict(ctx context.Context, text string) ([]string, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, text string) ([]string, error)

// Predict calls f.
func (f ClassifierFunc) Predict(ctx context.Context, text string) ([]string, error) {
	return f(ctx, text)
}

// Planner produces a sequence containing only known step names, each at most once.
type Planner struct {
	classifier Classifier
	known      func(step string) bool
}

// New creates a planner. known reports whether a step name can be executed.
func New(classifier Classifier, known func(step string) bool) *Planner {
	return &Planner{classifier: classifier, known: known}
}

// Plan classifies text into a sequence. An empty sequence is valid.
func (p *Planner) Plan(ctx context.Context, text string) ([]string, error) {
	predicted, err := p.classifier.Predict(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	seen := make(map[string]bool, len(predicted))
	seq := make([]string, 0, len(predicted))
	for _, step := range predicted {
		if p.known != nil && !p.known(step) {
			logging.Warn("planner dropped unknown step", "step", step)
			continue
		}
		if seen[step] {
			logging.Warn("planner dropped duplicate step", "step", step)
			continue
		}
		seen[step] = true
		seq = append(seq, step)
	}
	return seq, nil
}
