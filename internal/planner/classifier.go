package planner

import (
	"context"
	"strings"
	"sync"
	"unicode"
)

// ExampleClassifier picks the catalog example whose prompt shares the most tokens
// with the input text.
type ExampleClassifier struct {
	mu       sync.RWMutex
	catalog  *Catalog
	examples []tokenSet
}

type tokenSet map[string]struct{}

// NewExampleClassifier builds a classifier from a validated catalog.
func NewExampleClassifier(c *Catalog) *ExampleClassifier {
	ec := &ExampleClassifier{}
	ec.SetCatalog(c)
	return ec
}

// SetCatalog swaps the training set. Safe for concurrent use with Predict.
func (ec *ExampleClassifier) SetCatalog(c *Catalog) {
	examples := make([]tokenSet, len(c.Examples))
	for i, ex := range c.Examples {
		examples[i] = tokenize(ex.Prompt)
	}
	ec.mu.Lock()
	ec.catalog = c
	ec.examples = examples
	ec.mu.Unlock()
}

// Predict returns the steps of the best matching example in vocabulary order.
func (ec *ExampleClassifier) Predict(ctx context.Context, text string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ec.mu.RLock()
	defer ec.mu.RUnlock()

	input := tokenize(text)
	best, bestScore := -1, 0.0
	for i, ex := range ec.examples {
		if score := jaccard(input, ex); score > bestScore {
			best, bestScore = i, score
		}
	}

	steps := ec.catalog.Default
	if best >= 0 {
		steps = ec.catalog.Examples[best].Steps
	}
	return ordered(ec.catalog.Vocabulary, steps), nil
}

func ordered(vocabulary, steps []string) []string {
	want := make(map[string]bool, len(steps))
	for _, s := range steps {
		want[s] = true
	}
	out := make([]string, 0, len(steps))
	for _, s := range vocabulary {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

func tokenize(text string) tokenSet {
	set := make(tokenSet)
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
