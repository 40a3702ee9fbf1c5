package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Example maps a sample prompt to the steps it should produce.
type Example struct {
	Prompt string   `yaml:"prompt"`
	Steps  []string `yaml:"steps"`
}

// Catalog is the training set of the example classifier.
type Catalog struct {
	// Vocabulary orders every predicted sequence.
	Vocabulary []string  `yaml:"vocabulary"`
	Default    []string  `yaml:"default"`
	Examples   []Example `yaml:"examples"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	full := []string{"keyword", "title", "content", "image", "seo", "publish"}
	return &Catalog{
		Vocabulary: []string{"keyword", "research", "insight", "idea", "title", "content", "image", "seo", "publish"},
		Default:    full,
		Examples: []Example{
			{Prompt: "Start workflow", Steps: full},
			{Prompt: "Full workflow", Steps: full},
			{Prompt: "Only title and content", Steps: []string{"title", "content"}},
			{Prompt: "Only SEO and publish", Steps: []string{"seo", "publish"}},
			{Prompt: "Research the market and brainstorm ideas", Steps: []string{"keyword", "research", "insight", "idea"}},
		},
	}
}

// ParseCatalog decodes a YAML catalog and validates it.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a YAML catalog from disk.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return ParseCatalog(data)
}

// Validate checks that every referenced step belongs to the vocabulary.
func (c *Catalog) Validate() error {
	if len(c.Vocabulary) == 0 {
		return fmt.Errorf("catalog vocabulary is empty")
	}
	vocab := make(map[string]bool, len(c.Vocabulary))
	for _, s := range c.Vocabulary {
		if vocab[s] {
			return fmt.Errorf("catalog vocabulary repeats %q", s)
		}
		vocab[s] = true
	}
	for _, s := range c.Default {
		if !vocab[s] {
			return fmt.Errorf("default step %q not in vocabulary", s)
		}
	}
	for i, ex := range c.Examples {
		if ex.Prompt == "" {
			return fmt.Errorf("example %d has an empty prompt", i)
		}
		for _, s := range ex.Steps {
			if !vocab[s] {
				return fmt.Errorf("example %d step %q not in vocabulary", i, s)
			}
		}
	}
	return nil
}
