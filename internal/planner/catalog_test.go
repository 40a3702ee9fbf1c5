package planner

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

const sampleCatalog = `
vocabulary: [title, content, seo]
default: [title, content]
examples:
  - prompt: Only SEO
    steps: [seo]
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(sampleCatalog))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}
	if !reflect.DeepEqual(c.Default, []string{"title", "content"}) {
		t.Fatalf("unexpected default: %v", c.Default)
	}
	if len(c.Examples) != 1 || c.Examples[0].Prompt != "Only SEO" {
		t.Fatalf("unexpected examples: %+v", c.Examples)
	}
}

func TestParseCatalogRejectsUnknownStep(t *testing.T) {
	data := "vocabulary: [title]\nexamples:\n  - prompt: x\n    steps: [publish]\n"
	if _, err := ParseCatalog([]byte(data)); err == nil {
		t.Fatalf("expected error for step outside vocabulary")
	}
}

func TestParseCatalogRejectsEmptyVocabulary(t *testing.T) {
	if _, err := ParseCatalog([]byte("default: []\n")); err == nil {
		t.Fatalf("expected error for empty vocabulary")
	}
}

func TestDefaultCatalogValid(t *testing.T) {
	if err := DefaultCatalog().Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestWatchCatalogReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(sampleCatalog), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Catalog, 4)
	if err := WatchCatalog(ctx, path, func(c *Catalog) { changes <- c }); err != nil {
		t.Fatalf("WatchCatalog failed: %v", err)
	}

	updated := "vocabulary: [seo]\ndefault: [seo]\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite catalog: %v", err)
	}

	select {
	case c := <-changes:
		if !reflect.DeepEqual(c.Vocabulary, []string{"seo"}) {
			t.Fatalf("unexpected reloaded vocabulary: %v", c.Vocabulary)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for catalog reload")
	}
}
