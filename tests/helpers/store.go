// Package helpers provides shared fixtures for package tests.
package helpers

import (
	"testing"

	"github.com/xiaot623/gogo/contentflow/internal/repository"
)

// NewTestSQLiteStore opens an in-memory store that is closed when the test ends.
func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}
