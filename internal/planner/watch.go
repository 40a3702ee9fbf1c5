package planner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/xiaot623/gogo/contentflow/internal/logging"
)

const watchDebounce = 100 * time.Millisecond

// WatchCatalog reloads the catalog at path whenever it changes and passes the
// result to onChange. Invalid catalogs are logged and skipped. The directory is
// watched rather than the file so editors that replace the file are picked up.
// It returns once the watcher is running; watching stops when ctx is done.
func WatchCatalog(ctx context.Context, path string, onChange func(*Catalog)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer w.Close()
		ticker := time.NewTicker(watchDebounce)
		defer ticker.Stop()

		var pending time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.Now()
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Warn("catalog watcher error", "err", err)

			case <-ticker.C:
				if pending.IsZero() || time.Since(pending) < watchDebounce {
					continue
				}
				pending = time.Time{}
				c, err := LoadCatalog(abs)
				if err != nil {
					logging.Warn("catalog reload failed, keeping previous catalog", "path", abs, "err", err)
					continue
				}
				logging.Info("catalog reloaded", "path", abs, "examples", len(c.Examples))
				onChange(c)
			}
		}
	}()
	return nil
}
