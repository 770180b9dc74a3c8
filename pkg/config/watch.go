package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch blocks watching the given config file for changes and invokes fn
// after every write. The parent directory is watched rather than the file
// itself so that editors which replace the file (write to temp, rename over)
// still trigger. fn must be safe to call repeatedly; a single save can
// deliver more than one event.
//
// Returns when ctx is cancelled. Watcher errors are logged and do not stop
// the watch.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching config dir: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			logger.Debug("config file changed", "path", path, "op", event.Op.String())
			fn()
		case err := <-watcher.Errors:
			logger.Warn("config watcher error", "error", err)
		}
	}
}
