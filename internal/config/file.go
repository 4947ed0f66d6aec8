// internal/config/file.go

package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"avoidance-core/internal/schema"
)

// FileLoader reads templates from a local YAML file.
type FileLoader struct {
	Path      string
	Validator *schema.Validator
}

// Load reads and validates the file. A non-empty vehicle must match the
// file's vehicle.
func (f FileLoader) Load(_ context.Context, vehicle string) (*Templates, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	ts, err := Parse(data, f.Validator)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if vehicle != "" && ts.Vehicle != vehicle {
		return nil, fmt.Errorf("%s: templates are for vehicle %s, not %s", f.Path, ts.Vehicle, vehicle)
	}
	return ts, nil
}

// Watch reloads the file whenever it changes and hands every valid version to
// onChange. Invalid versions are logged and skipped. It blocks until ctx is
// done. The directory is watched so editors that replace the file are seen.
func (f FileLoader) Watch(ctx context.Context, vehicle string, onChange func(*Templates), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target, err := filepath.Abs(f.Path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", f.Path, err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	logger.Info("watching templates", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			ts, err := f.Load(ctx, vehicle)
			if err != nil {
				logger.Warn("template reload rejected", "path", target, "error", err)
				continue
			}
			logger.Info("templates reloaded", "path", target, "behaviors", len(ts.Behaviors))
			onChange(ts)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("template watcher error", "error", err)
		}
	}
}
