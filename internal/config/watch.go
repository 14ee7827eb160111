package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the manager whenever its config file is written or
// replaced, until ctx is done. onReload, if set, receives each new config.
// The parent directory is watched so editors that save via rename are
// picked up.
func Watch(ctx context.Context, m *Manager, logger *slog.Logger, onReload func(*Config)) error {
	path := m.Path()
	if path == "" {
		return fmt.Errorf("config watch path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := m.Reload(); err != nil {
					logger.Warn("config reload failed, keeping previous config", "path", path, "error", err)
					continue
				}
				logger.Info("config reloaded", "path", path)
				if onReload != nil {
					onReload(m.Get())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
