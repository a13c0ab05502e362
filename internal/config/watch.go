package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tchow-twistedxcom/tmux-renamer/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

// DebounceInterval coalesces the burst of events an editor save produces.
const DebounceInterval = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func(*Config)
}

// NewWatcher watches the directory holding path, so atomic saves that
// replace the file are seen too. onChange receives every successfully
// parsed version; a file that fails to parse is logged and skipped, and
// so is the removal of the file.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &Watcher{path: path, watcher: w, onChange: onChange}, nil
}

// Run delivers reloads until ctx ends, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(DebounceInterval, func() {
				if ctx.Err() != nil {
					return
				}
				w.reload()
			})
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			configLog.Warn("config_watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	// A deleted file keeps the active settings; Load would hand back defaults.
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		configLog.Info("config_removed_keeping_active", slog.String("path", w.path))
		return
	}
	cfg, err := Load(w.path)
	if err != nil {
		configLog.Warn("config_reload_rejected",
			slog.String("path", w.path),
			slog.String("error", err.Error()))
		return
	}
	configLog.Info("config_reloaded",
		slog.String("path", w.path),
		slog.Int("patterns", len(cfg.Patterns)))
	w.onChange(cfg)
}
