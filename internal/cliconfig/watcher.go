package cliconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/metricship/pkg/log"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher re-resolves the configuration whenever the config file changes and
// passes the result to OnChange.
type Watcher struct {
	path     string
	flags    Config
	changed  map[string]bool
	onChange func(Config)
	logger   log.Logger

	// Debounce is the quiet period before a reload. Zero means DefaultDebounce.
	Debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a Watcher for path. flags and changed are the same
// values given to Resolve at startup.
func NewWatcher(path string, flags Config, changed map[string]bool, onChange func(Config), logger log.Logger) *Watcher {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Watcher{
		path:     path,
		flags:    flags,
		changed:  changed,
		onChange: onChange,
		logger:   logger,
	}
}

// Run watches the directory holding the config file until ctx is canceled.
// The directory is watched rather than the file so that editors replacing
// the file by rename are noticed.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching config file", log.String("path", w.path))

	name := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.schedule(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", log.Err(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	delay := w.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		w.reload()
	})
}

func (w *Watcher) reload() {
	cfg, err := Resolve(w.flags, w.path, w.changed)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", log.Err(err))
		return
	}
	w.logger.Info("config reloaded", log.String("path", w.path))
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
