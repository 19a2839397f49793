package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// reloadOps covers in-place writes and the create/rename/remove sequence of
// editors that save through a temporary file.
const reloadOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watcher reloads a config file when it changes and passes every config that
// loads cleanly to onLoad. Reloads run on the watch goroutine, so onLoad is
// never called concurrently with itself or after Stop returns.
type Watcher struct {
	target string
	onLoad func(*Config)

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWatcher(path string, onLoad func(*Config)) *Watcher {
	return &Watcher{
		target: filepath.Clean(path),
		onLoad: onLoad,
		done:   make(chan struct{}),
	}
}

// Start watches the directory holding the config file until ctx ends or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(w.target)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("watch config directory %q: %w", dir, err)
	}

	w.wg.Add(1)
	go w.loop(ctx, fw)
	return nil
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	defer fw.Close()
	slog.Debug("config watcher started", "path", w.target)

	// fire is nil while no reload is pending. Each burst of events restarts
	// the debounce with a fresh timer.
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.target || ev.Op&reloadOps == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)

		case <-w.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the watch and waits for any reload in progress. Repeated calls
// are no-ops.
func (w *Watcher) Stop() {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Watcher) reload() {
	cfg, found, err := LoadOrDefault(w.target)
	switch {
	case err != nil:
		slog.Warn("config reload failed; keeping previous configuration", "path", w.target, "error", err)
	case !found:
		// A rename-save leaves the file briefly absent; defaults never
		// replace a running configuration.
		slog.Warn("config file gone; keeping previous configuration", "path", w.target)
	default:
		slog.Debug("config reloaded", "path", w.target)
		if w.onLoad != nil {
			w.onLoad(cfg)
		}
	}
}
