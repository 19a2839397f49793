package app

import (
	"archratchet/internal/core/watcher"
	"archratchet/internal/shared/observability"
	"archratchet/internal/shared/util"
	"context"
	"log/slog"
)

// Watch runs Check once and again whenever an input file changes, until ctx
// is done. Reruns are spaced by watch.min_interval, re-read after a config
// reload; changes arriving while a run is pending are coalesced into it.
func (a *App) Watch(ctx context.Context, onResult func(*RunResult, error)) error {
	cfg := a.current().cfg
	limiter := util.NewIntervalLimiter(cfg.Watch.MinInterval)
	trigger := make(chan []string, 1)

	w, err := watcher.NewWatcher(cfg.Watch.Debounce, func(paths []string) {
		select {
		case trigger <- paths:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer w.Close()

	inputs := a.Paths.Inputs()
	if err := w.Watch(inputs); err != nil {
		return err
	}
	slog.Info("watching inputs", "files", len(inputs))

	check := func() {
		res, err := a.Check(ctx)
		onResult(res, err)
	}
	limiter.Allow()
	check()

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-trigger:
			if ctx.Err() != nil {
				return nil
			}
			slog.Info("inputs changed", "paths", paths)
			observability.WatchRunsTotal.Inc()
			limiter.SetInterval(a.current().cfg.Watch.MinInterval)
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			check()
		}
	}
}
