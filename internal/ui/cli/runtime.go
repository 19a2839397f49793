package cli

import (
	coreapp "archratchet/internal/core/app"
	"archratchet/internal/core/config"
	"archratchet/internal/data/history"
	"archratchet/internal/shared/observability"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"
)

// runtime carries the per-invocation state shared by the subcommands.
type runtime struct {
	opts   cliOptions
	stdout io.Writer
	stderr io.Writer

	// started is set once flags and arguments were accepted.
	started bool

	cfg      *config.Config
	cfgFound bool
	paths    config.ResolvedPaths
	app      *coreapp.App
	shutdown func(context.Context) error
}

func (rt *runtime) configureLogging() {
	level := slog.LevelInfo
	if rt.opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(rt.stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// open loads the configuration and builds the application service.
func (rt *runtime) open(ctx context.Context) (*coreapp.App, error) {
	if rt.app != nil {
		return rt.app, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("detect working directory: %w", err)
	}

	cfg, found, err := config.LoadOrDefault(rt.opts.configPath)
	if err != nil {
		return nil, err
	}
	if found {
		slog.Debug("loaded config", "path", rt.opts.configPath)
	} else {
		slog.Debug("config not found; using defaults", "path", rt.opts.configPath)
	}

	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		return nil, err
	}

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.Observability.OTLPEndpoint,
		ServiceName: cfg.Observability.ServiceName,
		Insecure:    cfg.Observability.Insecure,
	})
	if err != nil {
		slog.Warn("tracing disabled", "error", err)
	} else {
		rt.shutdown = shutdown
	}

	app, err := coreapp.New(cfg, paths)
	if err != nil {
		return nil, err
	}
	rt.cfg, rt.cfgFound, rt.paths, rt.app = cfg, found, paths, app
	return app, nil
}

// commitRef resolves --commit, then the CI environment, then git HEAD.
func (rt *runtime) commitRef(ctx context.Context) string {
	var envKeys []string
	if rt.cfg != nil {
		envKeys = rt.cfg.Ratchet.CommitEnv
	}
	if ref := coreapp.ResolveCommitRef(rt.opts.commitRef, envKeys); ref != "" {
		return ref
	}
	return history.ResolveGitCommit(ctx, rt.paths.ProjectRoot)
}

// flushMetrics writes the prometheus textfile when one is configured.
func (rt *runtime) flushMetrics() {
	if rt.paths.MetricsFile == "" {
		return
	}
	if err := observability.WriteTextfile(rt.paths.MetricsFile); err != nil {
		slog.Warn("failed to write metrics textfile", "path", rt.paths.MetricsFile, "error", err)
	}
}

func (rt *runtime) close() {
	if rt.app != nil {
		if err := rt.app.Close(); err != nil {
			slog.Warn("failed to close app", "error", err)
		}
	}
	if rt.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.shutdown(ctx); err != nil {
			slog.Warn("failed to flush traces", "error", err)
		}
	}
}
