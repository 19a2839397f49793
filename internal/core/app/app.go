package app

import (
	"archratchet/internal/core/config"
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/core/ports"
	"archratchet/internal/data/baseline"
	"archratchet/internal/data/history"
	"archratchet/internal/engine/analysis"
	"archratchet/internal/engine/architecture"
	"archratchet/internal/engine/graph"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// App wires configuration, inputs and stores into the analysis and ratchet
// operations. It is safe for concurrent use; Reconfigure swaps the analysis
// settings atomically.
type App struct {
	Paths config.ResolvedPaths

	baselines ports.BaselineStore
	history   ports.HistoryStore
	now       func() time.Time

	mu       sync.RWMutex
	settings settings
}

// settings is everything derived from the config that an analysis run reads.
type settings struct {
	cfg        *config.Config
	grouping   graph.GroupingRule
	classifier architecture.Classifier
	cycleMode  analysis.CycleMode
}

type Option func(*App)

func WithBaselineStore(s ports.BaselineStore) Option {
	return func(a *App) { a.baselines = s }
}

func WithHistoryStore(s ports.HistoryStore) Option {
	return func(a *App) { a.history = s }
}

func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func New(cfg *config.Config, paths config.ResolvedPaths, opts ...Option) (*App, error) {
	s, err := buildSettings(cfg)
	if err != nil {
		return nil, err
	}
	a := &App{Paths: paths, settings: s, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}

	if a.baselines == nil {
		store, err := baseline.Open(paths.Baseline)
		if err != nil {
			return nil, err
		}
		a.baselines = store
	}

	if a.history == nil && cfg.History.Enabled {
		store, err := history.Open(paths.History)
		switch {
		case err == nil:
			a.history = store
		case history.IsCorruptError(err):
			slog.Warn("history database unreadable; runs will not be recorded", "path", paths.History, "error", err)
		default:
			return nil, err
		}
	}
	return a, nil
}

func buildSettings(cfg *config.Config) (settings, error) {
	grouping, err := architecture.GroupingRules(cfg.Grouping.Patterns)
	if err != nil {
		return settings{}, err
	}
	classifier, err := architecture.NewClassifier(cfg.Units.Deployable, cfg.Units.Library)
	if err != nil {
		return settings{}, err
	}
	mode, err := analysis.ParseCycleMode(cfg.Analysis.CycleMode)
	if err != nil {
		return settings{}, err
	}
	return settings{cfg: cfg, grouping: grouping, classifier: classifier, cycleMode: mode}, nil
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	return a.current().cfg
}

func (a *App) current() settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// Reconfigure applies a reloaded configuration to later runs. Input and
// store locations are fixed at construction and are not changed.
func (a *App) Reconfigure(cfg *config.Config) error {
	s, err := buildSettings(cfg)
	if err != nil {
		return err
	}
	old := a.current().cfg
	if old.Paths != cfg.Paths || old.History.Path != cfg.History.Path {
		slog.Warn("config reload changed input or store paths; restart to apply them")
	}
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	slog.Info("configuration reloaded")
	return nil
}

func (a *App) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// HistoryEnabled reports whether runs are being recorded.
func (a *App) HistoryEnabled() bool {
	return a.history != nil
}

// ResolveCommitRef prefers an explicit ref and falls back to the first
// non-empty variable in envKeys.
func ResolveCommitRef(explicit string, envKeys []string) string {
	if ref := strings.TrimSpace(explicit); ref != "" {
		return ref
	}
	for _, key := range envKeys {
		if ref := strings.TrimSpace(os.Getenv(key)); ref != "" {
			return ref
		}
	}
	return ""
}

func historyDisabled() error {
	return coreerrors.New(coreerrors.CodeValidationError, "run history is disabled").
		WithRemediation("set history.enabled = true in archratchet.toml")
}
