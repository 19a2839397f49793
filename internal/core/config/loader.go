package config

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/engine/graph"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to DefaultConfig when the file does
// not exist. Environment overrides are applied in both cases.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	found := true
	if errors.Is(err, fs.ErrNotExist) {
		cfg, found, err = DefaultConfig(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ApplyEnvOverrides(cfg)
	normalize(cfg)
	if err := validate(cfg); err != nil {
		return nil, false, err
	}
	return cfg, found, nil
}

func Decode(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "decode toml")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, coreerrors.New(coreerrors.CodeValidationError, "unknown config keys: "+strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	normalize(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if err := validateVersion(cfg); err != nil {
		return err
	}
	if err := validatePaths(cfg); err != nil {
		return err
	}
	if err := validateGrouping(cfg); err != nil {
		return err
	}
	if err := validateAnalysis(cfg); err != nil {
		return err
	}
	if err := validateDepth(cfg); err != nil {
		return err
	}
	if err := validateRatchet(cfg); err != nil {
		return err
	}
	if err := validateHistory(cfg); err != nil {
		return err
	}
	return validateWatch(cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}

	if strings.TrimSpace(cfg.Paths.ProjectRoot) == "" {
		cfg.Paths.ProjectRoot = "."
	}
	if strings.TrimSpace(cfg.Paths.Graph) == "" {
		cfg.Paths.Graph = "build/dependency-graph.json"
	}
	if strings.TrimSpace(cfg.Paths.Baseline) == "" {
		cfg.Paths.Baseline = ".archratchet/baseline.json"
	}

	if len(cfg.Grouping.EntryPoints) == 0 {
		cfg.Grouping.EntryPoints = append([]string(nil), graph.DefaultEntryPoints...)
	}

	if strings.TrimSpace(cfg.Analysis.CycleMode) == "" {
		cfg.Analysis.CycleMode = "computed"
	}

	if cfg.Priority.Limit == 0 {
		cfg.Priority.Limit = 20
	}

	if len(cfg.Ratchet.Metrics) == 0 {
		cfg.Ratchet.Metrics = []string{MetricCircular, MetricFanOut}
		if strings.TrimSpace(cfg.Paths.Complexity) != "" {
			cfg.Ratchet.Metrics = append(cfg.Ratchet.Metrics, MetricComplexity)
		}
	}
	if len(cfg.Ratchet.CommitEnv) == 0 {
		cfg.Ratchet.CommitEnv = []string{"GITHUB_SHA", "CI_COMMIT_SHA", "BUILDKITE_COMMIT"}
	}
	if cfg.Ratchet.LockTimeout <= 0 {
		cfg.Ratchet.LockTimeout = 30 * time.Second
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".archratchet/history.db"
	}
	if strings.TrimSpace(cfg.History.ProjectKey) == "" {
		cfg.History.ProjectKey = "default"
	}
	if cfg.History.Window <= 0 {
		cfg.History.Window = 10
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MinInterval == 0 {
		cfg.Watch.MinInterval = 2 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "archratchet"
	}
}

func normalize(cfg *Config) {
	cfg.Paths.ProjectRoot = strings.TrimSpace(cfg.Paths.ProjectRoot)
	cfg.Paths.Graph = strings.TrimSpace(cfg.Paths.Graph)
	cfg.Paths.Baseline = strings.TrimSpace(cfg.Paths.Baseline)
	cfg.Paths.Churn = strings.TrimSpace(cfg.Paths.Churn)
	cfg.Paths.Complexity = strings.TrimSpace(cfg.Paths.Complexity)

	cfg.Grouping.Patterns = normalizeList(cfg.Grouping.Patterns, false)
	cfg.Grouping.EntryPoints = normalizeList(cfg.Grouping.EntryPoints, false)
	cfg.Units.Deployable = normalizeList(cfg.Units.Deployable, false)
	cfg.Units.Library = normalizeList(cfg.Units.Library, false)

	cfg.Analysis.CycleMode = strings.ToLower(strings.TrimSpace(cfg.Analysis.CycleMode))
	cfg.Ratchet.Metrics = normalizeList(cfg.Ratchet.Metrics, true)
	cfg.Ratchet.CommitEnv = normalizeList(cfg.Ratchet.CommitEnv, false)
	for i := range cfg.Ratchet.Tables {
		cfg.Ratchet.Tables[i].Name = strings.ToLower(strings.TrimSpace(cfg.Ratchet.Tables[i].Name))
		cfg.Ratchet.Tables[i].Path = strings.TrimSpace(cfg.Ratchet.Tables[i].Path)
	}

	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	cfg.History.ProjectKey = strings.TrimSpace(cfg.History.ProjectKey)
	cfg.Observability.MetricsFile = strings.TrimSpace(cfg.Observability.MetricsFile)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)
	cfg.Observability.ServiceName = strings.TrimSpace(cfg.Observability.ServiceName)
}

func normalizeList(in []string, lower bool) []string {
	if len(in) == 0 {
		return in
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
