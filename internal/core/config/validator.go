package config

import (
	coreerrors "archratchet/internal/core/errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

var metricNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func invalid(format string, args ...any) *coreerrors.DomainError {
	return coreerrors.New(coreerrors.CodeValidationError, fmt.Sprintf(format, args...))
}

func validateVersion(cfg *Config) error {
	if cfg.Version < 1 {
		return invalid("version must be >= 1, got %d", cfg.Version)
	}
	if cfg.Version > CurrentVersion {
		return invalid("unsupported config version %d; supported version is %d", cfg.Version, CurrentVersion)
	}
	return nil
}

func validatePaths(cfg *Config) error {
	if cfg.Paths.Graph == "" {
		return invalid("paths.graph must not be empty")
	}
	if cfg.Paths.Baseline == "" {
		return invalid("paths.baseline must not be empty")
	}
	if cfg.Paths.Baseline == cfg.Paths.Graph {
		return invalid("paths.baseline and paths.graph share the same path %q", cfg.Paths.Graph)
	}
	return nil
}

func validateGrouping(cfg *Config) error {
	if err := validatePatterns("grouping.patterns", cfg.Grouping.Patterns); err != nil {
		return err
	}
	for i, name := range cfg.Grouping.EntryPoints {
		if strings.Contains(name, "/") {
			return invalid("grouping.entry_points[%d] %q must be a base name", i, name)
		}
	}
	if err := validatePatterns("units.deployable", cfg.Units.Deployable); err != nil {
		return err
	}
	return validatePatterns("units.library", cfg.Units.Library)
}

func validatePatterns(field string, patterns []string) error {
	for i, p := range patterns {
		if !strings.ContainsAny(p, "*?[]{}") {
			continue
		}
		if _, err := glob.Compile(p, '/'); err != nil {
			return invalid("%s[%d] %q is not a valid glob: %v", field, i, p, err)
		}
	}
	return nil
}

func validateAnalysis(cfg *Config) error {
	switch cfg.Analysis.CycleMode {
	case "trusted", "computed":
	default:
		return invalid("analysis.cycle_mode must be one of: trusted, computed; got %q", cfg.Analysis.CycleMode)
	}
	if cfg.Analysis.MaxCycles < 0 {
		return invalid("analysis.max_cycles must be >= 0")
	}
	return nil
}

func validateDepth(cfg *Config) error {
	if cfg.Depth.MaxDeployable < 0 || cfg.Depth.MaxLibrary < 0 {
		return invalid("depth thresholds must be >= 0 (0 disables)")
	}
	return nil
}

func validateRatchet(cfg *Config) error {
	tables := make(map[string]bool, len(cfg.Ratchet.Tables))
	for i, t := range cfg.Ratchet.Tables {
		ref := fmt.Sprintf("ratchet.tables[%d]", i)
		if !metricNamePattern.MatchString(t.Name) {
			return invalid("%s.name %q must match %s", ref, t.Name, metricNamePattern.String())
		}
		if t.Name == MetricCircular || t.Name == MetricFanOut || t.Name == MetricComplexity {
			return invalid("%s.name %q shadows a built-in metric", ref, t.Name)
		}
		if t.Path == "" {
			return invalid("%s.path must not be empty", ref)
		}
		if tables[t.Name] {
			return invalid("duplicate ratchet table %q", t.Name)
		}
		tables[t.Name] = true
	}

	for _, m := range cfg.Ratchet.Metrics {
		switch {
		case m == MetricCircular, m == MetricFanOut:
		case m == MetricComplexity:
			if cfg.Paths.Complexity == "" {
				return coreerrors.New(coreerrors.CodeValidationError, "ratchet metric \"complexity\" requires paths.complexity").
					WithRemediation("point paths.complexity at the complexity table or drop the metric")
			}
		case tables[m]:
		default:
			return invalid("ratchet.metrics references unknown metric %q", m)
		}
	}
	if cfg.Ratchet.LockTimeout < 0 {
		return invalid("ratchet.lock_timeout must be >= 0")
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && cfg.History.Path == "" {
		return invalid("history.path must not be empty when history is enabled")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return invalid("watch.debounce must be >= 0")
	}
	if cfg.Watch.MinInterval < 0 {
		return invalid("watch.min_interval must be >= 0")
	}
	return nil
}
