package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "ARCHRATCHET_"

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: ARCHRATCHET_[SECTION]_[KEY] (e.g., ARCHRATCHET_PATHS_BASELINE).
func ApplyEnvOverrides(cfg *Config) {
	// Paths
	setEnvString(&cfg.Paths.ProjectRoot, envPrefix+"PATHS_PROJECT_ROOT")
	setEnvString(&cfg.Paths.Graph, envPrefix+"PATHS_GRAPH")
	setEnvString(&cfg.Paths.Baseline, envPrefix+"PATHS_BASELINE")
	setEnvString(&cfg.Paths.Churn, envPrefix+"PATHS_CHURN")
	setEnvString(&cfg.Paths.Complexity, envPrefix+"PATHS_COMPLEXITY")

	// Analysis
	setEnvString(&cfg.Analysis.CycleMode, envPrefix+"ANALYSIS_CYCLE_MODE")
	setEnvInt(&cfg.Analysis.MaxCycles, envPrefix+"ANALYSIS_MAX_CYCLES")
	setEnvInt(&cfg.Depth.MaxDeployable, envPrefix+"DEPTH_MAX_DEPLOYABLE")
	setEnvInt(&cfg.Depth.MaxLibrary, envPrefix+"DEPTH_MAX_LIBRARY")
	setEnvInt(&cfg.Priority.Limit, envPrefix+"PRIORITY_LIMIT")

	// Ratchet
	setEnvList(&cfg.Ratchet.Metrics, envPrefix+"RATCHET_METRICS")
	setEnvDuration(&cfg.Ratchet.LockTimeout, envPrefix+"RATCHET_LOCK_TIMEOUT")

	// History
	setEnvBool(&cfg.History.Enabled, envPrefix+"HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, envPrefix+"HISTORY_PATH")
	setEnvString(&cfg.History.ProjectKey, envPrefix+"HISTORY_PROJECT_KEY")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, envPrefix+"WATCH_DEBOUNCE")
	setEnvDuration(&cfg.Watch.MinInterval, envPrefix+"WATCH_MIN_INTERVAL")

	// Observability
	setEnvString(&cfg.Observability.MetricsFile, envPrefix+"OBSERVABILITY_METRICS_FILE")
	setEnvString(&cfg.Observability.OTLPEndpoint, envPrefix+"OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.Insecure, envPrefix+"OBSERVABILITY_INSECURE")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
