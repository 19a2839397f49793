package config

import (
	"time"
)

const (
	DefaultFile    = "archratchet.toml"
	CurrentVersion = 1
)

// Built-in ratchet metrics derived from the graph and the complexity table.
const (
	MetricCircular   = "circular"
	MetricFanOut     = "fan_out"
	MetricComplexity = "complexity"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Grouping      Grouping      `toml:"grouping"`
	Units         Units         `toml:"units"`
	Analysis      Analysis      `toml:"analysis"`
	Depth         Depth         `toml:"depth"`
	Cohesion      Cohesion      `toml:"cohesion"`
	Priority      Priority      `toml:"priority"`
	Ratchet       Ratchet       `toml:"ratchet"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	ProjectRoot string `toml:"project_root"`
	Graph       string `toml:"graph"`
	Baseline    string `toml:"baseline"`
	Churn       string `toml:"churn"`
	Complexity  string `toml:"complexity"`
}

type Grouping struct {
	// Patterns such as "packages/*". Empty means the first two path segments.
	Patterns    []string `toml:"patterns"`
	EntryPoints []string `toml:"entry_points"`
}

type Units struct {
	Deployable []string `toml:"deployable"`
	Library    []string `toml:"library"`
}

type Analysis struct {
	CycleMode string `toml:"cycle_mode"`
	MaxCycles int    `toml:"max_cycles"`
}

type Depth struct {
	MaxDeployable int `toml:"max_deployable"`
	MaxLibrary    int `toml:"max_library"`
}

type Cohesion struct {
	Enabled *bool `toml:"enabled"`
}

type Priority struct {
	Limit int `toml:"limit"`
}

type Ratchet struct {
	Metrics   []string      `toml:"metrics"`
	Tables    []MetricTable `toml:"tables"`
	CommitEnv []string      `toml:"commit_env"`

	// LockTimeout bounds how long an operation waits for the baseline lock.
	LockTimeout time.Duration `toml:"lock_timeout"`
}

// MetricTable is an externally produced per-file count, e.g. lint findings.
type MetricTable struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

type History struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	ProjectKey string `toml:"project_key"`
	Window     int    `toml:"window"`
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MinInterval time.Duration `toml:"min_interval"`
}

type Observability struct {
	MetricsFile  string `toml:"metrics_file"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
	Insecure     bool   `toml:"insecure"`
}

// IsEnabled defaults to true when the key is absent.
func (c Cohesion) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DefaultConfig is the configuration used when no file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	normalize(cfg)
	return cfg
}
