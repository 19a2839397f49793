package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	GraphModules = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_graph_modules",
		Help: "Number of modules in the loaded dependency graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_graph_edges",
		Help: "Number of internal edges in the loaded dependency graph.",
	})

	Packages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_packages",
		Help: "Number of packages after grouping.",
	})

	AnalysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "archratchet_analysis_seconds",
		Help:    "Time spent in each analysis task.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	CycleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_cycles",
		Help: "Cycle count reported by the last analysis.",
	})

	MaxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_max_depth",
		Help: "Deepest package dependency chain in the last analysis.",
	})

	SplitCandidates = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_split_candidates",
		Help: "Packages whose exports form more than one cluster.",
	})

	MetricTotals = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "archratchet_metric_total",
		Help: "Sum of current per-file counts for each tracked metric.",
	}, []string{"metric"})

	Regressions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_ratchet_regressions",
		Help: "Regressions found by the last ratchet check.",
	})

	Improvements = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archratchet_ratchet_improvements",
		Help: "Improvements found by the last ratchet check.",
	})

	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archratchet_operations_total",
		Help: "Ratchet operations run, by operation and outcome.",
	}, []string{"operation", "outcome"})

	BaselineLockWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "archratchet_baseline_lock_seconds",
		Help:    "Time spent holding the baseline lock for one operation.",
		Buckets: prometheus.DefBuckets,
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archratchet_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	WatchRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archratchet_watch_runs_total",
		Help: "Checks triggered by watch mode.",
	})
)

// WriteTextfile dumps the default registry in the node_exporter textfile
// format, so a CI job can hand it to a collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
