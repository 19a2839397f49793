package history

import "time"

const SchemaVersion = 2

// Run is one recorded ratchet operation.
type Run struct {
	RunID            string         `json:"run_id"`
	ProjectKey       string         `json:"project_key"`
	Timestamp        time.Time      `json:"timestamp"`
	CommitRef        string         `json:"commit_ref,omitempty"`
	Operation        string         `json:"operation"`
	Passed           bool           `json:"passed"`
	RegressionCount  int            `json:"regression_count"`
	ImprovementCount int            `json:"improvement_count"`
	CycleCount       int            `json:"cycle_count"`
	MaxDepth         int            `json:"max_depth"`
	SplitCount       int            `json:"split_count"`
	Totals           map[string]int `json:"totals"`
}

type TrendPoint struct {
	Timestamp   time.Time      `json:"timestamp"`
	RunID       string         `json:"run_id"`
	Operation   string         `json:"operation"`
	CommitRef   string         `json:"commit_ref,omitempty"`
	Passed      bool           `json:"passed"`
	CycleCount  int            `json:"cycle_count"`
	MaxDepth    int            `json:"max_depth"`
	DeltaCycles int            `json:"delta_cycles"`
	DeltaDepth  int            `json:"delta_depth"`
	DeltaTotals map[string]int `json:"delta_totals"`
	AvgCycles   float64        `json:"avg_cycles"`
	PassRatePct float64        `json:"pass_rate_pct"`
	WindowRuns  int            `json:"window_runs"`
}

type TrendReport struct {
	ProjectKey string       `json:"project_key"`
	Since      time.Time    `json:"since"`
	Until      time.Time    `json:"until"`
	RunCount   int          `json:"run_count"`
	Points     []TrendPoint `json:"points"`
}
