package history

import (
	"fmt"
	"math"
)

// BuildTrendReport computes per-run deltas against the previous run and a
// moving average over the last window runs. runs must be oldest first.
func BuildTrendReport(projectKey string, runs []Run, window int) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs recorded for project %q", normalizeProject(projectKey))
	}
	if window <= 0 {
		window = 1
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			Timestamp:   current.Timestamp,
			RunID:       current.RunID,
			Operation:   current.Operation,
			CommitRef:   current.CommitRef,
			Passed:      current.Passed,
			CycleCount:  current.CycleCount,
			MaxDepth:    current.MaxDepth,
			DeltaTotals: make(map[string]int),
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaCycles = current.CycleCount - prev.CycleCount
			point.DeltaDepth = current.MaxDepth - prev.MaxDepth
			for metric, total := range current.Totals {
				point.DeltaTotals[metric] = total - prev.Totals[metric]
			}
			for metric, total := range prev.Totals {
				if _, ok := current.Totals[metric]; !ok {
					point.DeltaTotals[metric] = -total
				}
			}
		}

		avgCycles, passRate, n := movingAverages(runs, i, window)
		point.AvgCycles = round2(avgCycles)
		point.PassRatePct = round2(passRate * 100)
		point.WindowRuns = n
		points = append(points, point)
	}

	return TrendReport{
		ProjectKey: normalizeProject(projectKey),
		Since:      runs[0].Timestamp,
		Until:      runs[len(runs)-1].Timestamp,
		RunCount:   len(points),
		Points:     points,
	}, nil
}

func movingAverages(runs []Run, index, window int) (float64, float64, int) {
	var cycles, passed, count int
	for i := index; i >= 0 && count < window; i-- {
		cycles += runs[i].CycleCount
		if runs[i].Passed {
			passed++
		}
		count++
	}
	return float64(cycles) / float64(count), float64(passed) / float64(count), count
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
