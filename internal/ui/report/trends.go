package report

import (
	"archratchet/internal/data/history"
	"archratchet/internal/shared/util"
	"encoding/json"
	"fmt"
	"strings"
)

func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tRunID\tOperation\tCommit\tPassed\tCycles\tMaxDepth\tDeltaCycles\tDeltaDepth\tDeltaTotals\tAvgCycles\tPassRatePct\tWindowRuns\n")
	for _, point := range report.Points {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%t\t%d\t%d\t%d\t%d\t%s\t%.2f\t%.2f\t%d\n",
			point.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			point.RunID,
			point.Operation,
			point.CommitRef,
			point.Passed,
			point.CycleCount,
			point.MaxDepth,
			point.DeltaCycles,
			point.DeltaDepth,
			formatDeltas(point.DeltaTotals),
			point.AvgCycles,
			point.PassRatePct,
			point.WindowRuns,
		))
	}

	return []byte(buf.String()), nil
}

func RenderTrendJSON(report history.TrendReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// formatDeltas renders "metric=+n" pairs in metric order.
func formatDeltas(deltas map[string]int) string {
	if len(deltas) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(deltas))
	for _, metric := range util.SortedStringKeys(deltas) {
		parts = append(parts, fmt.Sprintf("%s=%+d", metric, deltas[metric]))
	}
	return strings.Join(parts, ",")
}
