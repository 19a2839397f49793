package report

import (
	"archratchet/internal/core/app"
	"archratchet/internal/data/history"
	"archratchet/internal/engine/priority"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// WriteRunSummary prints the human-readable outcome of an operation.
func WriteRunSummary(w io.Writer, res *app.RunResult) error {
	if _, err := fmt.Fprintln(w, titleStyle.Render("archratchet "+res.Operation)); err != nil {
		return err
	}

	if res.Analysis != nil {
		a := res.Analysis
		line := fmt.Sprintf("%d modules, %d packages, %d cycles (%s), max depth %d",
			a.Graph.Len(), a.Packages.Len(), a.Cycles.CycleCount, a.Cycles.Mode, a.Depth.MaxDepth)
		if _, err := fmt.Fprintln(w, statusStyle.Render(line)); err != nil {
			return err
		}
	}

	if len(res.Check.Regressions) > 0 || len(res.Check.Improvements) > 0 {
		if err := writeDeltaTable(w, res); err != nil {
			return err
		}
	}

	for _, f := range res.Verdict.Failures {
		if f.Kind == app.KindRegression {
			continue
		}
		if err := writeFindingLine(w, failStyle, "FAIL", f); err != nil {
			return err
		}
	}
	for _, f := range res.Verdict.Warnings {
		if err := writeFindingLine(w, warnStyle, "WARN", f); err != nil {
			return err
		}
	}

	var verdict string
	switch {
	case !res.Verdict.Passed:
		verdict = failStyle.Render(fmt.Sprintf("✗ %s failed: %d failure(s)", res.Operation, len(res.Verdict.Failures)))
	case res.Written:
		verdict = successStyle.Render(fmt.Sprintf("✓ %s passed; baseline written", res.Operation))
	default:
		verdict = successStyle.Render(fmt.Sprintf("✓ %s passed", res.Operation))
	}
	_, err := fmt.Fprintln(w, verdict)
	return err
}

func writeFindingLine(w io.Writer, style lipgloss.Style, label string, f app.Finding) error {
	if _, err := fmt.Fprintf(w, "%s %s: %s\n", style.Render(label), f.Entity, f.Message); err != nil {
		return err
	}
	if f.Remediation == "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "     %s\n", statusStyle.Render(f.Remediation))
	return err
}

func writeDeltaTable(w io.Writer, res *app.RunResult) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Change", "Metric", "File", "Baseline", "Current"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, d := range res.Check.Regressions {
		data = append(data, []string{"regression", d.Metric, d.File, strconv.Itoa(d.Old), strconv.Itoa(d.New)})
	}
	for _, d := range res.Check.Improvements {
		data = append(data, []string{"improvement", d.Metric, d.File, strconv.Itoa(d.Old), strconv.Itoa(d.New)})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteReportTable prints the per-package metric report.
func WriteReportTable(w io.Writer, rows []app.ReportRow) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Package", "FanIn", "FanOut", "Instability", "Depth", "Unit", "Clusters", "Status"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, r := range rows {
		data = append(data, []string{
			r.Package,
			strconv.Itoa(r.FanIn),
			strconv.Itoa(r.FanOut),
			fmt.Sprintf("%.2f", r.Instability),
			strconv.Itoa(r.Depth),
			string(r.UnitClass),
			strconv.Itoa(r.ClusterCount),
			string(r.Status),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d packages\n", len(rows))
	return err
}

// WritePriorityTable prints the churn x complexity ranking.
func WritePriorityTable(w io.Writer, entries []priority.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, statusStyle.Render("no files are both churning and complex"))
		return err
	}
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "File", "Churn", "Complexity", "Score"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, e := range entries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			e.FilePath,
			strconv.Itoa(e.Churn),
			strconv.Itoa(e.Complexity),
			fmt.Sprintf("%.4f", e.Score),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// WriteTrendTable prints recorded runs, oldest first.
func WriteTrendTable(w io.Writer, r history.TrendReport) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Time", "Operation", "Commit", "Passed", "Cycles", "ΔCycles", "MaxDepth", "PassRate%"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, p := range r.Points {
		data = append(data, []string{
			p.Timestamp.Format("2006-01-02 15:04"),
			p.Operation,
			shortRef(p.CommitRef),
			strconv.FormatBool(p.Passed),
			strconv.Itoa(p.CycleCount),
			fmt.Sprintf("%+d", p.DeltaCycles),
			strconv.Itoa(p.MaxDepth),
			fmt.Sprintf("%.1f", p.PassRatePct),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d runs for project %s\n", r.RunCount, r.ProjectKey)
	return err
}

func shortRef(ref string) string {
	if len(ref) > 12 {
		return ref[:12]
	}
	return ref
}
