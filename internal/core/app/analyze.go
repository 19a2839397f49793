package app

import (
	"archratchet/internal/core/config"
	"archratchet/internal/data/tables"
	"archratchet/internal/engine/analysis"
	"archratchet/internal/engine/architecture"
	"archratchet/internal/engine/graph"
	"archratchet/internal/engine/priority"
	"archratchet/internal/engine/ratchet"
	"archratchet/internal/shared/observability"
	"archratchet/internal/shared/util"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Analysis is the result of one pass over the current inputs.
type Analysis struct {
	Graph    *graph.Graph             `json:"-"`
	Packages *graph.PackageSet        `json:"-"`
	Coupling *analysis.CouplingReport `json:"coupling"`
	Cycles   *analysis.CycleReport    `json:"cycles"`
	Depth    *analysis.DepthReport    `json:"depth"`
	// Cohesion is nil when cohesion analysis is disabled.
	Cohesion *analysis.CohesionReport `json:"cohesion,omitempty"`
	Priority []priority.Entry         `json:"priority"`
	Counts   ratchet.Counts           `json:"counts"`
	Report   []ReportRow              `json:"report"`
	Verdict  Verdict                  `json:"verdict"`
}

// ReportRow is one package line of the metric report.
type ReportRow struct {
	Package      string                 `json:"package"`
	FanIn        int                    `json:"fanIn"`
	FanOut       int                    `json:"fanOut"`
	Instability  float64                `json:"instability"`
	Depth        int                    `json:"depth"`
	UnitClass    architecture.UnitClass `json:"unitClass"`
	ClusterCount int                    `json:"clusterCount"`
	Clusters     [][]string             `json:"clusters,omitempty"`
	Status       analysis.Status        `json:"status"`
	Detail       string                 `json:"detail,omitempty"`
}

type inputTables struct {
	churn      tables.Table
	complexity tables.Table
	custom     map[string]tables.Table
}

// Analyze loads the graph and tables, runs the graph analyzers in parallel
// and derives the per-file counts the ratchet compares.
func (a *App) Analyze(ctx context.Context) (*Analysis, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Analyze")
	defer span.End()

	s := a.current()
	started := time.Now()
	defer func() {
		observability.AnalysisDuration.WithLabelValues("total").Observe(time.Since(started).Seconds())
	}()

	g, err := graph.LoadFile(a.Paths.Graph)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	in, err := a.loadTables()
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	ps := graph.GroupIntoPackages(g, s.grouping, graph.GroupOptions{EntryPoints: s.cfg.Grouping.EntryPoints})
	if n := len(ps.Ungrouped()); n > 0 {
		slog.Debug("modules outside any package", "count", n)
	}
	span.SetAttributes(
		attribute.Int("graph.modules", g.Len()),
		attribute.Int("graph.packages", ps.Len()),
	)

	res := &Analysis{Graph: g, Packages: ps}
	thresholds := analysis.DepthThresholds{
		MaxDeployable: s.cfg.Depth.MaxDeployable,
		MaxLibrary:    s.cfg.Depth.MaxLibrary,
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer timeTask(egCtx, "coupling")()
		res.Coupling = analysis.Coupling(ps)
		return nil
	})
	eg.Go(func() error {
		defer timeTask(egCtx, "cycles")()
		cycles, err := analysis.DetectCycles(g, s.cycleMode)
		res.Cycles = cycles
		return err
	})
	eg.Go(func() error {
		defer timeTask(egCtx, "depth")()
		res.Depth = analysis.Depth(ps, s.classifier, thresholds)
		return nil
	})
	if s.cfg.Cohesion.IsEnabled() {
		eg.Go(func() error {
			defer timeTask(egCtx, "cohesion")()
			res.Cohesion = analysis.Cohesion(g, ps)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		failSpan(span, err)
		return nil, err
	}

	stop := timeTask(ctx, "priority")
	res.Priority = priority.Top(priority.Score(in.churn.Churn(), in.complexity.Complexity()), s.cfg.Priority.Limit)
	stop()

	res.Counts = deriveCounts(s.cfg.Ratchet.Metrics, g, res.Cycles, in)
	res.Report = buildReport(res)
	res.Verdict = analysisVerdict(s.cfg, res)

	publishAnalysis(res)
	slog.Debug("analysis complete",
		"modules", g.Len(),
		"packages", ps.Len(),
		"cycles", res.Cycles.CycleCount,
		"max_depth", res.Depth.MaxDepth,
		"duration", time.Since(started),
	)
	return res, nil
}

func (a *App) loadTables() (inputTables, error) {
	in := inputTables{custom: make(map[string]tables.Table, len(a.Paths.Tables))}
	var err error
	if a.Paths.Churn != "" {
		if in.churn, err = tables.LoadFile(a.Paths.Churn); err != nil {
			return in, err
		}
	}
	if a.Paths.Complexity != "" {
		if in.complexity, err = tables.LoadFile(a.Paths.Complexity); err != nil {
			return in, err
		}
	}
	for _, name := range util.SortedStringKeys(a.Paths.Tables) {
		t, err := tables.LoadFile(a.Paths.Tables[name])
		if err != nil {
			return in, err
		}
		in.custom[name] = t
	}
	return in, nil
}

// deriveCounts builds the per-file values for every configured metric. Each
// metric is tracked even when no file has a nonzero value.
func deriveCounts(metrics []string, g *graph.Graph, cycles *analysis.CycleReport, in inputTables) ratchet.Counts {
	counts := make(ratchet.Counts, len(metrics))
	for _, metric := range metrics {
		counts.Track(metric)
		var values map[string]int
		switch metric {
		case config.MetricCircular:
			values = cycles.CountByModule()
		case config.MetricFanOut:
			values = make(map[string]int, g.Len())
			for i := 0; i < g.Len(); i++ {
				values[g.ID(i)] = len(g.Successors(i))
			}
		case config.MetricComplexity:
			values = in.complexity.Sum()
		default:
			values = in.custom[metric].Sum()
		}
		for file, n := range values {
			counts.Set(metric, file, n)
		}
	}
	return counts
}

func buildReport(res *Analysis) []ReportRow {
	pkgs := res.Packages.Packages()
	rows := make([]ReportRow, 0, len(pkgs))
	for _, p := range pkgs {
		row := ReportRow{Package: p.ID, Status: analysis.StatusOK}
		var notes []string

		if c, ok := res.Coupling.Get(p.ID); ok {
			row.FanIn, row.FanOut, row.Instability = c.FanIn, c.FanOut, c.Instability
		}
		if d, ok := res.Depth.Get(p.ID); ok {
			row.Depth, row.UnitClass = d.Depth, d.Class
			if d.Exceeded {
				row.Status = analysis.StatusWarning
				notes = append(notes, fmt.Sprintf("depth %d exceeds %s limit %d", d.Depth, d.Class, d.Limit))
			}
		}
		if res.Cohesion != nil {
			if c, ok := res.Cohesion.Get(p.ID); ok {
				row.ClusterCount, row.Clusters = c.ClusterCount, c.Clusters
				switch {
				case c.Status == analysis.StatusError:
					row.Status = analysis.StatusError
					notes = append([]string{c.Detail}, notes...)
				case c.SplitCandidate:
					if row.Status == analysis.StatusOK {
						row.Status = analysis.StatusWarning
					}
					notes = append(notes, fmt.Sprintf("exports form %d clusters", c.ClusterCount))
				}
			}
		}
		row.Detail = strings.Join(notes, "; ")
		rows = append(rows, row)
	}
	return rows
}

func publishAnalysis(res *Analysis) {
	observability.GraphModules.Set(float64(res.Graph.Len()))
	observability.GraphEdges.Set(float64(res.Graph.EdgeCount()))
	observability.Packages.Set(float64(res.Packages.Len()))
	observability.CycleCount.Set(float64(res.Cycles.CycleCount))
	observability.MaxDepth.Set(float64(res.Depth.MaxDepth))
	splits := 0
	if res.Cohesion != nil {
		splits = len(res.Cohesion.SplitCandidates())
	}
	observability.SplitCandidates.Set(float64(splits))
	for metric, files := range res.Counts {
		total := 0
		for _, n := range files {
			total += n
		}
		observability.MetricTotals.WithLabelValues(metric).Set(float64(total))
	}
}

func timeTask(ctx context.Context, task string) func() {
	_, span := observability.Tracer.Start(ctx, "analysis."+task)
	started := time.Now()
	return func() {
		observability.AnalysisDuration.WithLabelValues(task).Observe(time.Since(started).Seconds())
		span.End()
	}
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
