package app

import (
	"archratchet/internal/core/config"
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/data/baseline"
	"archratchet/internal/engine/analysis"
	"archratchet/internal/engine/graph"
	"archratchet/internal/engine/ratchet"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	apiIndex  = "packages/api/src/index.ts"
	apiA      = "packages/api/src/a.ts"
	coreIndex = "packages/core/src/index.ts"
	coreUtil  = "packages/core/src/util.ts"
	webIndex  = "packages/web/src/index.ts"
)

func baseEdges() map[string][]string {
	return map[string][]string{
		apiIndex:  {apiA, coreIndex},
		apiA:      {coreIndex},
		coreIndex: {coreUtil},
		coreUtil:  nil,
	}
}

type fixture struct {
	dir string
	cfg *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{dir: t.TempDir(), cfg: config.DefaultConfig()}
	f.cfg.Paths.Graph = "graph.json"
	f.cfg.Paths.Baseline = "baseline.json"
	f.writeGraph(t, baseEdges())
	return f
}

func (f *fixture) writeGraph(t *testing.T, edges map[string][]string) {
	t.Helper()
	ids := make([]string, 0, len(edges))
	for id := range edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	raw := graph.RawGraph{Version: graph.SchemaVersion}
	for _, id := range ids {
		m := graph.RawModule{Source: id, Dependencies: make([]graph.RawDependency, 0)}
		for _, to := range edges[id] {
			m.Dependencies = append(m.Dependencies, graph.RawDependency{Resolved: to})
		}
		raw.Modules = append(raw.Modules, m)
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	f.writeFile(t, "graph.json", string(data))
}

func (f *fixture) writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

func (f *fixture) app(t *testing.T, opts ...Option) *App {
	t.Helper()
	paths, err := config.ResolvePaths(f.cfg, f.dir)
	require.NoError(t, err)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	opts = append([]Option{WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Minute)
		return clock
	})}, opts...)
	a, err := New(f.cfg, paths, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func kinds(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Kind)
	}
	return out
}

func TestCheck_WithoutBaselineRecommendsCapture(t *testing.T) {
	a := newFixture(t).app(t)

	res, err := a.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Verdict.Passed)
	assert.True(t, res.Check.CaptureRecommended)
	assert.Nil(t, res.Baseline)
	assert.Contains(t, kinds(res.Verdict.Warnings), KindNoBaseline)
	assert.False(t, res.Written)
}

func TestCaptureThenCheck(t *testing.T) {
	f := newFixture(t)
	a := f.app(t)
	ctx := context.Background()

	captured, err := a.Capture(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, captured.Written)
	assert.Equal(t, "abc123", captured.Baseline.CommitRef)
	assert.Equal(t, 2, captured.Baseline.Count("fan_out", apiIndex))
	assert.True(t, captured.Baseline.Tracks("circular"))
	assert.FileExists(t, filepath.Join(f.dir, "baseline.json"))

	checked, err := a.Check(ctx)
	require.NoError(t, err)
	assert.True(t, checked.Verdict.Passed)
	assert.Empty(t, checked.Check.Regressions)
	assert.Equal(t, "abc123", checked.CommitRef)
}

func TestCheck_DetectsRegression(t *testing.T) {
	f := newFixture(t)
	a := f.app(t)
	ctx := context.Background()

	_, err := a.Capture(ctx, "")
	require.NoError(t, err)

	edges := baseEdges()
	edges[apiA] = []string{coreIndex, coreUtil}
	f.writeGraph(t, edges)

	res, err := a.Check(ctx)
	require.NoError(t, err)
	assert.False(t, res.Verdict.Passed)
	assert.Equal(t, []ratchet.Delta{{Metric: "fan_out", File: apiA, Old: 1, New: 2}}, res.Check.Regressions)
	require.Len(t, res.Verdict.Failures, 1)
	assert.Equal(t, KindRegression, res.Verdict.Failures[0].Kind)
	assert.Equal(t, apiA, res.Verdict.Failures[0].Entity)
	assert.NotEmpty(t, res.Verdict.Failures[0].Remediation)
}

func TestUpdate_RefusesRegressionsAndFoldsImprovements(t *testing.T) {
	f := newFixture(t)
	a := f.app(t)
	ctx := context.Background()

	_, err := a.Capture(ctx, "v1")
	require.NoError(t, err)

	regressed := baseEdges()
	regressed[apiA] = []string{coreIndex, coreUtil}
	f.writeGraph(t, regressed)

	refused, err := a.Update(ctx, "v2")
	require.NoError(t, err)
	assert.False(t, refused.Written)
	assert.False(t, refused.Verdict.Passed)
	assert.Len(t, refused.Check.Regressions, 1)

	store, err := baseline.Open(filepath.Join(f.dir, "baseline.json"))
	require.NoError(t, err)
	onDisk, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", onDisk.CommitRef)
	assert.Equal(t, 1, onDisk.Count("fan_out", apiA))

	improved := baseEdges()
	improved[apiIndex] = []string{coreIndex}
	f.writeGraph(t, improved)

	updated, err := a.Update(ctx, "v3")
	require.NoError(t, err)
	assert.True(t, updated.Written)
	assert.True(t, updated.Verdict.Passed)
	assert.Equal(t, "v3", updated.Baseline.CommitRef)
	assert.Equal(t, 1, updated.Baseline.Count("fan_out", apiIndex))
	assert.Len(t, updated.Check.Improvements, 1)
}

func TestUpdate_WithoutBaseline(t *testing.T) {
	a := newFixture(t).app(t)
	_, err := a.Update(context.Background(), "")
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeBaselineMissing))
}

func TestTighten(t *testing.T) {
	a := newFixture(t).app(t)
	ctx := context.Background()

	_, err := a.Tighten(ctx, 1)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeBaselineMissing))
	assert.Contains(t, coreerrors.Remediation(err), "capture")

	_, err = a.Capture(ctx, "")
	require.NoError(t, err)

	res, err := a.Tighten(ctx, 1)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, 1, res.Baseline.Count("fan_out", apiIndex))
	_, kept := res.Baseline.Metrics["fan_out"][apiA]
	assert.False(t, kept, "zero entries are pruned")
	assert.Equal(t, 1, res.Baseline.Totals["fan_out"])

	_, err = a.Tighten(ctx, -1)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeValidationError))
}

func TestCheck_CycleOverMaximumFails(t *testing.T) {
	f := newFixture(t)
	edges := baseEdges()
	edges[coreUtil] = []string{coreIndex}
	f.writeGraph(t, edges)

	res, err := f.app(t).Check(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Verdict.Passed)
	require.Len(t, res.Verdict.Failures, 1)
	assert.Equal(t, KindCycles, res.Verdict.Failures[0].Kind)
	assert.Equal(t, coreIndex+", "+coreUtil, res.Verdict.Failures[0].Entity)
	assert.Equal(t, 1, res.Analysis.Counts["circular"][coreIndex])
	assert.Equal(t, 1, res.Analysis.Counts["circular"][coreUtil])

	f.cfg.Analysis.MaxCycles = 1
	allowed, err := f.app(t).Check(context.Background())
	require.NoError(t, err)
	assert.True(t, allowed.Verdict.Passed)
}

func TestAnalyze_ReportAndDepthThreshold(t *testing.T) {
	f := newFixture(t)
	edges := baseEdges()
	edges[webIndex] = []string{apiIndex}
	f.writeGraph(t, edges)
	f.cfg.Units.Deployable = []string{"packages/web"}
	f.cfg.Depth.MaxDeployable = 1

	res, err := f.app(t).Analyze(context.Background())
	require.NoError(t, err)

	rows := make(map[string]ReportRow, len(res.Report))
	for _, r := range res.Report {
		rows[r.Package] = r
	}
	require.Len(t, rows, 3)

	web := rows["packages/web"]
	assert.Equal(t, 2, web.Depth)
	assert.Equal(t, "deployable", string(web.UnitClass))
	assert.Equal(t, analysis.StatusWarning, web.Status)
	assert.Contains(t, web.Detail, "depth 2 exceeds")

	api := rows["packages/api"]
	assert.Equal(t, 1, api.FanIn)
	assert.Equal(t, 1, api.FanOut)
	assert.InDelta(t, 0.5, api.Instability, 1e-9)

	core := rows["packages/core"]
	assert.Equal(t, 0, core.Depth)
	assert.Equal(t, 0.0, core.Instability)

	assert.False(t, res.Verdict.Passed)
	assert.Equal(t, []string{KindDepth}, kinds(res.Verdict.Failures))
	assert.Equal(t, "packages/web", res.Verdict.Failures[0].Entity)
}

func TestAnalyze_TablesFeedPriorityAndCustomMetrics(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "churn.json", `[{"filePath":"`+apiA+`","changeCount":4},{"filePath":"`+coreUtil+`","changeCount":2}]`)
	f.writeFile(t, "complexity.json", `[{"filePath":"`+apiA+`","complexCount":2}]`)
	f.writeFile(t, "lint.json", `{"`+apiA+`": 3}`)
	f.cfg.Paths.Churn = "churn.json"
	f.cfg.Paths.Complexity = "complexity.json"
	f.cfg.Ratchet.Tables = []config.MetricTable{{Name: "lint", Path: "lint.json"}}
	f.cfg.Ratchet.Metrics = []string{"circular", "complexity", "lint"}

	res, err := f.app(t).Analyze(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Priority, 1)
	assert.Equal(t, apiA, res.Priority[0].FilePath)
	assert.InDelta(t, 1.0, res.Priority[0].Score, 1e-9)

	assert.Equal(t, []string{"circular", "complexity", "lint"}, res.Counts.Metrics())
	assert.Equal(t, 3, res.Counts["lint"][apiA])
	assert.Equal(t, 2, res.Counts["complexity"][apiA])
	assert.Empty(t, res.Counts["circular"])
}

func TestAnalyze_MissingTableIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.cfg.Paths.Churn = "missing.json"

	_, err := f.app(t).Analyze(context.Background())
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeNotFound))
}

func TestCheck_MalformedGraphProducesNoReport(t *testing.T) {
	f := newFixture(t)
	f.writeFile(t, "graph.json", `{"version":1,"modules":[{"source":"a.ts","dependencies":[{"resolved":"ghost.ts"}]}]}`)

	res, err := f.app(t).Check(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeMalformedInput))
}

func TestHistory_RecordsRunsAndBuildsTrend(t *testing.T) {
	f := newFixture(t)
	f.cfg.History.Enabled = true
	f.cfg.History.Path = "history.db"
	a := f.app(t)
	ctx := context.Background()
	require.True(t, a.HistoryEnabled())

	_, err := a.Capture(ctx, "c1")
	require.NoError(t, err)
	_, err = a.Check(ctx)
	require.NoError(t, err)

	report, err := a.Trend(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RunCount)
	require.Len(t, report.Points, 2)
	assert.Equal(t, OpCapture, report.Points[0].Operation)
	assert.Equal(t, OpCheck, report.Points[1].Operation)
	assert.True(t, report.Points[1].Passed)
}

func TestTrend_HistoryDisabled(t *testing.T) {
	_, err := newFixture(t).app(t).Trend(context.Background(), 10)
	require.Error(t, err)
	assert.True(t, coreerrors.IsCode(err, coreerrors.CodeValidationError))
}

func TestResolveCommitRef(t *testing.T) {
	t.Setenv("ARCHRATCHET_TEST_SHA_A", "")
	t.Setenv("ARCHRATCHET_TEST_SHA_B", "deadbeef")
	keys := []string{"ARCHRATCHET_TEST_SHA_A", "ARCHRATCHET_TEST_SHA_B"}

	assert.Equal(t, "explicit", ResolveCommitRef(" explicit ", keys))
	assert.Equal(t, "deadbeef", ResolveCommitRef("", keys))
	assert.Equal(t, "", ResolveCommitRef("", nil))
}

func TestReconfigure(t *testing.T) {
	f := newFixture(t)
	a := f.app(t)

	bad := config.DefaultConfig()
	bad.Grouping.Patterns = []string{"packages/[*"}
	require.Error(t, a.Reconfigure(bad))
	assert.Equal(t, "computed", a.Config().Analysis.CycleMode)

	next := *f.cfg
	next.Analysis.CycleMode = "trusted"
	require.NoError(t, a.Reconfigure(&next))
	assert.Equal(t, "trusted", a.Config().Analysis.CycleMode)

	res, err := a.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, analysis.CycleModeTrusted, res.Cycles.Mode)
}

func TestWatch_RerunsCheckOnInputChange(t *testing.T) {
	f := newFixture(t)
	f.cfg.Watch.Debounce = 20 * time.Millisecond
	f.cfg.Watch.MinInterval = 0
	a := f.app(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *RunResult, 10)
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, func(res *RunResult, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	select {
	case res := <-results:
		assert.Equal(t, OpCheck, res.Operation)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the initial check")
	}

	edges := baseEdges()
	edges[coreUtil] = []string{coreIndex}
	f.writeGraph(t, edges)

	select {
	case res := <-results:
		assert.Equal(t, 1, res.Analysis.Cycles.CycleCount)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for the rerun")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
