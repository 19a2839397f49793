package app

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/data/history"
	"archratchet/internal/engine/ratchet"
	"archratchet/internal/shared/observability"
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Ratchet operations.
const (
	OpCapture = "capture"
	OpCheck   = "check"
	OpTighten = "tighten"
	OpUpdate  = "update"
)

// RunResult is the outcome of one ratchet operation.
type RunResult struct {
	Operation string              `json:"operation"`
	CommitRef string              `json:"commitRef,omitempty"`
	Analysis  *Analysis           `json:"analysis,omitempty"`
	Check     ratchet.CheckResult `json:"check"`
	Baseline  *ratchet.Baseline   `json:"baseline,omitempty"`
	// Written is true when the operation replaced the stored baseline.
	Written bool    `json:"written"`
	Verdict Verdict `json:"verdict"`
}

// Capture analyzes the inputs and replaces the baseline with the current
// counts.
func (a *App) Capture(ctx context.Context, commitRef string) (*RunResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Capture")
	defer span.End()

	res, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	out := &RunResult{Operation: OpCapture, CommitRef: commitRef, Analysis: res, Verdict: res.Verdict}
	stored, err := a.modify(ctx, OpCapture, func(*ratchet.Baseline) (*ratchet.Baseline, error) {
		return ratchet.Capture(res.Counts, commitRef, a.now()), nil
	})
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	out.Baseline, out.Written = stored, true
	out.Check = ratchet.Check(stored, res.Counts)
	a.finish(ctx, out)
	return out, nil
}

// Check analyzes the inputs and compares them against the stored baseline.
// It never writes the baseline.
func (a *App) Check(ctx context.Context) (*RunResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Check")
	defer span.End()

	res, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	lockCtx, cancel := a.lockContext(ctx)
	defer cancel()
	base, err := a.baselines.Load(lockCtx)
	if err != nil {
		failSpan(span, err)
		return nil, err
	}

	out := &RunResult{Operation: OpCheck, Analysis: res, Baseline: base, Verdict: res.Verdict}
	if base != nil {
		out.CommitRef = base.CommitRef
	}
	out.Check = ratchet.Check(base, res.Counts)
	mergeCheck(&out.Verdict, out.Check, a.baselines.Path())
	span.SetAttributes(
		attribute.Int("ratchet.regressions", len(out.Check.Regressions)),
		attribute.Bool("ratchet.passed", out.Verdict.Passed),
	)
	a.finish(ctx, out)
	return out, nil
}

// Tighten lowers every stored count by amount. It does not read the inputs.
func (a *App) Tighten(ctx context.Context, amount int) (*RunResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Tighten")
	defer span.End()

	stored, err := a.modify(ctx, OpTighten, func(current *ratchet.Baseline) (*ratchet.Baseline, error) {
		return ratchet.Tighten(current, amount)
	})
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	out := &RunResult{
		Operation: OpTighten,
		CommitRef: stored.CommitRef,
		Baseline:  stored,
		Written:   true,
		Check:     ratchet.CheckResult{Passed: true},
		Verdict:   Verdict{Passed: true, Failures: make([]Finding, 0), Warnings: make([]Finding, 0)},
	}
	a.finish(ctx, out)
	return out, nil
}

// Update folds improvements into the stored baseline. With any regression
// present the baseline is left untouched and the verdict lists them.
func (a *App) Update(ctx context.Context, commitRef string) (*RunResult, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Update")
	defer span.End()

	res, err := a.Analyze(ctx)
	if err != nil {
		return nil, err
	}
	out := &RunResult{Operation: OpUpdate, CommitRef: commitRef, Analysis: res, Verdict: res.Verdict}

	refused := false
	stored, err := a.modify(ctx, OpUpdate, func(current *ratchet.Baseline) (*ratchet.Baseline, error) {
		next, check, err := ratchet.Update(current, res.Counts, commitRef, a.now())
		out.Check = check
		if err != nil && len(check.Regressions) > 0 {
			refused = true
			return nil, nil
		}
		return next, err
	})
	if err != nil {
		failSpan(span, err)
		return nil, err
	}
	out.Baseline, out.Written = stored, !refused
	mergeCheck(&out.Verdict, out.Check, a.baselines.Path())
	if refused {
		slog.Warn("baseline update refused", "regressions", len(out.Check.Regressions))
	}
	a.finish(ctx, out)
	return out, nil
}

func (a *App) lockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if timeout := a.current().cfg.Ratchet.LockTimeout; timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func (a *App) modify(ctx context.Context, op string, fn func(*ratchet.Baseline) (*ratchet.Baseline, error)) (*ratchet.Baseline, error) {
	lockCtx, cancel := a.lockContext(ctx)
	defer cancel()

	started := time.Now()
	stored, err := a.baselines.Modify(lockCtx, fn)
	observability.BaselineLockWait.Observe(time.Since(started).Seconds())
	if err != nil {
		return nil, coreerrors.AddContext(err, coreerrors.CtxOperation, op)
	}
	return stored, nil
}

// finish publishes metrics and records the run. History failures are logged
// and never fail the operation.
func (a *App) finish(ctx context.Context, out *RunResult) {
	outcome := "pass"
	if !out.Verdict.Passed {
		outcome = "fail"
	}
	observability.OperationsTotal.WithLabelValues(out.Operation, outcome).Inc()
	observability.Regressions.Set(float64(len(out.Check.Regressions)))
	observability.Improvements.Set(float64(len(out.Check.Improvements)))

	if a.history == nil {
		return
	}
	run := history.Run{
		ProjectKey:       a.current().cfg.History.ProjectKey,
		Timestamp:        a.now().UTC(),
		CommitRef:        out.CommitRef,
		Operation:        out.Operation,
		Passed:           out.Verdict.Passed,
		RegressionCount:  len(out.Check.Regressions),
		ImprovementCount: len(out.Check.Improvements),
		Totals:           runTotals(out),
	}
	if out.Analysis != nil {
		run.CycleCount = out.Analysis.Cycles.CycleCount
		run.MaxDepth = out.Analysis.Depth.MaxDepth
		if out.Analysis.Cohesion != nil {
			run.SplitCount = len(out.Analysis.Cohesion.SplitCandidates())
		}
	}
	if _, err := a.history.SaveRun(ctx, run); err != nil {
		slog.Warn("failed to record run history", "operation", out.Operation, "error", err)
	}
}

func runTotals(out *RunResult) map[string]int {
	if out.Analysis == nil {
		if out.Baseline != nil {
			return out.Baseline.Totals
		}
		return map[string]int{}
	}
	totals := make(map[string]int, len(out.Analysis.Counts))
	for metric, files := range out.Analysis.Counts {
		sum := 0
		for _, n := range files {
			sum += n
		}
		totals[metric] = sum
	}
	return totals
}

// Trend reports the latest limit runs; limit <= 0 reports all of them.
func (a *App) Trend(ctx context.Context, limit int) (history.TrendReport, error) {
	if a.history == nil {
		return history.TrendReport{}, historyDisabled()
	}
	cfg := a.current().cfg
	runs, err := a.history.ListRuns(ctx, cfg.History.ProjectKey, limit)
	if err != nil {
		return history.TrendReport{}, err
	}
	report, err := history.BuildTrendReport(cfg.History.ProjectKey, runs, cfg.History.Window)
	if err != nil {
		return history.TrendReport{}, coreerrors.Wrap(err, coreerrors.CodeNotFound, "no run history").
			WithRemediation("run `archratchet check` with history enabled first")
	}
	return report, nil
}
