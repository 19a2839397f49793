package app

import (
	"archratchet/internal/core/config"
	"archratchet/internal/engine/analysis"
	"archratchet/internal/engine/ratchet"
	"fmt"
	"strings"
)

// Finding kinds.
const (
	KindCycles       = "cycles"
	KindDepth        = "depth"
	KindRegression   = "regression"
	KindSplit        = "split_candidate"
	KindPackageError = "package_error"
	KindUntracked    = "untracked_metric"
	KindNoBaseline   = "baseline_missing"
)

// Finding names one offending entity and what to do about it.
type Finding struct {
	Kind        string `json:"kind"`
	Entity      string `json:"entity"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

// Verdict is the gate outcome. Failures fail the gate; warnings never do.
type Verdict struct {
	Passed   bool      `json:"passed"`
	Failures []Finding `json:"failures"`
	Warnings []Finding `json:"warnings"`
}

func (v *Verdict) fail(f Finding) {
	v.Failures = append(v.Failures, f)
	v.Passed = false
}

func (v *Verdict) warn(f Finding) {
	v.Warnings = append(v.Warnings, f)
}

func analysisVerdict(cfg *config.Config, res *Analysis) Verdict {
	v := Verdict{Passed: true, Failures: make([]Finding, 0), Warnings: make([]Finding, 0)}

	if res.Cycles.Exceeds(cfg.Analysis.MaxCycles) {
		for _, entity := range cycleEntities(res.Cycles) {
			v.fail(Finding{
				Kind:        KindCycles,
				Entity:      entity,
				Message:     fmt.Sprintf("%d cycles exceed the allowed maximum of %d", res.Cycles.CycleCount, cfg.Analysis.MaxCycles),
				Remediation: "fix-edge: remove one dependency in the cycle",
			})
		}
	}

	for _, d := range res.Depth.Violations {
		v.fail(Finding{
			Kind:        KindDepth,
			Entity:      d.Package,
			Message:     fmt.Sprintf("dependency depth %d exceeds the %s limit of %d", d.Depth, d.Class, d.Limit),
			Remediation: fmt.Sprintf("shorten the dependency chain below %s or raise depth.max_%s", d.Package, d.Class),
		})
	}

	if res.Cohesion != nil {
		for _, c := range res.Cohesion.Packages {
			switch {
			case c.Status == analysis.StatusError:
				v.warn(Finding{
					Kind:        KindPackageError,
					Entity:      c.Package,
					Message:     c.Detail,
					Remediation: "fix-edge: point the package exports at modules inside the package",
				})
			case c.SplitCandidate:
				v.warn(Finding{
					Kind:    KindSplit,
					Entity:  c.Package,
					Message: fmt.Sprintf("%d exports form %d unrelated clusters", c.ExportCount, c.ClusterCount),
				})
			}
		}
	}
	return v
}

func cycleEntities(r *analysis.CycleReport) []string {
	if r.Mode == analysis.CycleModeComputed {
		out := make([]string, 0, len(r.Components))
		for _, members := range r.Components {
			out = append(out, strings.Join(members, ", "))
		}
		return out
	}
	out := make([]string, 0, len(r.Pairs))
	for _, p := range r.Pairs {
		out = append(out, p.From+" -> "+p.To)
	}
	return out
}

// mergeCheck folds a ratchet comparison into v.
func mergeCheck(v *Verdict, res ratchet.CheckResult, baselinePath string) {
	if res.CaptureRecommended {
		v.warn(Finding{
			Kind:        KindNoBaseline,
			Entity:      baselinePath,
			Message:     "no baseline to compare against",
			Remediation: "capture: run `archratchet capture` and commit the baseline",
		})
	}
	for _, d := range res.Regressions {
		v.fail(Finding{
			Kind:        KindRegression,
			Entity:      d.File,
			Message:     d.String(),
			Remediation: fmt.Sprintf("bring %s in %s back to %d or below", d.Metric, d.File, d.Old),
		})
	}
	for _, metric := range res.Untracked {
		v.warn(Finding{
			Kind:        KindUntracked,
			Entity:      metric,
			Message:     fmt.Sprintf("metric %s is not in the baseline", metric),
			Remediation: "run `archratchet update` to start tracking it",
		})
	}
}
