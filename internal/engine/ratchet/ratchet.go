package ratchet

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/shared/util"
	"fmt"
	"time"
)

// BaselineVersion is written into every captured baseline.
const BaselineVersion = 1

// Counts holds one run's tracked per-file values, keyed by metric then file.
type Counts map[string]map[string]int

// Set records a value, dropping zero entries so baselines stay sparse.
func (c Counts) Set(metric, file string, value int) {
	if value <= 0 {
		return
	}
	if c[metric] == nil {
		c[metric] = make(map[string]int)
	}
	c[metric][file] = value
}

// Track marks a metric as measured even when no file has a nonzero count.
func (c Counts) Track(metric string) {
	if c[metric] == nil {
		c[metric] = make(map[string]int)
	}
}

func (c Counts) Metrics() []string {
	return util.SortedStringKeys(c)
}

type Baseline struct {
	Version   int                       `json:"version" yaml:"version"`
	Timestamp time.Time                 `json:"timestamp" yaml:"timestamp"`
	CommitRef string                    `json:"commitRef" yaml:"commitRef"`
	Metrics   map[string]map[string]int `json:"metrics" yaml:"metrics"`
	Totals    map[string]int            `json:"totals" yaml:"totals"`
}

// Count returns the baseline value for file under metric, 0 when absent.
func (b *Baseline) Count(metric, file string) int {
	if b == nil {
		return 0
	}
	return b.Metrics[metric][file]
}

func (b *Baseline) Tracks(metric string) bool {
	if b == nil {
		return false
	}
	_, ok := b.Metrics[metric]
	return ok
}

func (b *Baseline) clone() *Baseline {
	out := &Baseline{
		Version:   b.Version,
		Timestamp: b.Timestamp,
		CommitRef: b.CommitRef,
		Metrics:   make(map[string]map[string]int, len(b.Metrics)),
	}
	for metric, files := range b.Metrics {
		m := make(map[string]int, len(files))
		for f, v := range files {
			m[f] = v
		}
		out.Metrics[metric] = m
	}
	out.recomputeTotals()
	return out
}

func (b *Baseline) recomputeTotals() {
	b.Totals = make(map[string]int, len(b.Metrics))
	for metric, files := range b.Metrics {
		total := 0
		for _, v := range files {
			total += v
		}
		b.Totals[metric] = total
	}
}

type Delta struct {
	Metric string `json:"metric"`
	File   string `json:"file"`
	Old    int    `json:"old"`
	New    int    `json:"new"`
}

func (d Delta) String() string {
	return fmt.Sprintf("%s %s: %d -> %d", d.Metric, d.File, d.Old, d.New)
}

type CheckResult struct {
	Passed             bool     `json:"passed"`
	CaptureRecommended bool     `json:"captureRecommended"`
	Regressions        []Delta  `json:"regressions"`
	Improvements       []Delta  `json:"improvements"`
	Untracked          []string `json:"untracked,omitempty"`
}

// Capture snapshots counts into a fresh baseline.
func Capture(counts Counts, commitRef string, now time.Time) *Baseline {
	b := &Baseline{
		Version:   BaselineVersion,
		Timestamp: now.UTC(),
		CommitRef: commitRef,
		Metrics:   make(map[string]map[string]int, len(counts)),
	}
	for metric, files := range counts {
		m := make(map[string]int, len(files))
		for f, v := range files {
			if v > 0 {
				m[f] = v
			}
		}
		b.Metrics[metric] = m
	}
	b.recomputeTotals()
	return b
}

// Check compares counts against base without modifying it. A nil baseline
// passes and recommends a capture.
func Check(base *Baseline, counts Counts) CheckResult {
	res := CheckResult{
		Regressions:  make([]Delta, 0),
		Improvements: make([]Delta, 0),
	}
	if base == nil {
		res.Passed = true
		res.CaptureRecommended = true
		return res
	}

	for _, metric := range util.SortedStringKeys(base.Metrics) {
		baseFiles := base.Metrics[metric]
		current := counts[metric]
		files := make(map[string]bool, len(baseFiles)+len(current))
		for f := range baseFiles {
			files[f] = true
		}
		for f := range current {
			files[f] = true
		}
		for _, f := range util.SortedStringKeys(files) {
			old, now := baseFiles[f], current[f]
			switch {
			case now > old:
				res.Regressions = append(res.Regressions, Delta{Metric: metric, File: f, Old: old, New: now})
			case now < old:
				res.Improvements = append(res.Improvements, Delta{Metric: metric, File: f, Old: old, New: now})
			}
		}
	}
	for _, metric := range counts.Metrics() {
		if !base.Tracks(metric) {
			res.Untracked = append(res.Untracked, metric)
		}
	}
	res.Passed = len(res.Regressions) == 0
	return res
}

// Tighten lowers every count by amount, pruning entries that reach zero.
func Tighten(base *Baseline, amount int) (*Baseline, error) {
	if base == nil {
		return nil, coreerrors.New(coreerrors.CodeBaselineMissing, "cannot tighten without a baseline").
			WithContext(coreerrors.CtxOperation, "tighten").
			WithRemediation("run `archratchet capture` first")
	}
	if amount < 0 {
		return nil, coreerrors.New(coreerrors.CodeValidationError, fmt.Sprintf("tighten amount must be >= 0, got %d", amount)).
			WithContext(coreerrors.CtxOperation, "tighten")
	}

	out := base.clone()
	for metric, files := range out.Metrics {
		for f, v := range files {
			next := v - amount
			if next <= 0 {
				delete(files, f)
				continue
			}
			files[f] = next
		}
		out.Metrics[metric] = files
	}
	out.recomputeTotals()
	return out, nil
}

// Update folds improvements into the baseline: each file keeps
// min(baseline, current). It refuses while any regression is present and
// returns the check result either way. Metrics the baseline does not track
// yet are adopted from counts.
func Update(base *Baseline, counts Counts, commitRef string, now time.Time) (*Baseline, CheckResult, error) {
	if base == nil {
		return nil, CheckResult{}, coreerrors.New(coreerrors.CodeBaselineMissing, "cannot update without a baseline").
			WithContext(coreerrors.CtxOperation, "update").
			WithRemediation("run `archratchet capture` first")
	}
	res := Check(base, counts)
	if !res.Passed {
		return nil, res, coreerrors.New(coreerrors.CodeValidationError,
			fmt.Sprintf("refusing to update baseline with %d regression(s)", len(res.Regressions))).
			WithContext(coreerrors.CtxOperation, "update").
			WithRemediation("fix the regressions, then rerun update")
	}

	out := base.clone()
	for metric, files := range out.Metrics {
		current := counts[metric]
		for f, old := range files {
			if v := current[f]; v < old {
				if v <= 0 {
					delete(files, f)
					continue
				}
				files[f] = v
			}
		}
	}
	for _, metric := range res.Untracked {
		m := make(map[string]int, len(counts[metric]))
		for f, v := range counts[metric] {
			if v > 0 {
				m[f] = v
			}
		}
		out.Metrics[metric] = m
	}
	out.Timestamp = now.UTC()
	if commitRef != "" {
		out.CommitRef = commitRef
	}
	out.recomputeTotals()
	return out, res, nil
}
