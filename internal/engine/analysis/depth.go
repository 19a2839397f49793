package analysis

import (
	"archratchet/internal/engine/architecture"
	"archratchet/internal/engine/graph"
	"math"
)

// DepthThresholds caps package depth per unit class. Zero disables a limit.
type DepthThresholds struct {
	MaxDeployable int
	MaxLibrary    int
}

func (t DepthThresholds) limitFor(class architecture.UnitClass) int {
	if class == architecture.UnitDeployable {
		return t.MaxDeployable
	}
	return t.MaxLibrary
}

type PackageDepth struct {
	Package  string                 `json:"package"`
	Depth    int                    `json:"depth"`
	Class    architecture.UnitClass `json:"unitClass"`
	Limit    int                    `json:"limit,omitempty"`
	Exceeded bool                   `json:"exceeded,omitempty"`
}

type DepthReport struct {
	Packages   []PackageDepth `json:"packages"`
	MaxDepth   int            `json:"maxDepth"`
	Violations []PackageDepth `json:"violations"`
	byID       map[string]int
}

func (r *DepthReport) Get(pkg string) (PackageDepth, bool) {
	i, ok := r.byID[pkg]
	if !ok {
		return PackageDepth{}, false
	}
	return r.Packages[i], true
}

// Classifier assigns a unit class to a package id.
type Classifier interface {
	Classify(pkgID string) architecture.UnitClass
}

// Depth computes the longest package-level dependency chain below every
// package. A nil classifier classifies everything as a library.
func Depth(ps *graph.PackageSet, classifier Classifier, thresholds DepthThresholds) *DepthReport {
	d := newDepthWalker(ps)
	pkgs := ps.Packages()
	report := &DepthReport{
		Packages:   make([]PackageDepth, 0, len(pkgs)),
		Violations: make([]PackageDepth, 0),
		byID:       make(map[string]int, len(pkgs)),
	}
	for _, p := range pkgs {
		class := architecture.UnitLibrary
		if classifier != nil {
			class = classifier.Classify(p.ID)
		}
		row := PackageDepth{
			Package: p.ID,
			Depth:   d.MaxDepth(p.ID),
			Class:   class,
			Limit:   thresholds.limitFor(class),
		}
		row.Exceeded = row.Limit > 0 && row.Depth > row.Limit
		if row.Depth > report.MaxDepth {
			report.MaxDepth = row.Depth
		}
		if row.Exceeded {
			report.Violations = append(report.Violations, row)
		}
		report.byID[p.ID] = len(report.Packages)
		report.Packages = append(report.Packages, row)
	}
	return report
}

// depthWalker is single-use state for one run; it is not safe for concurrent use.
type depthWalker struct {
	deps  map[string][]string
	memo  map[string]int
	onPos map[string]int
	stack int
}

func newDepthWalker(ps *graph.PackageSet) *depthWalker {
	deps := make(map[string][]string, ps.Len())
	for _, p := range ps.Packages() {
		deps[p.ID] = p.DependsOn
	}
	return &depthWalker{
		deps:  deps,
		memo:  make(map[string]int, len(deps)),
		onPos: make(map[string]int),
	}
}

// MaxDepth is 0 for a leaf and 1 + the deepest dependency otherwise. A
// dependency already on the current path is counted as a leaf.
func (d *depthWalker) MaxDepth(pkg string) int {
	depth, _ := d.visit(pkg)
	return depth
}

// visit returns the depth and the lowest stack position above pkg that was
// truncated somewhere below it, or math.MaxInt when none was. Only a subtree
// with no truncation at all is memoized: a package closing a cycle onto itself
// has a value that depends on which member of the cycle was entered first.
func (d *depthWalker) visit(pkg string) (int, int) {
	if depth, ok := d.memo[pkg]; ok {
		return depth, math.MaxInt
	}

	pos := d.stack
	d.onPos[pkg] = pos
	d.stack++
	defer func() {
		delete(d.onPos, pkg)
		d.stack--
	}()

	best := 0
	low := math.MaxInt
	for _, next := range d.deps[pkg] {
		if next == pkg {
			continue
		}
		if at, visiting := d.onPos[next]; visiting {
			if best < 1 {
				best = 1
			}
			if at < low {
				low = at
			}
			continue
		}
		depth, nextLow := d.visit(next)
		if depth+1 > best {
			best = depth + 1
		}
		if nextLow < low {
			low = nextLow
		}
	}

	switch {
	case low == math.MaxInt:
		d.memo[pkg] = best
		return best, math.MaxInt
	case low >= pos:
		// Every truncation closed onto pkg, so callers above it are unaffected.
		return best, math.MaxInt
	default:
		return best, low
	}
}
