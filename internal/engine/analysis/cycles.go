package analysis

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/engine/graph"
	"fmt"
	"sort"
	"strings"
)

// CycleMode chooses where circularity comes from. There is no default: the
// caller must decide whether producer flags are trusted.
type CycleMode string

const (
	CycleModeTrusted  CycleMode = "trusted"
	CycleModeComputed CycleMode = "computed"
)

func ParseCycleMode(s string) (CycleMode, error) {
	switch CycleMode(strings.ToLower(strings.TrimSpace(s))) {
	case CycleModeTrusted:
		return CycleModeTrusted, nil
	case CycleModeComputed:
		return CycleModeComputed, nil
	}
	return "", coreerrors.New(coreerrors.CodeValidationError, fmt.Sprintf("unknown cycle mode %q", s)).
		WithRemediation("set analysis.cycle_mode to \"trusted\" or \"computed\"")
}

type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type CycleReport struct {
	Mode  CycleMode `json:"mode"`
	Pairs []Pair    `json:"pairs"`
	// Components holds the sorted members of each multi-module SCC. It is only
	// populated in computed mode.
	Components [][]string `json:"components,omitempty"`
	CycleCount int        `json:"cycleCount"`
}

// Exceeds reports whether the cycle count is over the allowed maximum.
func (r *CycleReport) Exceeds(allowed int) bool {
	return r.CycleCount > allowed
}

// CountByModule returns the number of distinct circular pairs originating in
// each module.
func (r *CycleReport) CountByModule() map[string]int {
	out := make(map[string]int)
	for _, p := range r.Pairs {
		out[p.From]++
	}
	return out
}

func DetectCycles(g *graph.Graph, mode CycleMode) (*CycleReport, error) {
	switch mode {
	case CycleModeTrusted:
		return trustedCycles(g), nil
	case CycleModeComputed:
		return computedCycles(g), nil
	case "":
		return nil, coreerrors.New(coreerrors.CodeValidationError, "cycle mode not selected").
			WithRemediation("choose \"trusted\" or \"computed\" explicitly")
	}
	return nil, coreerrors.New(coreerrors.CodeValidationError, fmt.Sprintf("unknown cycle mode %q", mode))
}

func trustedCycles(g *graph.Graph) *CycleReport {
	seen := make(map[Pair]bool)
	pairs := make([]Pair, 0)
	for i := 0; i < g.Len(); i++ {
		m := g.Module(i)
		for _, e := range m.Dependencies {
			if !e.Circular {
				continue
			}
			p := Pair{From: m.ID, To: e.Target}
			if seen[p] {
				continue
			}
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	sortPairs(pairs)
	return &CycleReport{Mode: CycleModeTrusted, Pairs: pairs, CycleCount: len(pairs)}
}

func computedCycles(g *graph.Graph) *CycleReport {
	componentOf, components := stronglyConnectedComponents(g)

	report := &CycleReport{Mode: CycleModeComputed, Pairs: make([]Pair, 0)}
	for _, comp := range components {
		if len(comp) < 2 {
			continue
		}
		members := make([]string, 0, len(comp))
		for _, idx := range comp {
			members = append(members, g.ID(idx))
		}
		sort.Strings(members)
		report.Components = append(report.Components, members)

		for _, from := range comp {
			for _, to := range g.Successors(from) {
				if componentOf[to] == componentOf[from] {
					report.Pairs = append(report.Pairs, Pair{From: g.ID(from), To: g.ID(to)})
				}
			}
		}
	}
	sort.Slice(report.Components, func(i, j int) bool {
		return report.Components[i][0] < report.Components[j][0]
	})
	sortPairs(report.Pairs)
	report.CycleCount = len(report.Components)
	return report
}

// stronglyConnectedComponents is Tarjan's algorithm over arena indices.
func stronglyConnectedComponents(g *graph.Graph) ([]int, [][]int) {
	n := g.Len()
	index := 0
	stack := make([]int, 0, n)
	onStack := make([]bool, n)
	indexOf := make([]int, n)
	lowLink := make([]int, n)
	componentOf := make([]int, n)
	components := make([][]int, 0)
	for i := range indexOf {
		indexOf[i] = -1
	}

	var strongConnect func(int)
	strongConnect = func(v int) {
		indexOf[v] = index
		lowLink[v] = index
		index++

		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Successors(v) {
			if indexOf[w] < 0 {
				strongConnect(w)
				if lowLink[w] < lowLink[v] {
					lowLink[v] = lowLink[w]
				}
			} else if onStack[w] && indexOf[w] < lowLink[v] {
				lowLink[v] = indexOf[w]
			}
		}

		if lowLink[v] != indexOf[v] {
			return
		}

		component := make([]int, 0)
		for {
			last := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[last] = false
			component = append(component, last)
			if last == v {
				break
			}
		}
		sort.Ints(component)
		compID := len(components)
		components = append(components, component)
		for _, m := range component {
			componentOf[m] = compID
		}
	}

	for v := 0; v < n; v++ {
		if indexOf[v] < 0 {
			strongConnect(v)
		}
	}
	return componentOf, components
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].From != pairs[j].From {
			return pairs[i].From < pairs[j].From
		}
		return pairs[i].To < pairs[j].To
	})
}
