package analysis

import (
	"archratchet/internal/engine/graph"
	"sort"
)

type PackageCoupling struct {
	Package     string   `json:"package"`
	FanIn       int      `json:"fanIn"`
	FanOut      int      `json:"fanOut"`
	Instability float64  `json:"instability"`
	DependsOn   []string `json:"dependsOn"`
	DependedBy  []string `json:"dependedBy"`
}

type CouplingReport struct {
	Packages []PackageCoupling `json:"packages"`
	byID     map[string]int
}

func (r *CouplingReport) Get(pkg string) (PackageCoupling, bool) {
	i, ok := r.byID[pkg]
	if !ok {
		return PackageCoupling{}, false
	}
	return r.Packages[i], true
}

// Coupling derives fan-in by inverting each package's DependsOn set, so the
// two directions always describe the same relation.
func Coupling(ps *graph.PackageSet) *CouplingReport {
	pkgs := ps.Packages()
	dependedBy := make(map[string][]string, len(pkgs))
	for _, p := range pkgs {
		for _, q := range p.DependsOn {
			dependedBy[q] = append(dependedBy[q], p.ID)
		}
	}

	report := &CouplingReport{
		Packages: make([]PackageCoupling, 0, len(pkgs)),
		byID:     make(map[string]int, len(pkgs)),
	}
	for _, p := range pkgs {
		in := append([]string(nil), dependedBy[p.ID]...)
		sort.Strings(in)
		out := append([]string(nil), p.DependsOn...)

		report.byID[p.ID] = len(report.Packages)
		report.Packages = append(report.Packages, PackageCoupling{
			Package:     p.ID,
			FanIn:       len(in),
			FanOut:      len(out),
			Instability: Instability(len(in), len(out)),
			DependsOn:   out,
			DependedBy:  in,
		})
	}
	return report
}

// Instability is fanOut/(fanIn+fanOut); an isolated package is stable.
func Instability(fanIn, fanOut int) float64 {
	total := fanIn + fanOut
	if total == 0 {
		return 0
	}
	return float64(fanOut) / float64(total)
}
