package analysis

import (
	"archratchet/internal/engine/graph"
	"fmt"
	"sort"
	"strings"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

type PackageCohesion struct {
	Package        string     `json:"package"`
	ExportCount    int        `json:"exportCount"`
	ClusterCount   int        `json:"clusterCount"`
	Clusters       [][]string `json:"clusters"`
	SplitCandidate bool       `json:"splitCandidate"`
	Status         Status     `json:"status"`
	Detail         string     `json:"detail,omitempty"`
}

type CohesionReport struct {
	Packages []PackageCohesion `json:"packages"`
	byID     map[string]int
}

func (r *CohesionReport) Get(pkg string) (PackageCohesion, bool) {
	i, ok := r.byID[pkg]
	if !ok {
		return PackageCohesion{}, false
	}
	return r.Packages[i], true
}

// SplitCandidates lists packages whose exports fall into more than one cluster.
func (r *CohesionReport) SplitCandidates() []PackageCohesion {
	out := make([]PackageCohesion, 0)
	for _, p := range r.Packages {
		if p.SplitCandidate {
			out = append(out, p)
		}
	}
	return out
}

// Cohesion clusters each package's exports by shared transitive same-package
// dependencies. A package whose exports cannot be resolved gets an error row;
// the rest of the report is unaffected.
func Cohesion(g *graph.Graph, ps *graph.PackageSet) *CohesionReport {
	pkgs := ps.Packages()
	report := &CohesionReport{
		Packages: make([]PackageCohesion, 0, len(pkgs)),
		byID:     make(map[string]int, len(pkgs)),
	}
	for _, p := range pkgs {
		report.byID[p.ID] = len(report.Packages)
		report.Packages = append(report.Packages, clusterPackage(g, ps, p))
	}
	return report
}

func clusterPackage(g *graph.Graph, ps *graph.PackageSet, p *graph.Package) PackageCohesion {
	row := PackageCohesion{
		Package:     p.ID,
		ExportCount: len(p.Exports),
		Clusters:    make([][]string, 0),
		Status:      StatusOK,
	}

	roots := make([]int, 0, len(p.Exports))
	dangling := make([]string, 0)
	for _, e := range p.Exports {
		idx, ok := g.Lookup(e)
		if owner, _ := ps.PackageOf(e); !ok || owner != p.ID {
			dangling = append(dangling, e)
			continue
		}
		roots = append(roots, idx)
	}
	if len(dangling) > 0 {
		row.Status = StatusError
		row.Detail = fmt.Sprintf("dangling export reference: %s", strings.Join(dangling, ", "))
		return row
	}

	// Zero or one export is trivially cohesive.
	if len(roots) < 2 {
		row.ClusterCount = len(roots)
		if len(roots) == 1 {
			row.Clusters = append(row.Clusters, []string{p.Exports[0]})
		}
		return row
	}

	closures := newClosureCache(g, ps, p.ID)
	uf := newUnionFind(len(roots))
	owner := make(map[int]int)
	for i, root := range roots {
		for _, m := range closures.closure(root) {
			if j, seen := owner[m]; seen {
				uf.union(i, j)
				continue
			}
			owner[m] = i
		}
	}

	groups := make(map[int][]string)
	for i, root := range roots {
		r := uf.find(i)
		groups[r] = append(groups[r], g.ID(root))
	}
	for _, members := range groups {
		sort.Strings(members)
		row.Clusters = append(row.Clusters, members)
	}
	sort.Slice(row.Clusters, func(i, j int) bool {
		return row.Clusters[i][0] < row.Clusters[j][0]
	})
	row.ClusterCount = len(row.Clusters)
	if row.ClusterCount > 1 {
		row.SplitCandidate = true
		row.Status = StatusWarning
		row.Detail = fmt.Sprintf("split candidate: %d export clusters", row.ClusterCount)
	}
	return row
}

// closureCache memoizes the same-package reachable set of each start module.
// The start module is part of its own closure.
type closureCache struct {
	g     *graph.Graph
	ps    *graph.PackageSet
	pkg   string
	cache map[int][]int
}

func newClosureCache(g *graph.Graph, ps *graph.PackageSet, pkg string) *closureCache {
	return &closureCache{g: g, ps: ps, pkg: pkg, cache: make(map[int][]int)}
}

func (c *closureCache) closure(start int) []int {
	if members, ok := c.cache[start]; ok {
		return members
	}
	seen := map[int]bool{start: true}
	queue := []int{start}
	members := make([]int, 0)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		members = append(members, cur)
		for _, next := range c.g.Successors(cur) {
			if seen[next] {
				continue
			}
			seen[next] = true
			if owner, ok := c.ps.PackageOf(c.g.ID(next)); !ok || owner != c.pkg {
				continue
			}
			queue = append(queue, next)
		}
	}
	sort.Ints(members)
	c.cache[start] = members
	return members
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
