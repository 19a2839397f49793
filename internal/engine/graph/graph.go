// # internal/engine/graph/graph.go
package graph

import (
	"sort"
)

// Module is one node of the dependency graph. Modules are immutable after Load.
type Module struct {
	ID           string
	Dependencies []Edge
	Orphan       bool
	LineCount    int
}

// Edge points from its owning module to Target. External edges leave the
// analyzed tree and carry no arena index.
type Edge struct {
	Target   string
	Circular bool
	External bool

	target int
}

// TargetIndex returns the arena index of the target, or -1 for external edges.
func (e Edge) TargetIndex() int {
	if e.External {
		return -1
	}
	return e.target
}

// Graph stores modules in an arena sorted by id; edges refer to targets by
// index so traversal state is plain slices and sets of ints.
type Graph struct {
	modules  []Module
	index    map[string]int
	adj      [][]int
	declared map[string]RawPackage
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.modules)
}

func (g *Graph) Lookup(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

func (g *Graph) ID(i int) string {
	return g.modules[i].ID
}

// Module returns a copy of the module at index i.
func (g *Graph) Module(i int) Module {
	return cloneModule(g.modules[i])
}

func (g *Graph) GetModule(id string) (Module, bool) {
	i, ok := g.index[id]
	if !ok {
		return Module{}, false
	}
	return cloneModule(g.modules[i]), true
}

func (g *Graph) Modules() []Module {
	out := make([]Module, len(g.modules))
	for i := range g.modules {
		out[i] = cloneModule(g.modules[i])
	}
	return out
}

// IDs returns module ids in arena (sorted) order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.modules))
	for i := range g.modules {
		out[i] = g.modules[i].ID
	}
	return out
}

// Successors returns the deduplicated, sorted arena indices of the internal
// targets of module i. The returned slice must not be modified.
func (g *Graph) Successors(i int) []int {
	return g.adj[i]
}

func (g *Graph) EdgeCount() int {
	count := 0
	for _, targets := range g.adj {
		count += len(targets)
	}
	return count
}

// Declared returns the package declaration supplied by the producer, if any.
func (g *Graph) Declared(name string) (RawPackage, bool) {
	p, ok := g.declared[name]
	return p, ok
}

func (g *Graph) buildAdjacency() {
	g.adj = make([][]int, len(g.modules))
	for i := range g.modules {
		seen := make(map[int]bool, len(g.modules[i].Dependencies))
		targets := make([]int, 0, len(g.modules[i].Dependencies))
		for _, dep := range g.modules[i].Dependencies {
			if dep.External || seen[dep.target] {
				continue
			}
			seen[dep.target] = true
			targets = append(targets, dep.target)
		}
		sort.Ints(targets)
		g.adj[i] = targets
	}
}

func cloneModule(m Module) Module {
	c := m
	c.Dependencies = append([]Edge(nil), m.Dependencies...)
	return c
}
