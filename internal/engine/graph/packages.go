package graph

import (
	"archratchet/internal/shared/util"
	"path"
	"sort"
	"strings"
)

// GroupingRule maps a module id to its package id. Modules for which ok is
// false belong to no package.
type GroupingRule func(moduleID string) (pkg string, ok bool)

// DefaultEntryPoints are the base names recognized as a package's aggregation
// entry when the producer does not declare one.
var DefaultEntryPoints = []string{"index.ts", "index.tsx", "index.js", "index.mjs", "mod.ts"}

// FirstSegments groups a module under its first n directory segments. The
// module must live below that prefix, so "a/b.ts" has no 2-segment package.
func FirstSegments(n int) GroupingRule {
	return func(moduleID string) (string, bool) {
		segs := util.PathSegments(moduleID)
		if n <= 0 || len(segs) <= n {
			return "", false
		}
		return strings.Join(segs[:n], "/"), true
	}
}

type GroupOptions struct {
	EntryPoints []string
}

// Package is the derived aggregate of modules sharing a grouping prefix.
type Package struct {
	ID      string
	Modules []string
	Entry   string
	Exports []string
	// DependsOn is the package-level fan-out: distinct other packages reached
	// by a non-external edge from any member module.
	DependsOn []string
	// Declared is true when Entry/Exports came from the producer.
	Declared bool
}

// PackageSet is immutable once built and safe for concurrent readers.
type PackageSet struct {
	packages  []*Package
	byID      map[string]*Package
	moduleOf  map[string]string
	ungrouped []string
}

func GroupIntoPackages(g *Graph, rule GroupingRule, opts GroupOptions) *PackageSet {
	if rule == nil {
		rule = FirstSegments(2)
	}
	entryNames := opts.EntryPoints
	if len(entryNames) == 0 {
		entryNames = DefaultEntryPoints
	}

	ps := &PackageSet{
		byID:     make(map[string]*Package),
		moduleOf: make(map[string]string, g.Len()),
	}

	for i := 0; i < g.Len(); i++ {
		id := g.ID(i)
		pkgID, ok := rule(id)
		if !ok || pkgID == "" {
			ps.ungrouped = append(ps.ungrouped, id)
			continue
		}
		pkg, exists := ps.byID[pkgID]
		if !exists {
			pkg = &Package{ID: pkgID}
			ps.byID[pkgID] = pkg
			ps.packages = append(ps.packages, pkg)
		}
		pkg.Modules = append(pkg.Modules, id)
		ps.moduleOf[id] = pkgID
	}

	sort.Slice(ps.packages, func(i, j int) bool {
		return ps.packages[i].ID < ps.packages[j].ID
	})

	for _, pkg := range ps.packages {
		sort.Strings(pkg.Modules)
		ps.resolveExports(g, pkg, entryNames)
		pkg.DependsOn = ps.dependsOn(g, pkg)
	}

	return ps
}

func (ps *PackageSet) resolveExports(g *Graph, pkg *Package, entryNames []string) {
	if decl, ok := g.Declared(pkg.ID); ok {
		pkg.Declared = true
		pkg.Entry = decl.Entry
		if len(decl.Exports) > 0 {
			pkg.Exports = dedupeSorted(decl.Exports)
			return
		}
	}

	if pkg.Entry == "" {
		pkg.Entry = findEntry(pkg.Modules, entryNames)
	}
	if pkg.Entry == "" {
		return
	}

	idx, ok := g.Lookup(pkg.Entry)
	if !ok {
		// A declared entry that is not a module surfaces as a dangling export.
		pkg.Exports = []string{pkg.Entry}
		return
	}
	exports := make([]string, 0)
	for _, t := range g.Successors(idx) {
		target := g.ID(t)
		if target != pkg.Entry && ps.moduleOf[target] == pkg.ID {
			exports = append(exports, target)
		}
	}
	pkg.Exports = exports
}

func (ps *PackageSet) dependsOn(g *Graph, pkg *Package) []string {
	set := make(map[string]bool)
	for _, id := range pkg.Modules {
		idx, _ := g.Lookup(id)
		for _, t := range g.Successors(idx) {
			other, ok := ps.moduleOf[g.ID(t)]
			if !ok || other == pkg.ID {
				continue
			}
			set[other] = true
		}
	}
	return util.SortedStringKeys(set)
}

// findEntry picks the shallowest module whose base name matches, trying the
// names in preference order.
func findEntry(modules []string, entryNames []string) string {
	for _, name := range entryNames {
		best := ""
		bestDepth := 0
		for _, id := range modules {
			if path.Base(util.NormalizePatternPath(id)) != name {
				continue
			}
			depth := len(util.PathSegments(id))
			if best == "" || depth < bestDepth {
				best, bestDepth = id, depth
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

func dedupeSorted(in []string) []string {
	set := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v != "" {
			set[v] = true
		}
	}
	return util.SortedStringKeys(set)
}

// Packages returns the packages sorted by id. Callers must treat them as read-only.
func (ps *PackageSet) Packages() []*Package {
	return ps.packages
}

func (ps *PackageSet) Get(id string) (*Package, bool) {
	p, ok := ps.byID[id]
	return p, ok
}

// PackageOf returns the package a module was grouped into.
func (ps *PackageSet) PackageOf(moduleID string) (string, bool) {
	p, ok := ps.moduleOf[moduleID]
	return p, ok
}

// Ungrouped lists modules that matched no grouping rule.
func (ps *PackageSet) Ungrouped() []string {
	return append([]string(nil), ps.ungrouped...)
}

func (ps *PackageSet) Len() int {
	return len(ps.packages)
}
