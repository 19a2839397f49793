package architecture

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/engine/graph"
	"archratchet/internal/shared/util"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// UnitClass selects which depth threshold applies to a package.
type UnitClass string

const (
	UnitLibrary    UnitClass = "library"
	UnitDeployable UnitClass = "deployable"
)

type compiledPattern struct {
	raw        string
	segments   int
	isWildcard bool
	glob       glob.Glob
}

func compilePatterns(raw []string) ([]compiledPattern, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]compiledPattern, 0, len(raw))
	for _, pattern := range raw {
		norm := util.NormalizePatternPath(pattern)
		if norm == "" {
			continue
		}
		cp := compiledPattern{
			raw:        norm,
			segments:   len(util.PathSegments(norm)),
			isWildcard: strings.ContainsAny(norm, "*?[]{}"),
		}
		if cp.isWildcard {
			g, err := glob.Compile(norm, '/')
			if err != nil {
				return nil, coreerrors.Wrap(err, coreerrors.CodeValidationError, "invalid glob pattern").
					WithContext("pattern", pattern)
			}
			cp.glob = g
		}
		out = append(out, cp)
	}
	return out, nil
}

func (p compiledPattern) matches(name string) bool {
	if p.isWildcard {
		return p.glob != nil && p.glob.Match(name)
	}
	return name == p.raw
}

// GroupingRules builds a grouping rule from package patterns such as
// "packages/*" or "apps/*/src". A pattern with N segments is matched against
// the first N segments of a module id, and the matched prefix becomes the
// package id. Longer patterns win, then declaration order.
func GroupingRules(patterns []string) (graph.GroupingRule, error) {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return nil, err
	}
	if len(compiled) == 0 {
		return nil, nil
	}
	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].segments > compiled[j].segments
	})

	return func(moduleID string) (string, bool) {
		segs := util.PathSegments(moduleID)
		for _, p := range compiled {
			if len(segs) <= p.segments {
				continue
			}
			prefix := strings.Join(segs[:p.segments], "/")
			if p.matches(prefix) {
				return prefix, true
			}
		}
		return "", false
	}, nil
}

// Classifier maps package ids to unit classes. Packages matching a deployable
// pattern are deployable; everything else is a library.
type Classifier struct {
	deployable []compiledPattern
	library    []compiledPattern
}

func NewClassifier(deployable, library []string) (Classifier, error) {
	d, err := compilePatterns(deployable)
	if err != nil {
		return Classifier{}, err
	}
	l, err := compilePatterns(library)
	if err != nil {
		return Classifier{}, err
	}
	return Classifier{deployable: d, library: l}, nil
}

// Classify prefers an explicit library match over a deployable one, so
// "apps/*" can be deployable while "apps/shared" stays a library.
func (c Classifier) Classify(pkgID string) UnitClass {
	name := util.NormalizePatternPath(pkgID)
	if matchAny(c.library, name) {
		return UnitLibrary
	}
	if matchAny(c.deployable, name) {
		return UnitDeployable
	}
	return UnitLibrary
}

func matchAny(patterns []compiledPattern, name string) bool {
	for _, p := range patterns {
		if p.matches(name) || (!p.isWildcard && util.HasPathPrefix(name, p.raw)) {
			return true
		}
	}
	return false
}
