package graph

import (
	coreerrors "archratchet/internal/core/errors"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// SchemaVersion is the only raw graph version this loader accepts.
const SchemaVersion = 1

// RawGraph is the document emitted by the upstream graph extractor.
type RawGraph struct {
	Version  int          `json:"version"`
	Modules  []RawModule  `json:"modules"`
	Packages []RawPackage `json:"packages,omitempty"`
}

type RawModule struct {
	Source       string          `json:"source"`
	Dependencies []RawDependency `json:"dependencies"`
	Orphan       bool            `json:"orphan"`
	LineCount    int             `json:"lineCount"`
}

type RawDependency struct {
	Resolved string `json:"resolved"`
	Circular bool   `json:"circular"`
	External bool   `json:"external"`
	// CoreModule marks runtime builtins; they are treated as external.
	CoreModule bool `json:"coreModule,omitempty"`
}

// RawPackage optionally declares an aggregation entry point and exports for a
// package id produced by the grouping rule.
type RawPackage struct {
	Name    string   `json:"name"`
	Entry   string   `json:"entry,omitempty"`
	Exports []string `json:"exports,omitempty"`
}

func Decode(r io.Reader) (RawGraph, error) {
	var raw RawGraph
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return RawGraph{}, coreerrors.Wrap(err, coreerrors.CodeMalformedInput, "decode graph document").
			WithRemediation("regenerate the graph with the extractor")
	}
	return raw, nil
}

func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerrors.Wrap(err, coreerrors.CodeNotFound, "graph file not found").
				WithContext(coreerrors.CtxPath, path)
		}
		return nil, fmt.Errorf("open graph %q: %w", path, err)
	}
	defer f.Close()

	raw, err := Decode(f)
	if err != nil {
		return nil, coreerrors.AddContext(err, coreerrors.CtxPath, path)
	}
	return Load(raw)
}

// Load validates raw and builds the arena. Any inconsistency is fatal: no
// partial graph is returned.
func Load(raw RawGraph) (*Graph, error) {
	version := raw.Version
	if version == 0 {
		version = SchemaVersion
	}
	if version != SchemaVersion {
		return nil, coreerrors.Malformed(fmt.Sprintf("unsupported graph schema version %d", raw.Version)).
			WithRemediation(fmt.Sprintf("emit schema version %d", SchemaVersion))
	}

	ids := make([]string, 0, len(raw.Modules))
	byID := make(map[string]*RawModule, len(raw.Modules))
	for i := range raw.Modules {
		m := &raw.Modules[i]
		if strings.TrimSpace(m.Source) == "" {
			return nil, coreerrors.Malformed("module with empty source").
				WithContext("position", i).
				WithRemediation("every module needs a source identifier")
		}
		if _, dup := byID[m.Source]; dup {
			return nil, coreerrors.Malformed("duplicate module").
				WithContext(coreerrors.CtxModule, m.Source).
				WithRemediation("emit each module once")
		}
		if m.LineCount < 0 {
			return nil, coreerrors.Malformed("negative line count").
				WithContext(coreerrors.CtxModule, m.Source)
		}
		byID[m.Source] = m
		ids = append(ids, m.Source)
	}
	sort.Strings(ids)

	g := &Graph{
		modules:  make([]Module, len(ids)),
		index:    make(map[string]int, len(ids)),
		declared: make(map[string]RawPackage, len(raw.Packages)),
	}
	for i, id := range ids {
		g.index[id] = i
	}

	for i, id := range ids {
		rm := byID[id]
		mod := Module{
			ID:           id,
			Orphan:       rm.Orphan,
			LineCount:    rm.LineCount,
			Dependencies: make([]Edge, 0, len(rm.Dependencies)),
		}
		for _, dep := range rm.Dependencies {
			external := dep.External || dep.CoreModule
			if strings.TrimSpace(dep.Resolved) == "" {
				return nil, coreerrors.Malformed("edge with empty resolved target").
					WithContext(coreerrors.CtxFrom, id).
					WithRemediation("fix-edge: the extractor must resolve every dependency")
			}
			edge := Edge{
				Target:   dep.Resolved,
				Circular: dep.Circular,
				External: external,
				target:   -1,
			}
			if !external {
				idx, ok := g.index[dep.Resolved]
				if !ok {
					return nil, coreerrors.Malformed("edge references unknown module").
						WithContext(coreerrors.CtxFrom, id).
						WithContext(coreerrors.CtxTo, dep.Resolved).
						WithRemediation("fix-edge: list the target module or mark the edge external")
				}
				edge.target = idx
			}
			mod.Dependencies = append(mod.Dependencies, edge)
		}
		g.modules[i] = mod
	}

	for _, p := range raw.Packages {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, coreerrors.Malformed("package declaration with empty name").
				WithRemediation("name every declared package")
		}
		g.declared[name] = RawPackage{
			Name:    name,
			Entry:   strings.TrimSpace(p.Entry),
			Exports: append([]string(nil), p.Exports...),
		}
	}

	g.buildAdjacency()
	return g, nil
}
