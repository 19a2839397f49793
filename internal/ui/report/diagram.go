package report

import (
	"archratchet/internal/core/app"
	"archratchet/internal/engine/analysis"
	"fmt"
	"strings"
	"unicode"
)

// Diagram styles accepted by RenderDiagram.
const (
	StyleDOT     = "dot"
	StyleMermaid = "mermaid"
)

func ValidStyle(s string) bool {
	return s == StyleDOT || s == StyleMermaid
}

// diagramModel is the package-level view shared by both renderers.
type diagramModel struct {
	packages []diagramNode
	edges    []diagramEdge
}

type diagramNode struct {
	id      string
	label   string
	inCycle bool
	status  analysis.Status
}

type diagramEdge struct {
	from, to string
	cycle    bool
}

// RenderDiagram draws packages and their dependencies. Package edges carrying
// a circular module pair, and the packages on either end, are highlighted.
func RenderDiagram(res *app.Analysis, style string) (string, error) {
	model := buildDiagram(res)
	switch style {
	case StyleDOT:
		return renderDOT(model), nil
	case StyleMermaid:
		return renderMermaid(model), nil
	default:
		return "", fmt.Errorf("unknown diagram style %q", style)
	}
}

func buildDiagram(res *app.Analysis) diagramModel {
	cycleEdges := make(map[[2]string]bool)
	cyclePkgs := make(map[string]bool)
	for _, p := range res.Cycles.Pairs {
		from, okFrom := res.Packages.PackageOf(p.From)
		to, okTo := res.Packages.PackageOf(p.To)
		if !okFrom || !okTo {
			continue
		}
		cyclePkgs[from], cyclePkgs[to] = true, true
		if from != to {
			cycleEdges[[2]string{from, to}] = true
		}
	}

	status := make(map[string]app.ReportRow, len(res.Report))
	for _, row := range res.Report {
		status[row.Package] = row
	}

	var model diagramModel
	for _, pkg := range res.Packages.Packages() {
		row := status[pkg.ID]
		model.packages = append(model.packages, diagramNode{
			id:      pkg.ID,
			label:   fmt.Sprintf("%s\\n(%d modules, I=%.2f)", pkg.ID, len(pkg.Modules), row.Instability),
			inCycle: cyclePkgs[pkg.ID],
			status:  row.Status,
		})
		for _, dep := range pkg.DependsOn {
			model.edges = append(model.edges, diagramEdge{
				from:  pkg.ID,
				to:    dep,
				cycle: cycleEdges[[2]string{pkg.ID, dep}],
			})
		}
	}
	return model
}

func renderDOT(m diagramModel) string {
	var buf strings.Builder

	buf.WriteString("digraph packages {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fontname=\"Helvetica\", fontsize=10, fillcolor=\"white\"];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=8, penwidth=1.2];\n")
	buf.WriteString("  ranksep=1.5;\n")
	buf.WriteString("  nodesep=0.6;\n\n")

	for _, n := range m.packages {
		switch {
		case n.inCycle:
			buf.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"mistyrose\", color=\"red\", penwidth=2.0];\n", n.id, n.label))
		case n.status == analysis.StatusWarning:
			buf.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"lightyellow\", color=\"goldenrod\"];\n", n.id, n.label))
		case n.status == analysis.StatusError:
			buf.WriteString(fmt.Sprintf("  %q [label=\"%s\", fillcolor=\"gainsboro\", color=\"grey\", style=\"rounded,filled,dashed\"];\n", n.id, n.label))
		default:
			buf.WriteString(fmt.Sprintf("  %q [label=\"%s\", color=\"darkslategrey\"];\n", n.id, n.label))
		}
	}
	buf.WriteString("\n")

	for _, e := range m.edges {
		if e.cycle {
			buf.WriteString(fmt.Sprintf("  %q -> %q [color=\"red\", penwidth=3.0, label=\"CYCLE\"];\n", e.from, e.to))
			continue
		}
		buf.WriteString(fmt.Sprintf("  %q -> %q [color=\"forestgreen\"];\n", e.from, e.to))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func renderMermaid(m diagramModel) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	names := make([]string, 0, len(m.packages))
	for _, n := range m.packages {
		names = append(names, n.id)
	}
	ids := makeMermaidIDs(names)

	var cycleNodes, warnNodes []string
	for _, n := range m.packages {
		label := strings.ReplaceAll(n.label, "\\n", "<br/>")
		b.WriteString(fmt.Sprintf("  %s[\"%s\"]\n", ids[n.id], escapeMermaidLabel(label)))
		switch {
		case n.inCycle:
			cycleNodes = append(cycleNodes, ids[n.id])
		case n.status == analysis.StatusWarning:
			warnNodes = append(warnNodes, ids[n.id])
		}
	}

	var cycleLinks []int
	for i, e := range m.edges {
		from, okFrom := ids[e.from]
		to, okTo := ids[e.to]
		if !okFrom || !okTo {
			continue
		}
		if e.cycle {
			b.WriteString(fmt.Sprintf("  %s -->|cycle| %s\n", from, to))
			cycleLinks = append(cycleLinks, i)
			continue
		}
		b.WriteString(fmt.Sprintf("  %s --> %s\n", from, to))
	}

	if len(cycleNodes) > 0 {
		b.WriteString("  classDef cycleNode fill:#ffecec,stroke:#cc0000,stroke-width:2px;\n")
		b.WriteString("  class " + strings.Join(cycleNodes, ",") + " cycleNode;\n")
	}
	if len(warnNodes) > 0 {
		b.WriteString("  classDef warnNode fill:#fff8dc,stroke:#b8a24c,stroke-width:1px;\n")
		b.WriteString("  class " + strings.Join(warnNodes, ",") + " warnNode;\n")
	}
	for _, i := range cycleLinks {
		b.WriteString(fmt.Sprintf("  linkStyle %d stroke:#cc0000,stroke-width:3px;\n", i))
	}
	return b.String()
}

func sanitizeMermaidID(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	out := b.String()
	if out == "" {
		return "p"
	}
	if unicode.IsDigit(rune(out[0])) {
		return "p_" + out
	}
	return out
}

// makeMermaidIDs assigns unique node ids, suffixing collisions in input order.
func makeMermaidIDs(names []string) map[string]string {
	ids := make(map[string]string, len(names))
	used := make(map[string]int, len(names))
	for _, name := range names {
		base := sanitizeMermaidID(name)
		idx := used[base]
		used[base] = idx + 1
		if idx == 0 {
			ids[name] = base
			continue
		}
		ids[name] = fmt.Sprintf("%s_%d", base, idx+1)
	}
	return ids
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
