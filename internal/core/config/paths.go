package config

import (
	"archratchet/internal/shared/util"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolvedPaths holds absolute, cleaned input and state locations.
type ResolvedPaths struct {
	ProjectRoot string
	Graph       string
	Baseline    string
	Churn       string
	Complexity  string
	History     string
	MetricsFile string
	Tables      map[string]string
}

// ResolvePaths anchors relative paths at the project root, which itself is
// relative to cwd.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, fmt.Errorf("cwd must not be empty")
	}

	root := ResolveRelative(cwd, cfg.Paths.ProjectRoot)
	resolved := ResolvedPaths{
		ProjectRoot: root,
		Graph:       ResolveRelative(root, cfg.Paths.Graph),
		Baseline:    ResolveRelative(root, cfg.Paths.Baseline),
		History:     ResolveRelative(root, cfg.History.Path),
		Tables:      make(map[string]string, len(cfg.Ratchet.Tables)),
	}
	if cfg.Paths.Churn != "" {
		resolved.Churn = ResolveRelative(root, cfg.Paths.Churn)
	}
	if cfg.Paths.Complexity != "" {
		resolved.Complexity = ResolveRelative(root, cfg.Paths.Complexity)
	}
	if cfg.Observability.MetricsFile != "" {
		resolved.MetricsFile = ResolveRelative(root, cfg.Observability.MetricsFile)
	}
	for _, t := range cfg.Ratchet.Tables {
		resolved.Tables[t.Name] = ResolveRelative(root, t.Path)
	}
	return resolved, nil
}

// Inputs lists the files whose change should trigger a rerun in watch mode.
func (p ResolvedPaths) Inputs() []string {
	out := []string{p.Graph}
	if p.Churn != "" {
		out = append(out, p.Churn)
	}
	if p.Complexity != "" {
		out = append(out, p.Complexity)
	}
	for _, name := range util.SortedStringKeys(p.Tables) {
		out = append(out, p.Tables[name])
	}
	return out
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

// FindConfig walks up from start looking for archratchet.toml and returns
// the default name in start when none is found.
func FindConfig(start string) string {
	abs, err := filepath.Abs(start)
	if err != nil {
		return filepath.Join(start, DefaultFile)
	}
	dir := abs
	for {
		candidate := filepath.Join(dir, DefaultFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return filepath.Join(abs, DefaultFile)
}
