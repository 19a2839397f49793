package priority

import (
	"sort"
)

type ChurnRecord struct {
	FilePath    string `json:"filePath"`
	ChangeCount int    `json:"changeCount"`
}

type ComplexityRecord struct {
	FilePath     string `json:"filePath"`
	ComplexCount int    `json:"complexCount"`
}

type Entry struct {
	FilePath   string  `json:"filePath"`
	Churn      int     `json:"churn"`
	Complexity int     `json:"complexity"`
	Score      float64 `json:"score"`
}

// Score ranks files that both change often and carry flagged complexity.
// Files missing from either table, or with a zero count in either, are not
// scored. Repeated rows for the same path are summed.
func Score(churn []ChurnRecord, complexity []ComplexityRecord) []Entry {
	churnBy := make(map[string]int, len(churn))
	for _, r := range churn {
		churnBy[r.FilePath] += r.ChangeCount
	}
	complexBy := make(map[string]int, len(complexity))
	for _, r := range complexity {
		complexBy[r.FilePath] += r.ComplexCount
	}

	entries := make([]Entry, 0)
	maxChurn, maxComplex := 0, 0
	for path, c := range churnBy {
		x, ok := complexBy[path]
		if !ok || c <= 0 || x <= 0 {
			continue
		}
		entries = append(entries, Entry{FilePath: path, Churn: c, Complexity: x})
		if c > maxChurn {
			maxChurn = c
		}
		if x > maxComplex {
			maxComplex = x
		}
	}

	for i := range entries {
		entries[i].Score = normalize(entries[i].Churn, maxChurn) * normalize(entries[i].Complexity, maxComplex)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].FilePath < entries[j].FilePath
	})
	return entries
}

func normalize(v, max int) float64 {
	if max == 0 {
		return 0
	}
	return float64(v) / float64(max)
}

// Top returns at most n entries; n <= 0 returns all of them.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
