package tables

import (
	coreerrors "archratchet/internal/core/errors"
	"archratchet/internal/engine/priority"
	"archratchet/internal/shared/util"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Row is one per-file count from an external producer (churn, complexity or
// lint counts).
type Row struct {
	Path  string
	Count int
}

type Table []Row

var (
	pathKeys  = []string{"filePath", "path", "file"}
	countKeys = []string{"changeCount", "complexCount", "count", "value"}
)

// LoadFile reads a table as CSV when the extension is .csv or .tsv, and as
// JSON otherwise.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, coreerrors.Wrap(err, coreerrors.CodeNotFound, "table file not found").
				WithContext(coreerrors.CtxPath, path)
		}
		return nil, fmt.Errorf("read table %q: %w", path, err)
	}

	var t Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		t, err = DecodeCSV(bytes.NewReader(data), ',')
	case ".tsv":
		t, err = DecodeCSV(bytes.NewReader(data), '\t')
	default:
		t, err = DecodeJSON(data)
	}
	if err != nil {
		return nil, coreerrors.AddContext(err, coreerrors.CtxPath, path)
	}
	return t, nil
}

// DecodeJSON accepts either an array of row objects or a flat {"path": count}
// object.
func DecodeJSON(data []byte) (Table, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Table{}, nil
	}

	if trimmed[0] == '{' {
		var flat map[string]int
		if err := json.Unmarshal(trimmed, &flat); err != nil {
			return nil, malformed(err, "decode table object")
		}
		t := make(Table, 0, len(flat))
		for _, p := range util.SortedStringKeys(flat) {
			t = append(t, Row{Path: p, Count: flat[p]})
		}
		return t, t.validate()
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, malformed(err, "decode table rows")
	}
	t := make(Table, 0, len(rows))
	for i, raw := range rows {
		row, err := decodeRow(raw)
		if err != nil {
			return nil, coreerrors.AddContext(err, "row", i)
		}
		t = append(t, row)
	}
	return t, t.validate()
}

func decodeRow(raw map[string]json.RawMessage) (Row, error) {
	var row Row
	for _, key := range pathKeys {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, &row.Path); err != nil {
				return Row{}, malformed(err, "decode row path")
			}
			break
		}
	}
	found := false
	for _, key := range countKeys {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, &row.Count); err != nil {
				return Row{}, malformed(err, "decode row count")
			}
			found = true
			break
		}
	}
	if !found {
		return Row{}, coreerrors.Malformed("table row has no count field").
			WithRemediation("use one of " + strings.Join(countKeys, ", "))
	}
	return row, nil
}

// DecodeCSV reads "path,count" records. A first record whose count column is
// not a number is treated as a header.
func DecodeCSV(r io.Reader, comma rune) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	t := make(Table, 0)
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(err, "decode csv table")
		}
		line++
		if len(rec) < 2 {
			return nil, coreerrors.Malformed("csv record needs path and count columns").
				WithContext("line", line)
		}
		count, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, coreerrors.Wrap(err, coreerrors.CodeMalformedInput, "invalid count").
				WithContext("line", line)
		}
		t = append(t, Row{Path: rec[0], Count: count})
	}
	return t, t.validate()
}

func (t Table) validate() error {
	for _, row := range t {
		if strings.TrimSpace(row.Path) == "" {
			return coreerrors.Malformed("table row with empty path")
		}
		if row.Count < 0 {
			return coreerrors.Malformed("negative count").
				WithContext(coreerrors.CtxPath, row.Path).
				WithRemediation("counts must be zero or positive")
		}
	}
	return nil
}

// Sum folds repeated paths together and drops zero counts.
func (t Table) Sum() map[string]int {
	out := make(map[string]int, len(t))
	for _, row := range t {
		if row.Count > 0 {
			out[row.Path] += row.Count
		}
	}
	return out
}

func (t Table) Churn() []priority.ChurnRecord {
	out := make([]priority.ChurnRecord, 0, len(t))
	for _, row := range t {
		out = append(out, priority.ChurnRecord{FilePath: row.Path, ChangeCount: row.Count})
	}
	return out
}

func (t Table) Complexity() []priority.ComplexityRecord {
	out := make([]priority.ComplexityRecord, 0, len(t))
	for _, row := range t {
		out = append(out, priority.ComplexityRecord{FilePath: row.Path, ComplexCount: row.Count})
	}
	return out
}

func malformed(err error, msg string) *coreerrors.DomainError {
	return coreerrors.Wrap(err, coreerrors.CodeMalformedInput, msg)
}
