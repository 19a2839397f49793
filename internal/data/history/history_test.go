package history

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStore_OpenInitializesSchemaAndSaveList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	first, err := store.SaveRun(ctx, Run{
		ProjectKey: "project-a",
		Timestamp:  base,
		Operation:  "capture",
		Passed:     true,
		Totals:     map[string]int{"lint": 7},
	})
	if err != nil {
		t.Fatalf("save first run: %v", err)
	}
	if first.RunID == "" {
		t.Fatal("expected generated run id")
	}
	if _, err := store.SaveRun(ctx, Run{
		ProjectKey:      "project-a",
		Timestamp:       base.Add(time.Hour),
		Operation:       "check",
		CommitRef:       "abc",
		RegressionCount: 2,
		CycleCount:      1,
		MaxDepth:        4,
		SplitCount:      3,
		Totals:          map[string]int{"lint": 9},
	}); err != nil {
		t.Fatalf("save second run: %v", err)
	}

	runs, err := store.ListRuns(ctx, "project-a", 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Operation != "capture" || !runs[0].Passed {
		t.Fatalf("expected oldest run first, got %+v", runs[0])
	}
	second := runs[1]
	if second.Passed || second.RegressionCount != 2 || second.SplitCount != 3 || second.MaxDepth != 4 {
		t.Fatalf("unexpected second run %+v", second)
	}
	if second.Totals["lint"] != 9 || !second.Timestamp.Equal(base.Add(time.Hour)) {
		t.Fatalf("expected totals and timestamp to roundtrip, got %+v", second)
	}

	latest, err := store.ListRuns(ctx, "project-a", 1)
	if err != nil {
		t.Fatalf("list latest: %v", err)
	}
	if len(latest) != 1 || latest[0].Operation != "check" {
		t.Fatalf("expected only the latest run, got %+v", latest)
	}
}

func TestStore_SaveRunRequiresOperation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if _, err := store.SaveRun(context.Background(), Run{}); err == nil {
		t.Fatal("expected error for empty operation")
	}
}

func TestStore_ProjectIsolation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.SaveRun(ctx, Run{ProjectKey: "project-a", Operation: "check", CycleCount: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.SaveRun(ctx, Run{ProjectKey: "", Operation: "check", CycleCount: 2}); err != nil {
		t.Fatal(err)
	}

	aRows, err := store.ListRuns(ctx, "project-a", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(aRows) != 1 || aRows[0].CycleCount != 1 {
		t.Fatalf("unexpected project-a rows: %+v", aRows)
	}
	defRows, err := store.ListRuns(ctx, "default", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(defRows) != 1 || defRows[0].CycleCount != 2 {
		t.Fatalf("unexpected default rows: %+v", defRows)
	}
}

func TestStore_OpenRejectsDirectoryPath(t *testing.T) {
	_, err := Open(t.TempDir())
	if err == nil {
		t.Fatal("expected open error for directory path")
	}
	if !strings.Contains(err.Error(), "is a directory") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStore_OpenCorruptDBPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	if err := os.WriteFile(path, []byte("this is not sqlite"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if err == nil {
		t.Fatal("expected sqlite open error")
	}
	lower := strings.ToLower(err.Error())
	if !strings.Contains(lower, "not a database") && !strings.Contains(lower, "schema") {
		t.Fatalf("expected schema/open error, got: %v", err)
	}
}

func TestEnsureSchema_DetectsNewerVersionDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = store.db.Exec(`INSERT OR REPLACE INTO schema_migrations(version) VALUES (?)`, SchemaVersion+1)
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open(driverName, "file:"+path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	err = EnsureSchema(db)
	if err == nil {
		t.Fatal("expected drift error")
	}
	if !strings.Contains(err.Error(), "written by a newer archratchet") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildTrendReport(t *testing.T) {
	base := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)
	runs := []Run{
		{Timestamp: base, Operation: "capture", Passed: true, CycleCount: 2, MaxDepth: 3, Totals: map[string]int{"lint": 10, "circular": 2}},
		{Timestamp: base.Add(time.Hour), Operation: "check", Passed: false, CycleCount: 4, MaxDepth: 3, Totals: map[string]int{"lint": 12, "circular": 2}},
		{Timestamp: base.Add(2 * time.Hour), Operation: "check", Passed: true, CycleCount: 0, MaxDepth: 2, Totals: map[string]int{"lint": 8}},
	}

	report, err := BuildTrendReport("", runs, 2)
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if report.RunCount != 3 || report.ProjectKey != "default" {
		t.Fatalf("unexpected header %+v", report)
	}
	if report.Points[1].DeltaCycles != 2 || report.Points[1].DeltaTotals["lint"] != 2 {
		t.Fatalf("unexpected second point %+v", report.Points[1])
	}
	last := report.Points[2]
	if last.DeltaDepth != -1 || last.DeltaTotals["circular"] != -2 {
		t.Fatalf("expected dropped metric to count as a decrease, got %+v", last)
	}
	if last.AvgCycles != 2 || last.PassRatePct != 50 || last.WindowRuns != 2 {
		t.Fatalf("unexpected moving averages %+v", last)
	}

	if _, err := BuildTrendReport("x", nil, 3); err == nil {
		t.Fatal("expected error for empty history")
	}
}

func TestIsCorruptError(t *testing.T) {
	if !IsCorruptError(errors.New("database disk image is malformed")) {
		t.Fatal("expected malformed sqlite message to be treated as corrupt")
	}
}

func TestResolveGitCommit_NotARepository(t *testing.T) {
	if got := ResolveGitCommit(context.Background(), t.TempDir()); got != "" {
		t.Fatalf("expected empty commit outside a repository, got %q", got)
	}
}
