package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func waitFor(t *testing.T, ch <-chan []string, want string) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-ch:
			for _, p := range paths {
				if p == want {
					return
				}
			}
		case <-timeout:
			t.Fatalf("timed out waiting for change to %s", want)
		}
	}
}

func TestWatcher_ReportsTargetChanges(t *testing.T) {
	tmpDir := t.TempDir()
	graphPath := filepath.Join(tmpDir, "graph.json")
	if err := os.WriteFile(graphPath, []byte(`{"modules":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 10)
	w, err := NewWatcher(50*time.Millisecond, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{graphPath}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(graphPath, []byte(`{"modules":{"a.ts":{}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, graphPath)

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changed:
		t.Fatalf("unexpected change report %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_SkipsUnchangedContent(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "churn.csv")
	content := []byte("path,count\nsrc/a.ts,3\n")
	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan []string, 10)
	w, err := NewWatcher(50*time.Millisecond, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{target}); err != nil {
		t.Fatal(err)
	}

	// Rewriting identical bytes must not trigger.
	if err := os.WriteFile(target, content, 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case paths := <-changed:
		t.Fatalf("identical rewrite reported as change: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}

	if err := os.WriteFile(target, []byte("path,count\nsrc/a.ts,4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, target)
}

func TestWatcher_MissingFileCreatedLater(t *testing.T) {
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "complexity.json")

	changed := make(chan []string, 10)
	w, err := NewWatcher(50*time.Millisecond, func(paths []string) {
		changed <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch([]string{target}); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(target, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, changed, target)
}
