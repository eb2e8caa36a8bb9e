package recording

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSweepDeletesOnlyExpiredFiles(t *testing.T) {
	root := t.TempDir()
	kindDir := filepath.Join(root, "screen")
	if err := os.MkdirAll(kindDir, 0o755); err != nil {
		t.Fatal(err)
	}

	window := 15 * 24 * time.Hour

	expired := filepath.Join(kindDir, "old.webm")
	fresh := filepath.Join(kindDir, "new.webm")
	for _, path := range []string{expired, fresh} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// One second past the window vs one second inside it.
	past := time.Now().Add(-window - time.Second)
	recent := time.Now().Add(-window + time.Second)
	if err := os.Chtimes(expired, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(fresh, recent, recent); err != nil {
		t.Fatal(err)
	}

	s := NewSweeper(root, window, time.Hour, nil)
	if removed := s.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d files, want 1", removed)
	}

	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Fatal("expired file survived the sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatal("fresh file was deleted")
	}
}

func TestSweepKeepsGoingPastMissingFiles(t *testing.T) {
	root := t.TempDir()
	window := time.Hour

	a := filepath.Join(root, "a.webm")
	b := filepath.Join(root, "b.webm")
	for _, path := range []string{a, b} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		past := time.Now().Add(-2 * window)
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatal(err)
		}
	}

	s := NewSweeper(root, window, time.Hour, nil)
	if removed := s.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d files, want 2", removed)
	}

	// Sweeping an already-clean tree is a no-op, not an error.
	if removed := s.Sweep(); removed != 0 {
		t.Fatalf("second sweep removed %d files, want 0", removed)
	}
}
