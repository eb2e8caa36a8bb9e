package recording

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), "/recordings")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestFileNameSanitizesLabel(t *testing.T) {
	store := newTestStore(t)

	pattern := regexp.MustCompile(`^recording-[a-z0-9-_]+-\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}-\d{3}Z\.webm$`)

	cases := map[string]string{
		"Alice":          "recording-alice-",
		"../../etc":      "recording-etc-",
		"Bob Smith!":     "recording-bobsmith-",
		"":               "recording-user-",
		"!!!":            "recording-user-",
		"stream_42-live": "recording-stream_42-live-",
	}

	for label, prefix := range cases {
		name := store.FileName(label, "clip.webm")
		if !pattern.MatchString(name) {
			t.Errorf("label %q: name %q does not match expected pattern", label, name)
		}
		if len(name) < len(prefix) || name[:len(prefix)] != prefix {
			t.Errorf("label %q: name %q does not start with %q", label, name, prefix)
		}
	}
}

func TestFileNameExtension(t *testing.T) {
	store := newTestStore(t)

	if name := store.FileName("a", "clip.mkv"); filepath.Ext(name) != ".mkv" {
		t.Errorf("extension not preserved: %q", name)
	}
	if name := store.FileName("a", "noext"); filepath.Ext(name) != ".webm" {
		t.Errorf("missing extension should default to .webm: %q", name)
	}
	if name := store.FileName("a", "x.reallylongextension"); len(filepath.Ext(name)) > 10 {
		t.Errorf("extension not bounded: %q", name)
	}
}

func TestKindDirValidation(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.KindDir("screen"); err != nil {
		t.Fatalf("valid kind rejected: %v", err)
	}
	for _, kind := range []string{"", "Screen", "../evil", "a/b", "waytoolongkindnamethatexceedsthelimit"} {
		if _, err := store.KindDir(kind); err == nil {
			t.Errorf("kind %q should be rejected", kind)
		}
	}
}

func TestResolveRedirectsToConverted(t *testing.T) {
	store := newTestStore(t)
	dir, err := store.KindDir("screen")
	if err != nil {
		t.Fatal(err)
	}

	// Only the converted file exists, as after a completed conversion.
	if err := os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, redirectTo, err := store.Resolve("screen", "clip.webm")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if redirectTo != "clip.mp4" {
		t.Fatalf("expected redirect to clip.mp4, got %q", redirectTo)
	}

	// Requesting the converted name directly never redirects.
	path, redirectTo, err := store.Resolve("screen", "clip.mp4")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if redirectTo != "" {
		t.Fatalf("unexpected redirect %q", redirectTo)
	}
	if path != filepath.Join(dir, "clip.mp4") {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.Resolve("screen", "../secret"); err == nil {
		t.Fatal("path traversal not rejected")
	}
	if _, _, err := store.Resolve("screen", ""); err == nil {
		t.Fatal("empty name not rejected")
	}
}
