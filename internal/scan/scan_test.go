package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCollectExpandsDirectories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.mp3"))
	touch(t, filepath.Join(root, "a.FLAC"))
	touch(t, filepath.Join(root, "cover.jpg"))
	touch(t, filepath.Join(root, "disc2", "c.m4a"))
	touch(t, filepath.Join(root, ".hidden", "d.mp3"))
	touch(t, filepath.Join(root, ".e.mp3"))

	got, err := Collect([]string{root}, DefaultOptions())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []string{
		filepath.Join(root, "a.FLAC"),
		filepath.Join(root, "b.mp3"),
		filepath.Join(root, "disc2", "c.m4a"),
	}
	if !reflect.DeepEqual(got.Files, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", got.Files, want)
	}

	flat, err := Collect([]string{root}, Options{})
	if err != nil {
		t.Fatalf("Collect flat: %v", err)
	}
	if len(flat.Files) != 2 {
		t.Fatalf("expected non-recursive scan to skip subdirectories, got %v", flat.Files)
	}
}

func TestCollectKeepsNamedFilesAndDeduplicates(t *testing.T) {
	root := t.TempDir()
	song := filepath.Join(root, "song.mp3")
	notes := filepath.Join(root, "notes.txt")
	missing := filepath.Join(root, "missing.mp3")
	touch(t, song)
	touch(t, notes)

	got, err := Collect([]string{song, notes, missing, root, song, "  "}, DefaultOptions())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	want := []string{missing, notes, song}
	if !reflect.DeepEqual(got.Files, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", got.Files, want)
	}
}

func TestSupported(t *testing.T) {
	for path, want := range map[string]bool{
		"a.mp3": true, "b.M4A": true, "c.ogg": true, "d.wav": false, "e": false,
	} {
		if got := Supported(path); got != want {
			t.Errorf("Supported(%q) = %v, want %v", path, got, want)
		}
	}
}
