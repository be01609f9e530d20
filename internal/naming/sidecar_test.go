package naming

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRenameSidecars(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"Movie.2160p.mkv",
		"Movie.2160p.eng.srt",
		"Movie.2160p.forced.eng.sup",
		"Movie.2160p.nfo",
		"Movie.2160p.other-thing.txt",
		"unrelated.srt",
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := RenameSidecars(dir, "Movie.2160p", "Movie.1080p"); err != nil {
		t.Fatalf("RenameSidecars: %v", err)
	}

	want := []string{
		"Movie.1080p.eng.srt",
		"Movie.1080p.forced.eng.sup",
		"Movie.1080p.nfo",
		"Movie.1080p.other-thing.txt",
		"unrelated.srt",
	}
	for _, f := range want {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Errorf("expected %s to exist: %v", f, err)
		}
	}
	// The media file itself isn't a sidecar extension, so it must be
	// untouched by this function (the executor renames it separately).
	if _, err := os.Stat(filepath.Join(dir, "Movie.2160p.mkv")); err != nil {
		t.Errorf("media file should be left alone by RenameSidecars: %v", err)
	}
}

func TestRenameSidecarsNoopWhenStemsEqual(t *testing.T) {
	dir := t.TempDir()
	if err := RenameSidecars(dir, "same", "same"); err != nil {
		t.Fatalf("RenameSidecars: %v", err)
	}
}
