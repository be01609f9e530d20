package fingerprint

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashIsDeterministic(t *testing.T) {
	fp := Fingerprint{BaseName: "movie.mkv", Size: 123456, ModTime: 1700000000.5}
	a := fp.Hash()
	b := fp.Hash()
	if a != b {
		t.Fatalf("Hash() is not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected a 64-char hex sha256 digest, got %d chars", len(a))
	}
}

func TestHashDiffersOnAnyComponent(t *testing.T) {
	base := Fingerprint{BaseName: "movie.mkv", Size: 123456, ModTime: 1700000000.5}
	variants := []Fingerprint{
		{BaseName: "other.mkv", Size: base.Size, ModTime: base.ModTime},
		{BaseName: base.BaseName, Size: 999, ModTime: base.ModTime},
		{BaseName: base.BaseName, Size: base.Size, ModTime: 1700000001.0},
	}
	baseHash := base.Hash()
	for _, v := range variants {
		if v.Hash() == baseHash {
			t.Errorf("expected different hash for %+v", v)
		}
	}
}

func TestHashIgnoresDirectory(t *testing.T) {
	// Same basename/size/mtime seen through two different paths must
	// fingerprint identically (the whole point: host vs container mounts).
	mtime := time.Unix(1700000000, 0)
	var hashes []string
	for _, dir := range []string{t.TempDir(), t.TempDir()} {
		path := filepath.Join(dir, "ep01.mkv")
		if err := os.WriteFile(path, []byte("same bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
		fp, err := Of(path)
		if err != nil {
			t.Fatal(err)
		}
		hashes = append(hashes, fp.Hash())
	}
	if hashes[0] != hashes[1] {
		t.Error("identical basename/size/mtime should fingerprint identically regardless of source path")
	}
}

func TestOf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	fp, err := Of(path)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if fp.BaseName != "sample.mp4" {
		t.Errorf("BaseName = %q", fp.BaseName)
	}
	if fp.Size != 4 {
		t.Errorf("Size = %d, want 4", fp.Size)
	}

	// Touch the file forward and confirm the fingerprint changes.
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	fp2, err := Of(path)
	if err != nil {
		t.Fatalf("Of (after touch): %v", err)
	}
	if fp.Hash() == fp2.Hash() {
		t.Error("expected fingerprint to change after mtime update")
	}
}

func TestOfMissingFile(t *testing.T) {
	_, err := Of(filepath.Join(t.TempDir(), "does-not-exist.mkv"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !IsFileMissing(err) {
		t.Errorf("IsFileMissing(%v) = false, want true", err)
	}
}
