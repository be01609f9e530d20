package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kesler/mediabox/internal/fingerprint"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPutAndLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mp4", "data")
	fp, err := fingerprint.Of(path)
	if err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(fp, Entry{FileName: "movie.mp4", Action: "skip"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	entry, ok := reloaded.Lookup(fp)
	if !ok {
		t.Fatal("expected cache hit after reload")
	}
	if entry.Action != "skip" {
		t.Errorf("Action = %q, want skip", entry.Action)
	}
	if entry.ProcessingVersion != ProcessingVersion {
		t.Errorf("ProcessingVersion = %q, want %q", entry.ProcessingVersion, ProcessingVersion)
	}
}

func TestLookupMissesOnVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mp4", "data")
	fp, _ := fingerprint.Of(path)

	s, _ := Load(dir)
	_ = s.Put(fp, Entry{FileName: "movie.mp4", Action: "skip"})

	reloaded, _ := Load(dir)
	entry, _ := reloaded.Lookup(fp)
	entry.ProcessingVersion = "0.0.1-stale"
	reloaded.entries[fp.Hash()] = entry

	if _, ok := reloaded.Lookup(fp); ok {
		t.Error("expected lookup miss when processing_version differs")
	}
}

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	s, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load on empty dir: %v", err)
	}
	if len(s.entries) != 0 {
		t.Errorf("expected no entries, got %d", len(s.entries))
	}
}

func TestUpdateAfterConversionSameDirectory(t *testing.T) {
	dir := t.TempDir()
	srcPath := writeFile(t, dir, "movie.mkv", "original-bytes")
	srcFP, _ := fingerprint.Of(srcPath)

	s, _ := Load(dir)
	_ = s.Put(srcFP, Entry{FileName: "movie.mkv", Action: "needs_conversion"})

	// Simulate the in-place conversion: new file, different name/content.
	os.Remove(srcPath)
	newPath := writeFile(t, dir, "movie.mp4", "converted-bytes-longer")

	if err := s.UpdateAfterConversion(srcFP, newPath, true, nil, 42*time.Second); err != nil {
		t.Fatalf("UpdateAfterConversion: %v", err)
	}

	if _, ok := s.Lookup(srcFP); ok {
		t.Error("old fingerprint should no longer be present")
	}

	newFP, _ := fingerprint.Of(newPath)
	entry, ok := s.Lookup(newFP)
	if !ok {
		t.Fatal("expected entry under the new fingerprint")
	}
	if entry.Action != "skip" {
		t.Errorf("Action = %q, want skip", entry.Action)
	}
	if entry.ConversionCount != 1 {
		t.Errorf("ConversionCount = %d, want 1", entry.ConversionCount)
	}
	if entry.LastConversionDur != 42 {
		t.Errorf("LastConversionDur = %v, want 42", entry.LastConversionDur)
	}
}

func TestUpdateAfterConversionFailureRecordsError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", "data")
	fp, _ := fingerprint.Of(path)

	s, _ := Load(dir)
	_ = s.Put(fp, Entry{FileName: "movie.mkv", Action: "needs_conversion"})

	convErr := os.ErrInvalid
	if err := s.UpdateAfterConversion(fp, path, false, convErr, 0); err != nil {
		t.Fatalf("UpdateAfterConversion: %v", err)
	}

	entry, ok := s.Lookup(fp)
	if !ok {
		t.Fatal("entry should survive a failed conversion")
	}
	if entry.ProcessingError == nil || *entry.ProcessingError == "" {
		t.Error("expected processing_error to be recorded")
	}
}

func TestMigrateDropsStaleFingerprints(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", "v1")
	fp, _ := fingerprint.Of(path)

	s, _ := Load(dir)
	_ = s.Put(fp, Entry{FileName: "movie.mkv", Action: "skip"})

	// Rewrite the file so size changes and the stored fingerprint goes stale.
	writeFile(t, dir, "movie.mkv", "v2-with-more-bytes")

	if err := Migrate([]string{dir}); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	reloaded, _ := Load(dir)
	if _, ok := reloaded.Lookup(fp); ok {
		t.Error("entry with a stale fingerprint should be dropped by Migrate")
	}
}

func TestMigrateKeepsMatchingEntries(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "movie.mkv", "data")
	fp, _ := fingerprint.Of(path)

	s, _ := Load(dir)
	_ = s.Put(fp, Entry{FileName: "movie.mkv", Action: "skip"})

	if err := Migrate([]string{dir}); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	reloaded, _ := Load(dir)
	if _, ok := reloaded.Lookup(fp); !ok {
		t.Error("an entry whose fingerprint still matches must survive Migrate")
	}
}

func TestCleanupRemovesEntriesForDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "gone.mkv", "data")
	fp, _ := fingerprint.Of(path)

	s, _ := Load(dir)
	_ = s.Put(fp, Entry{FileName: "gone.mkv"})
	os.Remove(path)

	if err := s.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, ok := s.Lookup(fp); ok {
		t.Error("entry for a deleted file should be removed by Cleanup")
	}
}
