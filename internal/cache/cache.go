// Package cache implements the per-directory metadata cache: a JSON file
// mapping fingerprint hash to the last probe summary and decision, so a
// worker never reprobes or redecides a file it has already seen.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/kesler/mediabox/internal/fingerprint"
)

// FileName is the cache sidecar's name within each media directory.
const FileName = ".mediabox_cache.json"

// ProcessingVersion is bumped whenever the decision or filter-graph policy
// changes in a way that could alter a previously cached "skip" verdict.
// Changing the enhanced-stereo title signature counts as such a change.
const ProcessingVersion = "1.0.0"

// Entry is one cached record, keyed by fingerprint hash within a directory.
type Entry struct {
	FileName string  `json:"file_name"`
	FileSize int64   `json:"file_size"`
	FileMtime float64 `json:"file_mtime"`

	CodecVideo string `json:"codec_video"`
	CodecAudio string `json:"codec_audio"`
	Resolution string `json:"resolution"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Duration   float64 `json:"duration"`
	Bitrate    int64  `json:"bitrate"`

	IsHDR          bool   `json:"is_hdr"`
	HDRType        string `json:"hdr_type,omitempty"`
	ColorTransfer  string `json:"color_transfer,omitempty"`
	ColorPrimaries string `json:"color_primaries,omitempty"`
	ColorSpace     string `json:"color_space,omitempty"`
	BitDepth       int    `json:"bit_depth"`

	AudioChannels     string `json:"audio_channels"`
	AudioLayout       string `json:"audio_layout"`
	HasStereoTrack    bool   `json:"has_stereo_track"`
	HasSurroundTrack  bool   `json:"has_surround_track"`

	Action            string  `json:"action"`
	ProcessingVersion string  `json:"processing_version"`
	ConversionCount   int     `json:"conversion_count"`
	LastConversionDur float64 `json:"last_conversion_duration"`
	LastProcessed     string  `json:"last_processed"`
	ProcessingError   *string `json:"processing_error"`
}

// Store is the loaded contents of one directory's cache file.
type Store struct {
	dir     string
	entries map[string]Entry
}

// Load reads the cache file in dir, if present. A missing file is not an
// error: it returns an empty Store. A malformed file is treated as
// equivalent to "no cache" per the concurrency model — another writer may
// be mid-rewrite.
func Load(dir string) (*Store, error) {
	s := &Store{dir: dir, entries: map[string]Entry{}}

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		// Retry once: a concurrent writer may have left a half-written file.
		data, rerr := os.ReadFile(filepath.Join(dir, FileName))
		if rerr != nil {
			return s, nil
		}
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return s, nil
		}
	}
	return s, nil
}

// Lookup returns the cached entry for fp, or ok=false if it's absent or its
// ProcessingVersion no longer matches the running code.
func (s *Store) Lookup(fp fingerprint.Fingerprint) (Entry, bool) {
	e, ok := s.entries[fp.Hash()]
	if !ok {
		return Entry{}, false
	}
	if e.ProcessingVersion != ProcessingVersion {
		return Entry{}, false
	}
	return e, true
}

// Put writes or overwrites the entry for fp and persists the directory
// cache atomically.
func (s *Store) Put(fp fingerprint.Fingerprint, e Entry) error {
	e.ProcessingVersion = ProcessingVersion
	if s.entries == nil {
		s.entries = map[string]Entry{}
	}
	s.entries[fp.Hash()] = e
	return s.flush()
}

// Delete removes the entry keyed by fp, if present, and persists the change.
func (s *Store) Delete(fp fingerprint.Fingerprint) error {
	delete(s.entries, fp.Hash())
	return s.flush()
}

// UpdateAfterConversion records the outcome of a transcode attempt:
// successful in-place conversion re-keys the entry under its new
// fingerprint; a conversion that landed in a different directory removes
// the entry here and inserts it into that directory's store; a converted
// file that no longer exists anywhere (rare: a later step removed it) drops
// the entry outright; failure just annotates the existing entry.
func (s *Store) UpdateAfterConversion(oldFP fingerprint.Fingerprint, newPath string, success bool, convErr error, duration time.Duration) error {
	oldEntry, had := s.entries[oldFP.Hash()]

	now := time.Now().UTC().Format(time.RFC3339)

	if !success {
		if !had {
			return nil
		}
		msg := ""
		if convErr != nil {
			msg = convErr.Error()
		}
		oldEntry.ProcessingError = &msg
		oldEntry.LastProcessed = now
		return s.Put(oldFP, oldEntry)
	}

	if _, err := os.Stat(newPath); err != nil {
		// The converted file is gone; nothing to re-key.
		delete(s.entries, oldFP.Hash())
		return s.flush()
	}

	newFP, err := fingerprint.Of(newPath)
	if err != nil {
		return fmt.Errorf("fingerprint converted output: %w", err)
	}

	if newFP.Hash() == oldFP.Hash() {
		return nil
	}

	delete(s.entries, oldFP.Hash())
	oldEntry.ConversionCount++
	oldEntry.Action = "skip"
	oldEntry.ProcessingError = nil
	oldEntry.LastProcessed = now
	oldEntry.LastConversionDur = duration.Seconds()
	oldEntry.FileName = filepath.Base(newPath)
	oldEntry.FileSize = newFP.Size
	oldEntry.FileMtime = newFP.ModTime

	if newDir := filepath.Dir(newPath); newDir != s.dir {
		if err := s.flush(); err != nil {
			return err
		}
		dest, err := Load(newDir)
		if err != nil {
			return err
		}
		return dest.Put(newFP, oldEntry)
	}
	return s.Put(newFP, oldEntry)
}

// Cleanup removes entries whose recorded file_name no longer exists in dir.
func (s *Store) Cleanup() error {
	changed := false
	for key, e := range s.entries {
		if _, err := os.Stat(filepath.Join(s.dir, e.FileName)); errors.Is(err, os.ErrNotExist) {
			delete(s.entries, key)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.flush()
}

// Migrate removes entries whose fingerprint no longer matches the on-disk
// file (stale after an external rename/edit, e.g. from before this cache
// existed). Call once per directory during startup sweeps.
func Migrate(dirs []string) error {
	for _, dir := range dirs {
		s, err := Load(dir)
		if err != nil {
			continue
		}
		changed := false
		for key, e := range s.entries {
			path := filepath.Join(dir, e.FileName)
			fp, err := fingerprint.Of(path)
			if err != nil || fp.Hash() != key {
				delete(s.entries, key)
				changed = true
			}
		}
		if changed {
			if err := s.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// flush writes the store to disk atomically via a temp file + rename, so a
// reader never observes a partially written cache.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	path := filepath.Join(s.dir, FileName)
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending cache file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write cache data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
