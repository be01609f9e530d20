package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kesler/mediabox/internal/config"
)

// videoExtensions are the containers the video pipeline will inspect.
var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".ts": true, ".m2ts": true,
	".mpg": true, ".mpeg": true, ".vob": true, ".ogv": true,
}

// audioExtensions are the containers the audio pipeline will inspect.
var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".m4a": true, ".ogg": true,
	".aac": true, ".wma": true,
}

// staleTempAge is how old an interrupted run's temp output must be before
// the orchestrator removes it on startup.
const staleTempAge = time.Hour

// Discover resolves the input argument to a sorted list of files to
// process. A single file is returned as a one-element slice (still subject
// to the media-type filter); a directory is walked recursively. Already
// in-progress `<stem>.tmp.<ext>` outputs are always skipped.
func Discover(inputPath string, mediaType config.MediaFilter) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if isTempOutput(inputPath) || !matchesType(inputPath, mediaType) {
			return nil, nil
		}
		return []string{inputPath}, nil
	}

	var files []string
	err = filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if isTempOutput(path) {
			return nil
		}
		if matchesType(path, mediaType) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func matchesType(path string, mediaType config.MediaFilter) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch mediaType {
	case config.MediaVideo:
		return videoExtensions[ext]
	case config.MediaAudio:
		return audioExtensions[ext]
	default:
		return videoExtensions[ext] || audioExtensions[ext]
	}
}

func isTempOutput(path string) bool {
	base := strings.ToLower(filepath.Base(path))
	return strings.HasSuffix(base, ".tmp.mp4") || strings.HasSuffix(base, ".tmp.mp3")
}

// SweepStaleTemp removes `*.tmp.mp4`/`*.tmp.mp3` files older than
// [staleTempAge] under root, left behind by a previous run that was killed
// mid-encode. Errors walking or removing individual files are swallowed;
// this is best-effort cleanup, not a correctness requirement.
func SweepStaleTemp(root string) {
	cutoff := time.Now().Add(-staleTempAge)
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !isTempOutput(path) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		os.Remove(path)
		return nil
	})
}
