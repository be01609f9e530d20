package naming

import (
	"os"
	"path/filepath"
	"strings"
)

var sidecarExts = map[string]bool{
	".srt": true, ".vtt": true, ".ass": true, ".ssa": true,
	".sub": true, ".idx": true, ".sup": true, ".txt": true, ".nfo": true,
}

// RenameSidecars renames every file in dir that shares oldStem and carries a
// sidecar extension so it instead shares newStem, preserving everything
// after the stem (language tags, "forced", etc). Used after a resolution
// downgrade renames the media file itself.
func RenameSidecars(dir, oldStem, newStem string) error {
	if oldStem == newStem {
		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, oldStem) {
			continue
		}
		rest := name[len(oldStem):]
		if !hasSidecarExt(rest) {
			continue
		}
		oldPath := filepath.Join(dir, name)
		newPath := filepath.Join(dir, newStem+rest)
		if err := os.Rename(oldPath, newPath); err != nil {
			return err
		}
	}
	return nil
}

func hasSidecarExt(rest string) bool {
	ext := filepath.Ext(rest)
	return sidecarExts[strings.ToLower(ext)]
}
