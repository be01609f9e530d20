// Package fingerprint computes the content-identity key used to key cache
// entries and detect when a file has changed since it was last probed.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Fingerprint identifies a file by name, size, and modification time — not
// by path, so the same file seen through different mount points (a worker
// host vs. a container bind mount) fingerprints identically. A rename
// invalidates the fingerprint by design.
type Fingerprint struct {
	BaseName string
	Size     int64
	ModTime  float64 // Unix seconds with fractional component, as os.FileInfo reports it
}

// Hash returns the hex-encoded sha256 of the fingerprint's canonical string
// form, used as the cache map key.
func (f Fingerprint) Hash() string {
	sum := sha256.Sum256([]byte(f.canonical()))
	return hex.EncodeToString(sum[:])
}

func (f Fingerprint) canonical() string {
	return fmt.Sprintf("%s|%d|%s", f.BaseName, f.Size, formatModTime(f.ModTime))
}

func formatModTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// Of computes the fingerprint of the file at path. The returned error wraps
// the underlying stat failure; use [IsFileMissing] to check for the
// FileMissing case instead of matching the message.
func Of(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("fingerprint %s: %w", path, err)
	}
	return Fingerprint{
		BaseName: filepath.Base(path),
		Size:     info.Size(),
		ModTime:  float64(info.ModTime().UnixNano()) / 1e9,
	}, nil
}

// IsFileMissing reports whether err (as returned by [Of]) was caused by the
// file not existing.
func IsFileMissing(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
