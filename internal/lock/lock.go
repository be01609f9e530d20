// Package lock implements the per-file advisory sidecar lock used to keep
// two workers from processing the same media file concurrently, safe across
// network filesystems that don't support flock.
package lock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// StaleAfter is how old an abandoned lockfile must be before a new acquirer
// may delete and replace it outright, assuming its holder crashed.
const StaleAfter = 6 * time.Hour

// NormalTimeout is the expected upper bound for one file's probe+encode
// cycle. A lock older than this but younger than StaleAfter is assumed to be
// a genuinely long conversion, not an abandoned lock.
const NormalTimeout = 30 * time.Minute

// record is the sidecar lockfile's on-disk JSON shape. Timestamp is epoch
// seconds (the staleness comparison key); LockedAt is the same instant in
// RFC 3339 for a human reading the sidecar on a stuck library.
type record struct {
	LockID    string  `json:"lock_id"`
	Hostname  string  `json:"hostname"`
	PID       int     `json:"pid"`
	Timestamp float64 `json:"timestamp"`
	LockedAt  string  `json:"locked_at"`
	File      string  `json:"file"`
}

func (r record) age() time.Duration {
	sec, frac := int64(r.Timestamp), r.Timestamp-float64(int64(r.Timestamp))
	return time.Since(time.Unix(sec, int64(frac*1e9)))
}

// Lock represents a held or attempted lock over a single media file path.
type Lock struct {
	targetPath string
	path       string // targetPath + ".lock"
	id         string
	hostname   string
	pid        int
}

// New prepares a Lock for targetPath without touching the filesystem. The
// lock id embeds hostname and pid so a holder's identity survives even when
// the sidecar's other fields are unreadable.
func New(targetPath string) *Lock {
	hostname, _ := os.Hostname()
	pid := os.Getpid()
	return &Lock{
		targetPath: targetPath,
		path:       targetPath + ".lock",
		id:         fmt.Sprintf("%s_%d_%s", hostname, pid, uuid.NewString()),
		hostname:   hostname,
		pid:        pid,
	}
}

// Holder describes who currently holds a lock, for diagnostic logging.
type Holder struct {
	LockID   string
	Hostname string
	PID      int
	LockedAt time.Time
}

// ErrNotAcquired is returned by Acquire when wait=false and another holder
// already owns the lock.
var ErrNotAcquired = errors.New("lock: already held")

// Acquire attempts to take the lock. With wait=false it returns
// [ErrNotAcquired] immediately when another holder owns it; callers wanting
// the holder's identity for logging use [HolderOf]. With wait=true it blocks
// (via fsnotify on the lock's directory, falling back to polling if the
// watch can't be established) until ctx is done or the lock is released.
func (l *Lock) Acquire(ctx context.Context, wait bool) error {
	for {
		ok, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !wait {
			return ErrNotAcquired
		}
		if err := waitForRelease(ctx, l.path); err != nil {
			return err
		}
	}
}

// tryAcquire performs one non-blocking attempt: evict staleness, create
// exclusively, then read back to confirm our own write won the race.
func (l *Lock) tryAcquire() (bool, error) {
	l.evictIfStale()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lockfile: %w", err)
	}

	now := time.Now().UTC()
	rec := record{
		LockID:    l.id,
		Hostname:  l.hostname,
		PID:       l.pid,
		Timestamp: float64(now.UnixNano()) / 1e9,
		LockedAt:  now.Format(time.RFC3339),
		File:      l.targetPath,
	}
	enc := json.NewEncoder(f)
	writeErr := enc.Encode(rec)
	closeErr := f.Close()
	if writeErr != nil {
		return false, fmt.Errorf("write lockfile: %w", writeErr)
	}
	if closeErr != nil {
		return false, fmt.Errorf("close lockfile: %w", closeErr)
	}

	// Read-after-write: on a non-POSIX filesystem two O_EXCL creators can
	// both "succeed"; whichever wrote last wins the read-back.
	got, err := readRecord(l.path)
	if err != nil {
		return false, nil
	}
	return got.LockID == l.id, nil
}

// Release deletes the lockfile, but only if hostname+pid still match ours —
// never blind-delete another process's lock.
func (l *Lock) Release() error {
	rec, err := readRecord(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read lockfile: %w", err)
	}
	if rec.Hostname != l.hostname || rec.PID != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lockfile: %w", err)
	}
	return nil
}

// IsLocked reports whether targetPath currently has a live (non-stale) lock.
func IsLocked(targetPath string) bool {
	rec, err := readRecord(targetPath + ".lock")
	if err != nil {
		return false
	}
	return rec.age() < StaleAfter
}

// HolderOf returns the identity recorded in targetPath's lockfile, if any.
func HolderOf(targetPath string) (Holder, bool) {
	rec, err := readRecord(targetPath + ".lock")
	if err != nil {
		return Holder{}, false
	}
	sec, frac := int64(rec.Timestamp), rec.Timestamp-float64(int64(rec.Timestamp))
	return Holder{
		LockID:   rec.LockID,
		Hostname: rec.Hostname,
		PID:      rec.PID,
		LockedAt: time.Unix(sec, int64(frac*1e9)),
	}, true
}

func (l *Lock) evictIfStale() {
	rec, err := readRecord(l.path)
	if err != nil {
		return
	}
	if rec.age() >= StaleAfter {
		_ = os.Remove(l.path)
	}
}

func readRecord(path string) (record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("parse lockfile %s: %w", path, err)
	}
	return rec, nil
}

// waitForRelease blocks until path no longer exists, ctx is cancelled, or a
// periodic recheck finds the lock older than StaleAfter. fsnotify gives us
// an event-driven wake-up instead of busy-polling; if the watch itself can't
// be established (e.g. directory gone), fall back to polling, which only
// checks whether the file still exists.
func waitForRelease(ctx context.Context, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return pollForRelease(ctx, path)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return pollForRelease(ctx, path)
	}

	recheck := time.NewTicker(10 * time.Second)
	defer recheck.Stop()

	for {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return pollForRelease(ctx, path)
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				return nil
			}
		case <-watcher.Errors:
			return pollForRelease(ctx, path)
		case <-recheck.C:
			// Re-check staleness periodically even without an event: the
			// holder may have crashed without ever touching the file again.
			if rec, err := readRecord(path); err == nil && rec.age() >= StaleAfter {
				return nil
			}
		}
	}
}

func pollForRelease(ctx context.Context, path string) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
