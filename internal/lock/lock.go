// Package lock implements the single-instance cycle lock.
//
// The lock is a file whose byte length acts as a claim counter. A claimant
// records the size it observed, takes an exclusive flock, and wins only if
// the size is unchanged once the flock is held; it then appends one byte.
// A lock file whose mtime is older than the staleness window is ignored,
// which lets a cycle recover after a crashed holder never released.
package lock

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// File is an advisory lock backed by a single file path.
type File struct {
	path   string
	window time.Duration
	logger *slog.Logger
}

// New returns a lock on path. Locks younger than window are honoured.
func New(path string, window time.Duration, logger *slog.Logger) *File {
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, window: window, logger: logger}
}

// Path returns the lock file path.
func (f *File) Path() string { return f.path }

// TryAcquire attempts to claim the lock at now. It reports false with a
// nil error when another claimant holds a fresh lock or won the race.
// Errors are reserved for I/O failures.
func (f *File) TryAcquire(now time.Time) (bool, error) {
	var size int64
	info, err := os.Stat(f.path)
	switch {
	case err == nil:
		if info.ModTime().After(now.Add(-f.window)) {
			f.logger.Debug("lock: held", "path", f.path, "mtime", info.ModTime())
			return false, nil
		}
		size = info.Size()
		f.logger.Info("lock: overriding stale lock", "path", f.path, "mtime", info.ModTime())
	case errors.Is(err, fs.ErrNotExist):
	default:
		return false, fmt.Errorf("lock: stat %s: %w", f.path, err)
	}

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("lock: open %s: %w", f.path, err)
	}
	defer fh.Close()

	if err := flock(fh); err != nil {
		return false, fmt.Errorf("lock: flock %s: %w", f.path, err)
	}
	defer funlock(fh)

	offset, err := fh.Seek(0, io.SeekEnd)
	if err != nil {
		return false, fmt.Errorf("lock: seek %s: %w", f.path, err)
	}
	if offset != size {
		f.logger.Debug("lock: lost race", "path", f.path, "want", size, "got", offset)
		return false, nil
	}
	if _, err := fh.Write([]byte{'.'}); err != nil {
		return false, fmt.Errorf("lock: write %s: %w", f.path, err)
	}
	return true, nil
}

// Release removes the lock file. Errors are ignored.
func (f *File) Release() {
	_ = os.Remove(f.path)
}
