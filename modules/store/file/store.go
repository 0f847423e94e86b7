package file

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"

	"github.com/flemzord/cronguard/internal/store"
)

// Store keeps one file per key under a directory. Each file holds a
// decimal expiry in Unix milliseconds (0 for none), a newline, then the
// raw value.
type Store struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// NewStore returns a Store rooted at dir on fsys. A nil now uses time.Now.
func NewStore(fsys afero.Fs, dir string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{fs: fsys, dir: dir, now: now}
}

// Dir returns the directory holding the entries.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string {
	sum := sha1.Sum([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}

// Get implements store.Store. Expired entries are removed on read.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	p := s.path(key)
	raw, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("file: read %q: %w", key, err)
	}

	header, value, ok := bytes.Cut(raw, []byte{'\n'})
	if !ok {
		return nil, false, fmt.Errorf("file: entry %q: missing header", key)
	}
	expiresAt, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		return nil, false, fmt.Errorf("file: entry %q: bad expiry: %w", key, err)
	}
	if expiresAt > 0 && s.now().UnixMilli() >= expiresAt {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("file: remove expired %q: %w", key, err)
		}
		return nil, false, nil
	}
	return value, true, nil
}

// Set implements store.Store. The entry is written to a temporary file
// and renamed into place.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt int64
	if deadline := store.Expiry(s.now(), ttl); !deadline.IsZero() {
		expiresAt = deadline.UnixMilli()
	}

	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("file: create directory %s: %w", s.dir, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".tmp-")
	if err != nil {
		return fmt.Errorf("file: set %q: %w", key, err)
	}
	tmpName := tmp.Name()

	buf := make([]byte, 0, len(value)+20)
	buf = strconv.AppendInt(buf, expiresAt, 10)
	buf = append(buf, '\n')
	buf = append(buf, value...)

	_, werr := tmp.Write(buf)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("file: write %q: %w", key, err)
	}
	if err := s.fs.Rename(tmpName, s.path(key)); err != nil {
		_ = s.fs.Remove(tmpName)
		return fmt.Errorf("file: commit %q: %w", key, err)
	}
	return nil
}

// Purge removes expired entries and reports how many were deleted.
// Unreadable entries are skipped.
func (s *Store) Purge() (int, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("file: purge: %w", err)
	}

	now := s.now().UnixMilli()
	n := 0
	for _, info := range infos {
		if info.IsDir() || len(info.Name()) != sha1.Size*2 {
			continue
		}
		p := filepath.Join(s.dir, info.Name())
		expiresAt, err := s.readExpiry(p)
		if err != nil || expiresAt == 0 || now < expiresAt {
			continue
		}
		if err := s.fs.Remove(p); err == nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) readExpiry(p string) (int64, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var head [24]byte
	n, err := f.Read(head[:])
	if n == 0 {
		return 0, err
	}
	line, _, ok := bytes.Cut(head[:n], []byte{'\n'})
	if !ok {
		return 0, fmt.Errorf("missing header")
	}
	return strconv.ParseInt(string(line), 10, 64)
}
