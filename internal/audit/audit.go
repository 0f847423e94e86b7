// Package audit writes one JSON Lines record per job execution.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flemzord/cronguard/internal/cron"
)

// Record is one JSON Lines entry.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Job        string    `json:"job"`
	Cycle      time.Time `json:"cycle"`
	DurationMS int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// Status values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Compile-time interface check.
var _ cron.RunObserver = (*Log)(nil)

// Log is a cron.RunObserver that appends records to a writer. Write
// failures are logged and dropped: an audit problem never fails a cycle.
type Log struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	redact func(string) string
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithRedact passes error messages through fn before they are written.
func WithRedact(fn func(string) string) Option {
	return func(l *Log) { l.redact = fn }
}

// WithLogger sets the logger write failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// New creates a Log writing to w.
func New(w io.Writer, opts ...Option) *Log {
	l := &Log{
		w:      w,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open creates or appends to the audit file at path. The caller must Close
// the returned Log.
func Open(path string, opts ...Option) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("audit: create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}
	l := New(f, opts...)
	l.closer = f
	return l, nil
}

// ObserveRun implements cron.RunObserver.
func (l *Log) ObserveRun(r cron.RunRecord) {
	rec := Record{
		Timestamp:  l.now().UTC(),
		Job:        r.Job,
		Cycle:      r.Cycle.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Status:     StatusOK,
	}
	if r.Err != nil {
		rec.Status = StatusFailed
		rec.Error = r.Err.Error()
		if l.redact != nil {
			rec.Error = l.redact(rec.Error)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.w).Encode(rec); err != nil {
		l.logger.Warn("audit: write failed", "job", r.Job, "error", err)
	}
}

// Close closes the file opened by Open. It is a no-op for a Log built with
// New.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}
