// Package reload re-reads the configuration of a running daemon when the
// file changes or on SIGHUP, and swaps in the new job table.
package reload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Path is the configuration file to watch.
	Path string

	// PollInterval is how often to stat the file. Defaults to 5 seconds.
	PollInterval time.Duration

	// Fs is the filesystem to stat on. Defaults to the OS filesystem.
	Fs afero.Fs
}

// Change reports that the watched file was rewritten.
type Change struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Watcher polls a file and reports a Change when its modification time or
// size differs from the last observation.
type Watcher struct {
	cfg     WatcherConfig
	changes chan Change
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher. Nothing is polled until Start.
func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	return &Watcher{
		cfg:     cfg,
		changes: make(chan Change, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Changes returns the channel changes are delivered on. A change that
// arrives while one is pending is coalesced into it.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Stop stops polling and waits for the goroutine to exit. It is safe to
// call more than once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	last, _ := w.observe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			cur, ok := w.observe()
			if !ok || (cur.ModTime.Equal(last.ModTime) && cur.Size == last.Size) {
				continue
			}
			last = cur
			select {
			case w.changes <- cur:
			default:
			}
		}
	}
}

// observe stats the file. A missing file is not a change: editors often
// replace files by rename.
func (w *Watcher) observe() (Change, bool) {
	info, err := w.cfg.Fs.Stat(w.cfg.Path)
	if err != nil {
		return Change{}, false
	}
	return Change{Path: w.cfg.Path, ModTime: info.ModTime(), Size: info.Size()}, true
}
