package reload

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func newMemWatcher(t *testing.T, fsys afero.Fs) *Watcher {
	t.Helper()
	return NewWatcher(WatcherConfig{
		Path:         "/etc/cronguard.yaml",
		PollInterval: 10 * time.Millisecond,
		Fs:           fsys,
	})
}

func TestWatcher_DetectsChange(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/etc/cronguard.yaml", []byte("initial"), 0o644); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	_ = fsys.Chtimes("/etc/cronguard.yaml", base, base)

	w := newMemWatcher(t, fsys)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Let the watcher record the initial observation.
	time.Sleep(30 * time.Millisecond)

	if err := afero.WriteFile(fsys, "/etc/cronguard.yaml", []byte("modified content"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = fsys.Chtimes("/etc/cronguard.yaml", base.Add(time.Minute), base.Add(time.Minute))

	select {
	case c := <-w.Changes():
		if c.Path != "/etc/cronguard.yaml" {
			t.Errorf("path = %q", c.Path)
		}
		if c.Size != int64(len("modified content")) {
			t.Errorf("size = %d", c.Size)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestWatcher_NoChange(t *testing.T) {
	fsys := afero.NewMemMapFs()
	_ = afero.WriteFile(fsys, "/etc/cronguard.yaml", []byte("data"), 0o644)

	w := newMemWatcher(t, fsys)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	select {
	case c := <-w.Changes():
		t.Errorf("unexpected change: %+v", c)
	case <-ctx.Done():
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	w := newMemWatcher(t, afero.NewMemMapFs())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	select {
	case c := <-w.Changes():
		t.Errorf("unexpected change: %+v", c)
	case <-ctx.Done():
	}
}

func TestWatcher_Stop(t *testing.T) {
	w := newMemWatcher(t, afero.NewMemMapFs())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	done := make(chan struct{})
	go func() {
		w.Stop()
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	w := newMemWatcher(t, afero.NewMemMapFs())

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop before Start deadlocked")
	}
}

func TestWatcher_ContextCancellation(t *testing.T) {
	w := newMemWatcher(t, afero.NewMemMapFs())
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}
