package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// EveryMinute is the default tick spec.
const EveryMinute = "* * * * *"

// Cycler is what a Ticker drives.
type Cycler interface {
	Run(ctx context.Context) (Outcome, error)
}

// Ticker fires a dispatch cycle on a robfig/cron schedule, by default once
// per minute. A tick is skipped while the previous one is still running.
type Ticker struct {
	target Cycler
	spec   string
	logger *slog.Logger

	mu      sync.Mutex // guards cron, cancel
	running sync.Mutex // held for the duration of a tick
	cron    *cron.Cron
	cancel  context.CancelFunc
}

// NewTicker creates a ticker for target. An empty spec means EveryMinute.
// Descriptors such as "@every 30s" are accepted.
func NewTicker(target Cycler, spec string, logger *slog.Logger) *Ticker {
	if spec == "" {
		spec = EveryMinute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{target: target, spec: spec, logger: logger}
}

// Start begins firing cycles. It returns an error if the spec is invalid
// or the ticker is already started.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		return errors.New("cron: ticker already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))

	if _, err := c.AddFunc(t.spec, func() { t.tick(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("cron: invalid tick spec %q: %w", t.spec, err)
	}

	t.cron = c
	t.cancel = cancel
	c.Start()
	t.logger.Info("cron: ticker started", "spec", t.spec)
	return nil
}

// Stop halts the ticker and waits for an in-flight cycle to finish or
// for ctx to expire.
func (t *Ticker) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron == nil {
		return nil
	}
	t.cancel()
	done := t.cron.Stop().Done()
	t.cron = nil
	t.cancel = nil

	select {
	case <-done:
		t.logger.Info("cron: ticker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick runs one cycle unless the previous one is still running.
func (t *Ticker) tick(ctx context.Context) bool {
	// TryLock is atomic: no race between check and acquire.
	if !t.running.TryLock() {
		t.logger.Warn("cron: previous cycle still running, skipping tick")
		return false
	}
	defer t.running.Unlock()

	outcome, err := t.target.Run(ctx)
	if err != nil {
		t.logger.Error("cron: cycle failed", "outcome", outcome.String(), "error", err)
	} else {
		t.logger.Debug("cron: cycle finished", "outcome", outcome.String())
	}
	return true
}
