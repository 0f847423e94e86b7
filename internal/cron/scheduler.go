package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/cronguard/internal/crontab"
	"github.com/flemzord/cronguard/internal/metrics"
	"github.com/flemzord/cronguard/internal/store"
	"github.com/flemzord/cronguard/internal/telemetry"
)

const (
	// DefaultWindow is the grace window for overdue jobs and stale locks.
	DefaultWindow = 300 * time.Second
	// DefaultStateKey is the store key the run state is saved under.
	DefaultStateKey = "cron.run_state"
	// ServiceName is the AppContext service key the daemon publishes its
	// Scheduler under.
	ServiceName = "scheduler"
)

// Locker is the single-instance lock a cycle runs under.
type Locker interface {
	// TryAcquire claims the lock at now. It reports false, nil when
	// another cycle holds it.
	TryAcquire(now time.Time) (bool, error)
	Release()
}

// RunRecord describes one finished job execution.
type RunRecord struct {
	Job      string
	Cycle    time.Time // the cycle's "now"
	Started  time.Time
	Duration time.Duration
	Err      error
}

// RunObserver is notified after every job execution, in cycle order.
type RunObserver interface {
	ObserveRun(RunRecord)
}

// Config configures a Scheduler. Store and Lock are required.
type Config struct {
	Store    store.Store
	Lock     Locker
	Window   time.Duration // zero means DefaultWindow
	StateKey string        // empty means DefaultStateKey
	Now      func() time.Time
	Logger   *slog.Logger
	Metrics  *metrics.Collector
	Observer RunObserver // optional
}

type entry struct {
	name     string
	schedule *crontab.Schedule
	task     Task
}

// JobStatus is a point-in-time view of one registered job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	NextRun   time.Time `json:"next_run,omitzero"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	LastCycle   time.Time   `json:"last_cycle,omitzero"`
	LastOutcome string      `json:"last_outcome,omitempty"`
	Jobs        []JobStatus `json:"jobs"`
}

type jobCounters struct {
	lastRun   time.Time
	lastError string
	runs      int
	failures  int
}

// Scheduler owns the job registry and executes dispatch cycles.
// Register may be called concurrently with Run; cycles are serialized.
type Scheduler struct {
	store    store.Store
	lock     Locker
	window   time.Duration
	stateKey string
	now      func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Collector
	observer RunObserver

	mu       sync.Mutex // guards jobs, index, status fields
	jobs     []*entry
	index    map[string]int
	counters map[string]*jobCounters
	next     map[string]time.Time
	last     time.Time
	outcome  Outcome

	runMu sync.Mutex
}

// NewScheduler creates a scheduler with no jobs.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, errors.New("cron: store is required")
	}
	if cfg.Lock == nil {
		return nil, errors.New("cron: lock is required")
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("cron: window must be positive, got %s", cfg.Window)
	}
	if cfg.Window == 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.StateKey == "" {
		cfg.StateKey = DefaultStateKey
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		store:    cfg.Store,
		lock:     cfg.Lock,
		window:   cfg.Window,
		stateKey: cfg.StateKey,
		now:      cfg.Now,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		observer: cfg.Observer,
		index:    make(map[string]int),
		counters: make(map[string]*jobCounters),
		next:     make(map[string]time.Time),
	}, nil
}

// Window returns the grace window.
func (s *Scheduler) Window() time.Duration { return s.window }

// Register adds a job, or replaces the schedule and task of an existing
// job with the same name while keeping its position. It panics if sched
// or task is nil.
func (s *Scheduler) Register(name string, sched *crontab.Schedule, task Task) {
	if sched == nil || task == nil {
		panic("cron: Register with nil schedule or task")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entry{name: name, schedule: sched, task: task}
	if i, ok := s.index[name]; ok {
		s.jobs[i] = e
		return
	}
	s.index[name] = len(s.jobs)
	s.jobs = append(s.jobs, e)
	s.counters[name] = &jobCounters{}
}

// RegisterJob compiles j's schedule and registers it under j's name.
func (s *Scheduler) RegisterJob(j Job) error {
	sched, err := crontab.Compile(j.Schedule())
	if err != nil {
		return fmt.Errorf("cron: invalid schedule for job %q: %w", j.Name(), err)
	}
	s.Register(j.Name(), sched, j)
	return nil
}

// ReplaceJobs swaps the whole job table for jobs, in order. Every schedule
// is compiled first; on error the table is unchanged. Counters survive for
// names present in both tables. Run state for dropped jobs stays in the
// store until it expires.
func (s *Scheduler) ReplaceJobs(jobs []Job) error {
	entries := make([]*entry, 0, len(jobs))
	index := make(map[string]int, len(jobs))
	for _, j := range jobs {
		sched, err := crontab.Compile(j.Schedule())
		if err != nil {
			return fmt.Errorf("cron: invalid schedule for job %q: %w", j.Name(), err)
		}
		if i, dup := index[j.Name()]; dup {
			entries[i] = &entry{name: j.Name(), schedule: sched, task: j}
			continue
		}
		index[j.Name()] = len(entries)
		entries = append(entries, &entry{name: j.Name(), schedule: sched, task: j})
	}

	s.mu.Lock()
	var dropped []string
	counters := make(map[string]*jobCounters, len(entries))
	for _, e := range entries {
		if c, ok := s.counters[e.name]; ok {
			counters[e.name] = c
		} else {
			counters[e.name] = &jobCounters{}
		}
	}
	for name := range s.index {
		if _, ok := index[name]; !ok {
			dropped = append(dropped, name)
			delete(s.next, name)
		}
	}
	s.jobs = entries
	s.index = index
	s.counters = counters
	s.mu.Unlock()

	for _, name := range dropped {
		s.metrics.SetNextRun(name, time.Time{})
	}
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Scheduler) snapshot() []*entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*entry, len(s.jobs))
	copy(jobs, s.jobs)
	return jobs
}

// Run executes one dispatch cycle. Lock contention is reported as
// OutcomeContended with a nil error. The first job failure is returned as
// a *JobError after the state is saved and the lock released.
func (s *Scheduler) Run(ctx context.Context) (Outcome, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	jobs := s.snapshot()
	if len(jobs) == 0 {
		s.finish(time.Time{}, OutcomeIdle, 0)
		return OutcomeIdle, nil
	}

	start := time.Now()
	now := s.now().Truncate(time.Second)

	ctx, span := telemetry.Tracer().Start(ctx, "cron.cycle",
		trace.WithAttributes(attribute.Int("cron.jobs", len(jobs))))
	defer span.End()

	acquired, err := s.lock.TryAcquire(now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lock")
		s.finish(now, OutcomeIdle, time.Since(start))
		return OutcomeIdle, fmt.Errorf("cron: acquiring lock: %w", err)
	}
	if !acquired {
		s.logger.Info("cron: cycle already running elsewhere, skipping")
		span.SetAttributes(attribute.String("cron.outcome", OutcomeContended.String()))
		s.finish(now, OutcomeContended, 0)
		return OutcomeContended, nil
	}
	defer s.lock.Release()

	state, err := s.load(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load")
		s.finish(now, OutcomeIdle, time.Since(start))
		return OutcomeIdle, err
	}

	threshold := now.Add(-s.window)
	var first error
	for _, e := range jobs {
		if !s.decide(e, state, now, threshold) {
			continue
		}
		if err := s.execute(ctx, e, now); err != nil && first == nil {
			first = err
		}
	}

	if err := s.save(ctx, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save")
		if first == nil {
			first = err
		} else {
			first = errors.Join(first, err)
		}
	} else if first != nil {
		span.SetStatus(codes.Error, "job failed")
	}

	span.SetAttributes(attribute.String("cron.outcome", OutcomeRan.String()))
	s.finish(now, OutcomeRan, time.Since(start))
	return OutcomeRan, first
}

// decide applies the due rule for one job, updating state in place.
func (s *Scheduler) decide(e *entry, state State, now, threshold time.Time) bool {
	stored := state[e.name]

	switch {
	case stored == 0 || stored < threshold.Unix():
		next := e.schedule.Next(now)
		state.set(e.name, next)
		s.publishNext(e.name, next)

		prev := e.schedule.Next(threshold)
		due := !prev.IsZero() && prev.Before(now)
		if stored != 0 {
			s.logger.Warn("cron: job overdue beyond window",
				"job", e.name,
				"scheduled", time.Unix(stored, 0),
				"catch_up", due,
			)
		}
		return due

	case stored < now.Unix():
		next := e.schedule.Next(now)
		state.set(e.name, next)
		s.publishNext(e.name, next)
		return true

	default:
		s.publishNext(e.name, time.Unix(stored, 0))
		return false
	}
}

func (s *Scheduler) execute(ctx context.Context, e *entry, now time.Time) (err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "cron.job",
		trace.WithAttributes(attribute.String("cron.job", e.name)))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &JobError{Name: e.name, Err: &PanicError{Value: r}}
		}
		elapsed := time.Since(start)
		s.metrics.RecordJob(e.name, elapsed, err)
		s.recordRun(e.name, now, err)
		if s.observer != nil {
			s.observer.ObserveRun(RunRecord{
				Job:      e.name,
				Cycle:    now,
				Started:  start,
				Duration: elapsed,
				Err:      err,
			})
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "job failed")
			s.logger.Error("cron: job failed",
				"job", e.name,
				"duration", elapsed,
				"error", err,
			)
		} else {
			s.logger.Debug("cron: job completed", "job", e.name, "duration", elapsed)
		}
		span.End()
	}()

	s.logger.Debug("cron: job started", "job", e.name)
	if runErr := e.task.Run(ctx); runErr != nil {
		return &JobError{Name: e.name, Err: runErr}
	}
	return nil
}

func (s *Scheduler) load(ctx context.Context) (State, error) {
	data, ok, err := s.store.Get(ctx, s.stateKey)
	if err != nil {
		s.metrics.RecordPersistError("load")
		return nil, &PersistenceError{Op: "load", Err: err}
	}
	if !ok {
		return State{}, nil
	}
	state, err := DecodeState(data)
	if err != nil {
		// An undecodable blob yields an empty state.
		s.metrics.RecordPersistError("load")
		s.logger.Warn("cron: discarding unreadable run state", "error", err)
		return State{}, nil
	}
	return state, nil
}

func (s *Scheduler) save(ctx context.Context, state State) error {
	data, err := EncodeState(state)
	if err == nil {
		err = s.store.Set(ctx, s.stateKey, data, 2*s.window)
	}
	if err != nil {
		s.metrics.RecordPersistError("save")
		s.logger.Error("cron: saving run state", "error", err)
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

func (s *Scheduler) publishNext(name string, at time.Time) {
	s.metrics.SetNextRun(name, at)
	s.mu.Lock()
	s.next[name] = at
	s.mu.Unlock()
}

func (s *Scheduler) recordRun(name string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[name]
	if !ok {
		c = &jobCounters{}
		s.counters[name] = c
	}
	c.lastRun = at
	c.runs++
	c.lastError = ""
	if err != nil {
		c.failures++
		c.lastError = err.Error()
	}
}

func (s *Scheduler) finish(at time.Time, o Outcome, d time.Duration) {
	label := o.String()
	if o == OutcomeIdle && !at.IsZero() {
		label = metrics.OutcomeError
	}
	s.metrics.RecordCycle(label, d)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !at.IsZero() {
		s.last = at
		s.outcome = o
	}
}

// Status returns the registry and the results of past cycles.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{LastCycle: s.last, Jobs: make([]JobStatus, 0, len(s.jobs))}
	if !s.last.IsZero() {
		st.LastOutcome = s.outcome.String()
	}
	for _, e := range s.jobs {
		js := JobStatus{
			Name:     e.name,
			Schedule: e.schedule.String(),
			NextRun:  s.next[e.name],
		}
		if c := s.counters[e.name]; c != nil {
			js.LastRun = c.lastRun
			js.LastError = c.lastError
			js.Runs = c.runs
			js.Failures = c.failures
		}
		st.Jobs = append(st.Jobs, js)
	}
	return st
}
