// Package cron runs registered jobs against crontab schedules. One call to
// Scheduler.Run is one dispatch cycle: it takes the single-instance lock,
// decides which jobs are due from the persisted run state, runs them in
// registration order, and saves the updated state.
package cron

import "context"

// Task is the payload executed when a job is due.
type Task interface {
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) error

// Run implements Task.
func (f TaskFunc) Run(ctx context.Context) error { return f(ctx) }

// Job is a self-describing task that carries its own name and schedule.
type Job interface {
	// Name returns a unique identifier for this job (used for logging and state).
	Name() string

	// Schedule returns a crontab expression (e.g., "*/5 * * * *" or "@daily").
	Schedule() string

	// Run executes the job. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// Outcome summarizes a dispatch cycle.
type Outcome int

const (
	// OutcomeIdle means the cycle ended without holding the lock long enough
	// to evaluate jobs: nothing was registered, or locking or loading failed.
	OutcomeIdle Outcome = iota
	// OutcomeRan means the lock was held and every job was evaluated.
	OutcomeRan
	// OutcomeContended means another cycle holds the lock.
	OutcomeContended
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeRan:
		return "ran"
	case OutcomeContended:
		return "contended"
	default:
		return "unknown"
	}
}
