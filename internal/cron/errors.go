package cron

import "fmt"

// JobError wraps the failure of a single job execution.
type JobError struct {
	Name string
	Err  error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("cron: job %q failed: %v", e.Name, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// PersistenceError reports a run state load or save failure.
type PersistenceError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("cron: %s run state: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PanicError is the error recorded for a task that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
