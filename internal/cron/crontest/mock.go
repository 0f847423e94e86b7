// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/cronguard/internal/cron"
	"github.com/flemzord/cronguard/internal/store"
)

// MockJob is a configurable test double for cron.Job.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	mu       sync.Mutex
	calls    int
	lastCall time.Time
}

// Compile-time interface check.
var _ cron.Job = (*MockJob)(nil)

// Name implements cron.Job.
func (m *MockJob) Name() string { return m.NameVal }

// Schedule implements cron.Job.
func (m *MockJob) Schedule() string { return m.ScheduleVal }

// Run implements cron.Job and increments the call counter.
func (m *MockJob) Run(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.lastCall = time.Now()
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx)
	}
	return nil
}

// CallCount returns the number of times Run was called.
func (m *MockJob) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastCall returns the time of the last Run call.
func (m *MockJob) LastCall() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCall
}

// MockLock is an in-memory cron.Locker.
type MockLock struct {
	// Contended makes every TryAcquire report false.
	Contended bool
	// Err is returned from TryAcquire when set.
	Err error

	mu       sync.Mutex
	held     bool
	acquires int
	releases int
	events   *[]string
}

// Compile-time interface check.
var _ cron.Locker = (*MockLock)(nil)

// TryAcquire implements cron.Locker.
func (l *MockLock) TryAcquire(time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return false, l.Err
	}
	if l.Contended || l.held {
		return false, nil
	}
	l.held = true
	l.acquires++
	l.record("acquire")
	return true, nil
}

// Release implements cron.Locker.
func (l *MockLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	l.releases++
	l.record("release")
}

// Held reports whether the lock is currently held.
func (l *MockLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Counts returns the number of successful acquires and releases.
func (l *MockLock) Counts() (acquires, releases int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquires, l.releases
}

// Trace appends "acquire" and "release" to events as they happen.
func (l *MockLock) Trace(events *[]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = events
}

func (l *MockLock) record(ev string) {
	if l.events != nil {
		*l.events = append(*l.events, ev)
	}
}

// FaultyStore wraps a store.Store and injects errors.
type FaultyStore struct {
	store.Store

	GetErr error
	SetErr error

	mu      sync.Mutex
	lastTTL time.Duration
	sets    int
	events  *[]string
}

// Compile-time interface check.
var _ store.Store = (*FaultyStore)(nil)

// NewFaultyStore wraps an in-memory store.
func NewFaultyStore(now func() time.Time) *FaultyStore {
	return &FaultyStore{Store: store.NewInMemoryStore(now)}
}

// Get implements store.Store.
func (f *FaultyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.GetErr != nil {
		return nil, false, f.GetErr
	}
	return f.Store.Get(ctx, key)
}

// Set implements store.Store.
func (f *FaultyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	f.sets++
	f.lastTTL = ttl
	if f.events != nil {
		*f.events = append(*f.events, "save")
	}
	f.mu.Unlock()

	if f.SetErr != nil {
		return f.SetErr
	}
	return f.Store.Set(ctx, key, value, ttl)
}

// Sets returns the number of Set calls and the ttl of the last one.
func (f *FaultyStore) Sets() (int, time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets, f.lastTTL
}

// Trace appends "save" to events on every Set.
func (f *FaultyStore) Trace(events *[]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = events
}
