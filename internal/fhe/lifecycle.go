package fhe

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// State is the readiness position of the encryption backend.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
)

const initFlightKey = "init"

// Lifecycle tracks the one-time readiness of the encryption backend. It is
// constructed explicitly and handed to its dependents; there is no package
// singleton. Concurrent Initialize calls collapse into a single in-flight
// attempt whose outcome every caller shares. Failed is re-attemptable: the
// next Initialize after a failure starts a fresh attempt.
type Lifecycle struct {
	group singleflight.Group

	mu      sync.RWMutex
	state   State
	lastErr error
}

// NewLifecycle creates a lifecycle in the Uninitialized state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateUninitialized}
}

// State returns the current readiness state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Err returns the error from the most recent failed attempt, or nil.
func (l *Lifecycle) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastErr
}

// Initialize runs init once across all concurrent callers and records the
// outcome. The attempt executes under the initiating caller's context;
// callers that join an in-flight attempt share its result, including a
// cancellation of the initiator. Returns immediately once Ready.
func (l *Lifecycle) Initialize(ctx context.Context, init func(ctx context.Context) error) error {
	if l.State() == StateReady {
		return nil
	}

	_, err, _ := l.group.Do(initFlightKey, func() (any, error) {
		if l.State() == StateReady {
			return nil, nil
		}
		l.set(StateInitializing, nil)
		if err := init(ctx); err != nil {
			l.set(StateFailed, err)
			return nil, err
		}
		l.set(StateReady, nil)
		return nil, nil
	})
	return err
}

func (l *Lifecycle) set(state State, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
	l.lastErr = err
}
