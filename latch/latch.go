// Package latch provides Signal, a one-shot, thread-safe boolean latch.
//
// A Signal starts unset and can be set exactly once. Setting it wakes every
// goroutine waiting on it. Further calls to Set are no-ops, which makes a
// Signal a natural way to decide "who got there first" between concurrent
// goroutines: only one caller ever observes Set returning true.
//
// Example:
//
//	done := latch.New("done")
//	go func() {
//	    doWork()
//	    done.Set()
//	}()
//	if !done.Wait(time.Second) {
//	    // timed out
//	}
package latch

import (
	"context"
	"math"
	"time"

	"go.uber.org/atomic"
)

// Forever is a wait duration that never expires. Passing it (or any negative
// duration) to Wait blocks until the signal is set.
const Forever = time.Duration(math.MaxInt64)

// Signal is a set-once latch. The zero value is not usable, use New.
type Signal struct {
	name string
	set  *atomic.Bool
	done chan struct{}
}

// New creates an unset signal. The name is used for diagnostics only.
func New(name string) *Signal {
	return &Signal{
		name: name,
		set:  atomic.NewBool(false),
		done: make(chan struct{}),
	}
}

// Name returns the diagnostic name of the signal.
func (s *Signal) Name() string {
	return s.name
}

// Set marks the signal as set and wakes all waiters. It returns true only for
// the call that actually performed the transition; every later call returns
// false and has no effect.
func (s *Signal) Set() bool {
	if !s.set.CompareAndSwap(false, true) {
		return false
	}

	close(s.done)

	return true
}

// IsSet reports whether the signal has been set.
func (s *Signal) IsSet() bool {
	return s.set.Load()
}

// Done returns a channel which is closed once the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the signal is set or the timeout elapses. It reports
// whether the signal was set. A negative timeout, or Forever, waits
// without limit.
func (s *Signal) Wait(timeout time.Duration) bool {
	if s.IsSet() {
		return true
	}

	if timeout < 0 || timeout == Forever {
		<-s.done

		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.done:
		return true
	case <-timer.C:
		// The signal may have been set at the same instant the timer fired.
		return s.IsSet()
	}
}

// WaitContext blocks until the signal is set or the context is done.
func (s *Signal) WaitContext(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		if s.IsSet() {
			return nil
		}

		return ctx.Err()
	}
}

// String implements fmt.Stringer.
func (s *Signal) String() string {
	if s.IsSet() {
		return s.name + "(set)"
	}

	return s.name + "(unset)"
}
