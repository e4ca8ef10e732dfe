// Package race provides "first signal wins" primitives.
//
// Every racer pushes at most one tagged result; the first result offered is
// authoritative and later ones are kept only for diagnostics. Losing racers
// are never forcibly stopped: in-process work cannot be killed safely, so the
// race simply stops listening to it. When a hard stop is required, run the
// work in a separate process (see the isolation package).
package race

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

// Result is a value tagged with the name of the racer that produced it.
type Result[T any] struct {
	Tag   string
	Value T
}

// First collects results from concurrent racers and keeps the first one.
// It is safe for concurrent use. The zero value is not usable, use NewFirst.
type First[T any] struct {
	decided *atomic.Bool
	winner  chan Result[T]

	mu   sync.Mutex
	late []Result[T]
}

// NewFirst creates an undecided race.
func NewFirst[T any]() *First[T] {
	return &First[T]{
		decided: atomic.NewBool(false),
		winner:  make(chan Result[T], 1),
	}
}

// Offer submits a racer's result. It returns true if this result won the
// race. Losing results are recorded and can be inspected with Late.
func (f *First[T]) Offer(tag string, value T) bool {
	res := Result[T]{Tag: tag, Value: value}

	if f.decided.CompareAndSwap(false, true) {
		// Buffered with capacity one and written exactly once, never blocks.
		f.winner <- res

		return true
	}

	f.mu.Lock()
	f.late = append(f.late, res)
	f.mu.Unlock()

	return false
}

// Decided reports whether a result has been offered.
func (f *First[T]) Decided() bool {
	return f.decided.Load()
}

// Winner returns a channel that delivers the winning result once. Only one
// receiver should consume it; use Take in the common case.
func (f *First[T]) Winner() <-chan Result[T] {
	return f.winner
}

// Take blocks until a result has been offered or the context is done. If the
// context ends at the same moment a result arrives, the result is preferred.
func (f *First[T]) Take(ctx context.Context) (Result[T], error) {
	select {
	case res := <-f.winner:
		return res, nil
	case <-ctx.Done():
		select {
		case res := <-f.winner:
			return res, nil
		default:
			var zero Result[T]

			return zero, ctx.Err()
		}
	}
}

// Late returns the results offered after the race was decided, in arrival order.
func (f *First[T]) Late() []Result[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Result[T], len(f.late))
	copy(out, f.late)

	return out
}
