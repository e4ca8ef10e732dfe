package race

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/amp-labs/amp-timebox/latch"
)

// WaitForAny blocks until at least one of the signals is set or maxWait
// elapses. It reports whether a signal fired, and which signals were set at
// the moment the wait resolved; the signal that resolved the wait comes first.
//
// A negative maxWait, or latch.Forever, waits without limit.
//
// Example:
//
//	passed, failed := latch.New("passed"), latch.New("failed")
//	fired, which := race.WaitForAny(5*time.Second, passed, failed)
//	if !fired {
//	    // neither outcome arrived in time
//	}
func WaitForAny(maxWait time.Duration, signals ...*latch.Signal) (bool, []*latch.Signal) {
	return WaitForAnyContext(context.Background(), maxWait, signals...)
}

// WaitForAnyContext is WaitForAny bounded additionally by the context.
//
// Each signal is observed by its own watcher. Watchers rendezvous before any
// of them starts waiting, so a signal that is set while the others are still
// being scheduled cannot be missed. The first watcher that sees its signal
// resolves the wait; the rest are released when the wait resolves and finish
// in the background.
func WaitForAnyContext(
	ctx context.Context,
	maxWait time.Duration,
	signals ...*latch.Signal,
) (bool, []*latch.Signal) {
	if len(signals) == 0 {
		return false, nil
	}

	if fired := alreadySet(signals); len(fired) > 0 {
		return true, fired
	}

	gateCtx, cancel := withMaxWait(ctx, maxWait)
	defer cancel()

	first := NewFirst[*latch.Signal]()

	// One worker per signal, so every watcher is running at the same time
	// and the rendezvous below can complete.
	pool := pond.NewPool(len(signals))

	var ready sync.WaitGroup

	ready.Add(len(signals))

	start := make(chan struct{})

	for _, sig := range signals {
		pool.Submit(func() {
			ready.Done()
			<-start

			select {
			case <-sig.Done():
				first.Offer(sig.Name(), sig)
			case <-gateCtx.Done():
			}
		})
	}

	ready.Wait()
	close(start)

	winner, err := first.Take(gateCtx)

	// Release the watchers that are still pending and let the pool drain on
	// its own; nothing here waits for them.
	cancel()

	go pool.StopAndWait()

	if err != nil {
		// A signal set right as the deadline passed still counts.
		fired := alreadySet(signals)

		return len(fired) > 0, fired
	}

	fired := []*latch.Signal{winner.Value}

	for _, sig := range signals {
		if sig != winner.Value && sig.IsSet() {
			fired = append(fired, sig)
		}
	}

	return true, fired
}

func withMaxWait(ctx context.Context, maxWait time.Duration) (context.Context, context.CancelFunc) {
	if maxWait < 0 || maxWait == latch.Forever {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, maxWait)
}

func alreadySet(signals []*latch.Signal) []*latch.Signal {
	var fired []*latch.Signal

	for _, sig := range signals {
		if sig.IsSet() {
			fired = append(fired, sig)
		}
	}

	return fired
}
