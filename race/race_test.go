package race

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amp-labs/amp-timebox/latch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

var (
	errWork    = errors.New("work failed")
	errTimeout = errors.New("deadline")
)

func TestFirst_FirstOfferWins(t *testing.T) {
	t.Parallel()

	first := NewFirst[int]()

	assert.False(t, first.Decided())
	assert.True(t, first.Offer("a", 1))
	assert.False(t, first.Offer("b", 2))
	assert.False(t, first.Offer("c", 3))
	assert.True(t, first.Decided())

	res, err := first.Take(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Result[int]{Tag: "a", Value: 1}, res)

	late := first.Late()
	require.Len(t, late, 2)
	assert.Equal(t, "b", late[0].Tag)
	assert.Equal(t, "c", late[1].Tag)
}

func TestFirst_ConcurrentOffers(t *testing.T) {
	t.Parallel()

	first := NewFirst[int]()
	wins := atomic.NewInt32(0)

	var wg sync.WaitGroup

	for i := range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if first.Offer("racer", i) {
				wins.Inc()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Len(t, first.Late(), 31)
}

func TestFirst_TakeContextDone(t *testing.T) {
	t.Parallel()

	first := NewFirst[int]()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()

	_, err := first.Take(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForAny_FirstSignalWins(t *testing.T) {
	t.Parallel()

	fast := latch.New("fast")
	slow := latch.New("slow")

	go func() {
		time.Sleep(50 * time.Millisecond)
		fast.Set()
	}()

	go func() {
		time.Sleep(5 * time.Second)
		slow.Set()
	}()

	start := time.Now()
	fired, which := WaitForAny(10*time.Second, slow, fast)
	elapsed := time.Since(start)

	require.True(t, fired)
	require.NotEmpty(t, which)
	assert.Same(t, fast, which[0])
	assert.Less(t, elapsed, 2*time.Second)
}

func TestWaitForAny_Timeout(t *testing.T) {
	t.Parallel()

	a := latch.New("a")
	b := latch.New("b")

	start := time.Now()
	fired, which := WaitForAny(50*time.Millisecond, a, b)

	assert.False(t, fired)
	assert.Empty(t, which)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestWaitForAny_AlreadySet(t *testing.T) {
	t.Parallel()

	a := latch.New("a")
	b := latch.New("b")
	c := latch.New("c")

	a.Set()
	c.Set()

	fired, which := WaitForAny(0, a, b, c)

	require.True(t, fired)
	assert.Equal(t, []*latch.Signal{a, c}, which)
}

func TestWaitForAny_NoSignals(t *testing.T) {
	t.Parallel()

	fired, which := WaitForAny(time.Second)

	assert.False(t, fired)
	assert.Nil(t, which)
}

func TestWaitForAny_ReportsOthersSetLater(t *testing.T) {
	t.Parallel()

	passed := latch.New("passed")
	timer := latch.New("timer")

	go func() {
		time.Sleep(20 * time.Millisecond)
		passed.Set()
		timer.Set()
	}()

	fired, which := WaitForAny(latch.Forever, passed, timer)

	require.True(t, fired)
	assert.Contains(t, which, passed)
}

func TestWaitForAnyContext_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	fired, _ := WaitForAnyContext(ctx, latch.Forever, latch.New("never"))

	assert.False(t, fired)
}

func TestUntilAnyCompletes_WorkWins(t *testing.T) {
	t.Parallel()

	err := UntilAnyCompletes(t.Context(), time.Second, func(ctx context.Context) error {
		return nil
	}, nil)

	require.NoError(t, err)
}

func TestUntilAnyCompletes_WorkError(t *testing.T) {
	t.Parallel()

	err := UntilAnyCompletes(t.Context(), time.Second, func(ctx context.Context) error {
		return errWork
	}, nil)

	require.ErrorIs(t, err, errWork)
}

func TestUntilAnyCompletes_Decisive(t *testing.T) {
	t.Parallel()

	start := time.Now()

	err := UntilAnyCompletes(t.Context(), 5*time.Second, func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)

		return nil
	}, func() error { return errTimeout })

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUntilAnyCompletes_TimerWinsAndLoserIsAbandoned(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	finished := latch.New("finished")

	start := time.Now()

	err := UntilAnyCompletes(t.Context(), 50*time.Millisecond, func(ctx context.Context) error {
		// Deliberately ignores ctx, like work that cannot be interrupted.
		<-release
		finished.Set()

		return nil
	}, func() error { return errTimeout })

	require.ErrorIs(t, err, errTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, finished.IsSet())

	close(release)
	assert.True(t, finished.Wait(time.Second))
}

func TestUntilAnyCompletes_DefaultTimeoutError(t *testing.T) {
	t.Parallel()

	err := UntilAnyCompletes(t.Context(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()

		return ctx.Err()
	}, nil)

	require.ErrorIs(t, err, ErrTimedOut)
}

func TestUntilAnyCompletes_NonPositiveLimit(t *testing.T) {
	t.Parallel()

	started := atomic.NewBool(false)

	err := UntilAnyCompletes(t.Context(), 0, func(ctx context.Context) error {
		started.Store(true)

		return nil
	}, func() error { return errTimeout })

	require.ErrorIs(t, err, errTimeout)
	assert.False(t, started.Load())
}

func TestUntilAnyCompletes_Panic(t *testing.T) {
	t.Parallel()

	err := UntilAnyCompletes(t.Context(), time.Second, func(ctx context.Context) error {
		panic("kaboom")
	}, nil)

	require.ErrorIs(t, err, ErrPanicRecovered)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestRun_ReportsWinnerTag(t *testing.T) {
	t.Parallel()

	res, err := Run(t.Context(), 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()

		return nil
	}, func() error { return errTimeout })

	require.NoError(t, err)
	assert.Equal(t, TagTimeout, res.Tag)
	require.ErrorIs(t, res.Value, errTimeout)

	res, err = Run(t.Context(), latch.Forever, func(ctx context.Context) error {
		return errWork
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, TagWork, res.Tag)
	require.ErrorIs(t, res.Value, errWork)
}

func TestRun_ParentCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := Run(ctx, latch.Forever, func(ctx context.Context) error {
		time.Sleep(time.Second)

		return nil
	}, nil)

	require.ErrorIs(t, err, context.Canceled)
}
