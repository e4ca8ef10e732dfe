package latch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestSignal_SetOnce(t *testing.T) {
	t.Parallel()

	sig := New("done")

	assert.False(t, sig.IsSet())
	assert.True(t, sig.Set())
	assert.True(t, sig.IsSet())
	assert.False(t, sig.Set())
	assert.True(t, sig.IsSet())
}

func TestSignal_ExactlyOneWinner(t *testing.T) {
	t.Parallel()

	sig := New("contended")
	winners := atomic.NewInt32(0)

	var wg sync.WaitGroup

	for range 64 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if sig.Set() {
				winners.Inc()
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestSignal_WaitTimesOut(t *testing.T) {
	t.Parallel()

	sig := New("never")

	start := time.Now()
	ok := sig.Wait(50 * time.Millisecond)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestSignal_WaitWakesAllWaiters(t *testing.T) {
	t.Parallel()

	sig := New("broadcast")

	var wg sync.WaitGroup

	woken := atomic.NewInt32(0)

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if sig.Wait(Forever) {
				woken.Inc()
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	sig.Set()
	wg.Wait()

	assert.Equal(t, int32(8), woken.Load())
}

func TestSignal_WaitAlreadySet(t *testing.T) {
	t.Parallel()

	sig := New("early")
	sig.Set()

	assert.True(t, sig.Wait(0))
	assert.True(t, sig.Wait(-1))
}

func TestSignal_WaitContext(t *testing.T) {
	t.Parallel()

	sig := New("ctx")

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	err := sig.WaitContext(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	sig.Set()
	require.NoError(t, sig.WaitContext(t.Context()))
}

func TestSignal_String(t *testing.T) {
	t.Parallel()

	sig := New("ready")
	assert.Equal(t, "ready(unset)", sig.String())

	sig.Set()
	assert.Equal(t, "ready(set)", sig.String())
	assert.Equal(t, "ready", sig.Name())
}
