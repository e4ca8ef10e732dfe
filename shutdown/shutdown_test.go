package shutdown

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksBeforeCancel(t *testing.T) {
	t.Parallel()

	ctx, h := SetupHandler(t.Context())
	defer h.Stop()

	var (
		called    atomic.Int32
		aliveSeen atomic.Bool
	)

	h.BeforeShutdown(func() {
		called.Add(1)
		aliveSeen.Store(ctx.Err() == nil)
	})

	require.True(t, BeforeShutdown(ctx, func() {
		called.Add(10)
	}))

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	h.Shutdown()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not canceled")
	}

	assert.Equal(t, int32(11), called.Load())
	assert.True(t, aliveSeen.Load(), "hooks run while the context is alive")
	assert.Equal(t, os.Interrupt, h.Signal())
}

func TestStopSkipsHooks(t *testing.T) {
	t.Parallel()

	ctx, h := SetupHandler(t.Context())

	var called atomic.Bool

	h.BeforeShutdown(func() { called.Store(true) })
	h.Stop()

	<-ctx.Done()

	h.Shutdown()
	h.Stop()

	assert.False(t, called.Load())
	assert.Nil(t, h.Signal())
}

func TestParentCancelStopsHandler(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(t.Context())

	ctx, h := SetupHandler(parent)
	cancel()

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not canceled")
	}

	assert.Nil(t, h.Signal())
}

func TestBeforeShutdownWithoutHandler(t *testing.T) {
	t.Parallel()

	assert.False(t, BeforeShutdown(t.Context(), func() {}))
}
