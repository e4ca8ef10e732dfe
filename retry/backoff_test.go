package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpBackoff_Delay(t *testing.T) {
	t.Parallel()

	backoff := ExpBackoff{
		Base:   100 * time.Millisecond,
		Max:    time.Second,
		Factor: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{500, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestConstBackoff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 25*time.Millisecond, ConstBackoff(25*time.Millisecond).Delay(7))
}

func TestPause(t *testing.T) {
	t.Parallel()

	start := time.Now()

	require.NoError(t, pause(t.Context(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	require.NoError(t, pause(t.Context(), 0))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.ErrorIs(t, pause(ctx, time.Hour), context.Canceled)
	require.ErrorIs(t, pause(ctx, 0), context.Canceled)
}
