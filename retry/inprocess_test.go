package retry

import (
	"context"
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestInProcess_Outcomes(t *testing.T) {
	t.Parallel()

	exec := InProcess{}
	assert.Equal(t, "in_process", exec.Name())

	rec := exec.Execute(t.Context(), attempt.Request{Index: 1, Limit: time.Second, Work: func(ctx context.Context) error {
		attempt.Logf(ctx, "hello")

		return nil
	}})
	assert.Equal(t, attempt.Passed, rec.Outcome)
	require.NoError(t, rec.Err)
	assert.Equal(t, []string{"hello"}, rec.Logs)

	rec = exec.Execute(t.Context(), attempt.Request{Index: 2, Limit: time.Second, Work: func(ctx context.Context) error {
		return errFlaky
	}})
	assert.Equal(t, attempt.Failed, rec.Outcome)
	require.ErrorIs(t, rec.Err, errFlaky)
	assert.Equal(t, 2, rec.Index)
}

func TestInProcess_UnrunnableWork(t *testing.T) {
	t.Parallel()

	rec := InProcess{}.Execute(t.Context(), attempt.Request{Index: 1, Limit: time.Second, Work: func(context.Context) error {
		return fmt.Errorf("%w: launching target: %w", attempt.ErrUnrunnable, fs.ErrNotExist)
	}})

	assert.Equal(t, attempt.Inconclusive, rec.Outcome)
	require.ErrorIs(t, rec.Err, attempt.ErrUnrunnable)
	require.ErrorIs(t, rec.Err, fs.ErrNotExist)
	require.NotErrorIs(t, rec.Err, attempt.ErrAttemptFailure)
}

func TestInProcess_TimeoutAbandonsWork(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	finished := atomic.NewBool(false)

	rec := InProcess{}.Execute(t.Context(), attempt.Request{Index: 3, Limit: 30 * time.Millisecond, Work: func(ctx context.Context) error {
		<-release
		finished.Store(true)

		return nil
	}})

	assert.Equal(t, attempt.TimedOut, rec.Outcome)
	require.ErrorIs(t, rec.Err, attempt.ErrAttemptTimeout)
	assert.False(t, finished.Load())
	assert.Less(t, rec.Elapsed, time.Second)

	close(release)
}

func TestInProcess_NonPositiveLimit(t *testing.T) {
	t.Parallel()

	started := atomic.NewBool(false)

	rec := InProcess{}.Execute(t.Context(), attempt.Request{Index: 1, Limit: 0, Work: func(ctx context.Context) error {
		started.Store(true)

		return nil
	}})

	assert.Equal(t, attempt.TimedOut, rec.Outcome)
	require.ErrorIs(t, rec.Err, attempt.ErrAttemptTimeout)
	assert.False(t, started.Load())
}

func TestInProcess_NilWork(t *testing.T) {
	t.Parallel()

	rec := InProcess{}.Execute(t.Context(), attempt.Request{Index: 1, Limit: time.Second})

	assert.Equal(t, attempt.Inconclusive, rec.Outcome)
	require.ErrorIs(t, rec.Err, attempt.ErrUnrunnable)
}
