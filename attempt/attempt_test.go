package attempt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestOutcome_StringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, o := range []Outcome{Pending, Passed, Failed, TimedOut, ProcessTimedOut, Inconclusive} {
		parsed, err := ParseOutcome(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, parsed)
	}

	_, err := ParseOutcome("exploded")
	require.ErrorIs(t, err, ErrInvalidOutcome)
	assert.Equal(t, "outcome(42)", Outcome(42).String())
}

func TestOutcome_Predicates(t *testing.T) {
	t.Parallel()

	assert.False(t, Pending.IsDecided())
	assert.True(t, Failed.IsDecided())
	assert.True(t, TimedOut.IsTimeout())
	assert.True(t, ProcessTimedOut.IsTimeout())
	assert.False(t, Failed.IsTimeout())
}

func TestFail(t *testing.T) {
	t.Parallel()

	err := Fail(errBoom)
	require.ErrorIs(t, err, ErrAttemptFailure)
	require.ErrorIs(t, err, errBoom)

	assert.Equal(t, ErrAttemptFailure, Fail(nil))
	assert.Equal(t, err, Fail(err))
}

func TestExhaustedError_Overall(t *testing.T) {
	t.Parallel()

	timeout := &TimeoutError{Index: 3, Limit: 500, Cause: ErrAttemptTimeout}
	err := &ExhaustedError{Attempts: 3, Overall: true, Last: timeout}

	require.ErrorIs(t, err, ErrOverallTimeout)
	require.ErrorIs(t, err, ErrAttemptTimeout)
	assert.Contains(t, err.Error(), "overall timeout exceeded after 3 attempts")

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 3, te.Index)
}

func TestExhaustedError_Retries(t *testing.T) {
	t.Parallel()

	err := &ExhaustedError{Attempts: 1, Last: Fail(errBoom)}

	require.NotErrorIs(t, err, ErrOverallTimeout)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "retries exhausted after 1 attempt: attempt failed: boom", err.Error())
}

func TestExitError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("child: %w", &ExitError{Code: 7})

	require.ErrorIs(t, err, ErrAttemptFailure)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.Code)
}

func TestIndexAndLog(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	assert.Equal(t, 0, Index(ctx))

	Logf(ctx, "dropped %d", 1)

	log := NewLog()
	ctx = WithLog(WithIndex(ctx, 4), log)

	assert.Equal(t, 4, Index(ctx))

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			Logf(ctx, "line %d", i)
		}()
	}

	wg.Wait()

	assert.Equal(t, 10, log.Len())
	assert.Len(t, log.Lines(), 10)
}

func TestExecutorFunc(t *testing.T) {
	t.Parallel()

	var exec Executor = ExecutorFunc(func(_ context.Context, req Request) Record {
		return Record{Index: req.Index, Outcome: Passed}
	})

	rec := exec.Execute(t.Context(), Request{Index: 2})

	assert.Equal(t, "func", exec.Name())
	assert.True(t, rec.Passed())
	assert.Equal(t, 2, rec.Index)
}
