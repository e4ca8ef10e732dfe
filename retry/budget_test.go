package retry

import (
	"testing"
	"time"

	"github.com/amp-labs/amp-timebox/attempt"
	"github.com/stretchr/testify/assert"
)

func TestDefaultOverall(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, DefaultOverall(5, 500*time.Millisecond, -1))
	assert.Equal(t, 1600*time.Millisecond, DefaultOverall(3, 500*time.Millisecond, 100*time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, DefaultOverall(3, 500*time.Millisecond, 0))
}

func TestTimeBudget_NotStarted(t *testing.T) {
	t.Parallel()

	budget := NewTimeBudget(time.Second, 300*time.Millisecond, true)

	assert.False(t, budget.Started())
	assert.Equal(t, time.Duration(0), budget.Elapsed())
	assert.Equal(t, 300*time.Millisecond, budget.Next(), "first window is capped by the overall budget")
	assert.False(t, budget.Exhausted())
}

func TestTimeBudget_ElapsedIsMonotonic(t *testing.T) {
	t.Parallel()

	budget := NewTimeBudget(time.Second, time.Minute, true)
	budget.Start()

	prev := budget.Elapsed()

	for range 1000 {
		cur := budget.Elapsed()
		assert.GreaterOrEqual(t, cur, prev)

		prev = cur
	}
}

func TestTimeBudget_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	budget := NewTimeBudget(time.Second, time.Minute, true)
	budget.Start()

	time.Sleep(20 * time.Millisecond)
	budget.Start()

	assert.GreaterOrEqual(t, budget.Elapsed(), 20*time.Millisecond)
}

func TestTimeBudget_NextShrinks(t *testing.T) {
	t.Parallel()

	budget := NewTimeBudget(time.Second, 200*time.Millisecond, true)
	budget.Start()

	time.Sleep(60 * time.Millisecond)

	assert.LessOrEqual(t, budget.Next(), 140*time.Millisecond)
	assert.False(t, budget.Exhausted())

	time.Sleep(160 * time.Millisecond)

	assert.True(t, budget.Exhausted())
	assert.Equal(t, time.Duration(0), budget.Remaining())
	assert.Equal(t, time.Duration(0), budget.Next())
}

func TestTimeBudget_Unenforced(t *testing.T) {
	t.Parallel()

	budget := NewTimeBudget(time.Millisecond, time.Millisecond, false)
	budget.Start()

	time.Sleep(5 * time.Millisecond)

	assert.False(t, budget.Exhausted())
	assert.Equal(t, attempt.Unbounded, budget.Next())
	assert.Equal(t, attempt.Unbounded, budget.Remaining())
}
