package errors

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errClose = errors.New("close failed") //nolint:err113
	errKill  = errors.New("kill failed")  //nolint:err113
)

func TestCollection_Empty(t *testing.T) {
	t.Parallel()

	c := &Collection{}
	c.Add(nil)
	c.Addf(nil, "closing %s", "stdin")

	assert.False(t, c.HasError())
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.GetError())
}

func TestCollection_Single(t *testing.T) {
	t.Parallel()

	c := &Collection{}
	c.Add(errClose)

	assert.Same(t, errClose, c.GetError())
}

func TestCollection_Joined(t *testing.T) {
	t.Parallel()

	c := &Collection{}
	c.Addf(errClose, "closing %s", "stdin")
	c.Addf(os.ErrProcessDone, "signal group")
	c.Add(errKill)

	err := c.GetError()
	require.Error(t, err)
	require.ErrorIs(t, err, errClose)
	require.ErrorIs(t, err, errKill)
	require.ErrorIs(t, err, os.ErrProcessDone)
	assert.Contains(t, err.Error(), "closing stdin: close failed")
	assert.Equal(t, 3, c.Len())
}

func TestCollection_Concurrent(t *testing.T) {
	t.Parallel()

	c := &Collection{}

	var wg sync.WaitGroup

	for range 50 {
		wg.Go(func() {
			c.Add(errKill)
		})
	}

	wg.Wait()

	assert.Equal(t, 50, c.Len())
}
