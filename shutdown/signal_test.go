//go:build unix

package shutdown

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalTriggersShutdown(t *testing.T) {
	t.Parallel()

	ctx, h := SetupHandler(t.Context(), syscall.SIGUSR1)
	defer h.Stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not canceled")
	}

	assert.Equal(t, syscall.SIGUSR1, h.Signal())
}
