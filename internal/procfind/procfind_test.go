package procfind

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByPID_Self(t *testing.T) {
	ctx := context.Background()

	p, err := ByPID(ctx, os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), p.PID)
	assert.NotEmpty(t, p.Name)

	self, err := os.Executable()
	require.NoError(t, err)
	assert.Equal(t, self, p.Exe)
}

func TestByName_Self(t *testing.T) {
	ctx := context.Background()

	self, err := ByPID(ctx, os.Getpid())
	require.NoError(t, err)

	procs, err := ByName(ctx, self.Name)
	require.NoError(t, err)

	var pids []int
	for _, p := range procs {
		pids = append(pids, p.PID)
	}
	assert.Contains(t, pids, os.Getpid())
}

func TestByName_NotFound(t *testing.T) {
	_, err := ByName(context.Background(), "no-such-process-name")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAlive(t *testing.T) {
	ctx := context.Background()
	assert.True(t, Alive(ctx, os.Getpid()))
}

func TestWaitExit(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}

	cmd := exec.Command("sleep", "0.1")
	require.NoError(t, cmd.Start())
	pid := cmd.Process.Pid
	go cmd.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, WaitExit(ctx, pid, 20*time.Millisecond))
	assert.False(t, Alive(ctx, pid))
}

func TestWaitExit_Cancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := WaitExit(ctx, os.Getpid(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
