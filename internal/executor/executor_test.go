package executor

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRun(t *testing.T) {
	requireShell(t)

	tests := []struct {
		name       string
		opts       Options
		wantStdout string
		wantStderr string
	}{
		{
			name: "output hidden",
		},
		{
			name:       "stdout shown",
			opts:       Options{ShowOutput: true},
			wantStdout: "out\n",
		},
		{
			name:       "both shown",
			opts:       Options{ShowOutput: true, ShowErrors: true},
			wantStdout: "out\n",
			wantStderr: "err\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			tt.opts.Stdout = &stdout
			tt.opts.Stderr = &stderr

			err := Run(context.Background(), []string{"sh", "-c", "echo out; echo err >&2"}, tt.opts, zap.NewNop())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStdout, stdout.String())
			assert.Equal(t, tt.wantStderr, stderr.String())
		})
	}
}

func TestRun_ExitError(t *testing.T) {
	requireShell(t)

	err := Run(context.Background(), []string{"sh", "-c", "exit 3"}, Options{}, zap.NewNop())
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestRun_Cancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := Run(ctx, []string{"sh", "-c", "sleep 5"}, Options{}, zap.NewNop())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRun_Dir(t *testing.T) {
	requireShell(t)

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	var stdout bytes.Buffer
	opts := Options{Dir: dir, ShowOutput: true, Stdout: &stdout}
	require.NoError(t, Run(context.Background(), []string{"sh", "-c", "pwd -P"}, opts, zap.NewNop()))
	assert.Equal(t, dir+"\n", stdout.String())
}

func TestRun_Errors(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, Options{}, zap.NewNop()))
	assert.Error(t, Run(context.Background(), []string{"/does/not/exist"}, Options{}, zap.NewNop()))
}

func TestResolve(t *testing.T) {
	requireShell(t)

	path, err := Resolve("sh")
	require.NoError(t, err)
	assert.NotEmpty(t, path)

	_, err = Resolve("no-such-command-here")
	assert.Error(t, err)
}
