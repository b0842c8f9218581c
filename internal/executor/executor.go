// Package executor runs the command being traced.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Options controls where the command runs and where its output goes.
type Options struct {
	// Dir is the working directory, empty for the current one.
	Dir        string
	ShowOutput bool
	ShowErrors bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// Resolve finds the executable argv0 refers to.
func Resolve(argv0 string) (string, error) {
	path, err := exec.LookPath(argv0)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", argv0, err)
	}
	return path, nil
}

// Run starts argv, waits for it and returns its exit error. Cancelling ctx
// kills the command.
func Run(ctx context.Context, argv []string, opts Options, logger *zap.Logger) error {
	if len(argv) == 0 {
		return errors.New("no command given")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = opts.Dir
	if opts.ShowOutput {
		cmd.Stdout = writerOr(opts.Stdout, os.Stdout)
	}
	if opts.ShowErrors {
		cmd.Stderr = writerOr(opts.Stderr, os.Stderr)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}
	logger.Debug("command started", zap.Strings("argv", argv), zap.Int("pid", cmd.Process.Pid))

	err := cmd.Wait()
	logger.Debug("command finished", zap.Int("exit_code", cmd.ProcessState.ExitCode()))
	if err != nil {
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}
