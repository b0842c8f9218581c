package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctrace/internal/captor"
	"sctrace/internal/executor"
	"sctrace/internal/provider"
	"sctrace/internal/tracing"
)

var captureFunctions []string

var captureCmd = &cobra.Command{
	Use:   "capture [flags] -- COMMAND [ARGS...]",
	Short: "Run a command and capture the syscalls its functions make",
	Long: `Capture runs COMMAND and records the system calls it makes while one
of the functions given with --functions is executing. Without --functions
every syscall of the command is recorded.`,
	Example: `  sctrace capture -f main.doSomething -- ./app arg1 arg2
  sctrace capture -f main.load,main.store -S -D out -- ./app`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		binary, err := executor.Resolve(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		p, err := newKernelProvider()
		if err != nil {
			return err
		}
		defer p.Close()

		opts := captor.Options{
			Target:    tracing.TaskCommName(filepath.Base(binary)),
			Binary:    binary,
			Functions: captureFunctions,
			Interval:  settings.Interval,
			OnBatch:   logBatch,
		}
		argv := append([]string{binary}, args[1:]...)
		work := func(ctx context.Context) error {
			return executor.Run(ctx, argv, executor.Options{
				ShowOutput: settings.ShowOutput,
				ShowErrors: settings.ShowErrors,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			}, logger)
		}

		res, err := captor.Capture(ctx, p, opts, work, logger)
		if res == nil {
			return err
		}
		if err != nil {
			logger.Warn("traced command failed", zap.Error(err))
		}

		return writeResult(cmd, opts, args, res)
	},
}

func init() {
	captureCmd.Flags().SetInterspersed(false)
	captureCmd.Flags().StringSliceVarP(&captureFunctions, "functions", "f", nil, "function symbols to trace (comma separated)")
	addOutputFlags(captureCmd)
	captureCmd.Flags().BoolP("show-output", "c", false, "show the command's standard output")
	captureCmd.Flags().BoolP("show-errors", "e", false, "show the command's standard error")
}

func newKernelProvider() (*provider.KernelProvider, error) {
	p, err := provider.NewKernelProvider(provider.KernelOptions{
		RingBufferSize: settings.RingBufferSize,
		PollTimeout:    settings.PollTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("load tracing session: %w", err)
	}
	return p, nil
}
