package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctrace/internal/captor"
	"sctrace/internal/procfind"
	"sctrace/internal/tracing"
)

var (
	attachPID       int
	attachName      string
	attachFunctions []string
)

var attachCmd = &cobra.Command{
	Use:   "attach (--pid PID | --name NAME) -f FUNCTIONS",
	Short: "Capture the syscalls of functions in a running process",
	Long: `Attach probes the given functions of an already running process and
records the system calls it makes while they execute, until the process
exits or sctrace is interrupted.`,
	Example: `  sctrace attach --pid 4242 -f main.handle
  sctrace attach --name myserver -f main.handle -S -D out`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		proc, err := findProcess(ctx)
		if err != nil {
			return err
		}
		logger.Info("attaching",
			zap.Int("pid", proc.PID),
			zap.String("name", proc.Name),
			zap.String("exe", proc.Exe),
		)

		p, err := newKernelProvider()
		if err != nil {
			return err
		}
		defer p.Close()

		opts := captor.Options{
			Target:    tracing.TaskCommName(proc.Name),
			Binary:    proc.Exe,
			Functions: attachFunctions,
			PID:       proc.PID,
			Interval:  settings.Interval,
			OnBatch:   logBatch,
		}
		work := func(ctx context.Context) error {
			return procfind.WaitExit(ctx, proc.PID, settings.PollTimeout)
		}

		res, err := captor.Capture(ctx, p, opts, work, logger)
		if res == nil {
			return err
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("waiting for process", zap.Error(err))
		}

		return writeResult(cmd, opts, []string{proc.Exe}, res)
	},
}

func init() {
	attachCmd.Flags().IntVarP(&attachPID, "pid", "p", 0, "PID of the process to trace")
	attachCmd.Flags().StringVarP(&attachName, "name", "n", "", "command name of the process to trace")
	attachCmd.Flags().StringSliceVarP(&attachFunctions, "functions", "f", nil, "function symbols to trace (comma separated)")
	attachCmd.MarkFlagsMutuallyExclusive("pid", "name")
	attachCmd.MarkFlagsOneRequired("pid", "name")
	attachCmd.MarkFlagRequired("functions")
	addOutputFlags(attachCmd)
}

func findProcess(ctx context.Context) (*procfind.Process, error) {
	if attachPID != 0 {
		return procfind.ByPID(ctx, attachPID)
	}

	procs, err := procfind.ByName(ctx, attachName)
	if err != nil {
		return nil, err
	}
	if len(procs) > 1 {
		pids := make([]string, 0, len(procs))
		for _, p := range procs {
			pids = append(pids, fmt.Sprint(p.PID))
		}
		return nil, fmt.Errorf("%d processes named %s (pids %s), use --pid", len(procs), attachName, strings.Join(pids, ", "))
	}
	return &procs[0], nil
}
