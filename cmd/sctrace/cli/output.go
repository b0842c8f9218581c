package cli

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctrace/internal/bpfprog"
	"sctrace/internal/captor"
	"sctrace/internal/report"
	"sctrace/internal/syscalls"
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().BoolP("save", "S", false, "save a YAML report instead of printing syscalls")
	cmd.Flags().StringP("output-dir", "D", "output", "directory for saved reports")
	cmd.Flags().DurationP("interval", "i", 0, "log collected syscalls every interval")
	cmd.Flags().Uint32("ring-buffer-size", bpfprog.DefaultRingBufferSize, "kernel ring buffer size in bytes")
	cmd.Flags().Duration("poll-timeout", 100*time.Millisecond, "ring buffer poll timeout")
}

func logBatch(ids []uint32) {
	logger.Info("syscalls collected", zap.Int("count", len(ids)), zap.Strings("syscalls", syscalls.Unique(ids)))
}

// writeResult prints the syscalls or saves them as a report named after
// the first traced function, or the target when tracing a whole run.
func writeResult(cmd *cobra.Command, opts captor.Options, command []string, res *captor.Result) error {
	if !settings.Save {
		return syscalls.Print(cmd.OutOrStdout(), res.Syscalls)
	}

	rep := report.New(opts.Target, command, opts.Functions, res.Syscalls, res.Dropped)
	name := opts.Target
	if len(opts.Functions) > 0 {
		name = opts.Functions[0]
	}
	path, err := rep.Save(settings.OutputDir, name)
	if err != nil {
		return err
	}
	logger.Info("report saved", zap.String("path", path), zap.Int("syscalls", rep.Total))
	return nil
}
