package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctrace/internal/analyzer"
	"sctrace/internal/captor"
	"sctrace/internal/executor"
	"sctrace/internal/provider"
	"sctrace/internal/tracing"
)

var huntFile string

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Capture the syscalls of every function listed by analyze",
	Long: `Hunt reads the file written by analyze and, for every function it
lists, runs the test binary that calls it and records the system calls the
function makes.`,
	Example: `  sctrace hunt -F sctrace-analysis.yaml
  sctrace hunt -F sctrace-analysis.yaml -S -D output`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireRoot(); err != nil {
			return err
		}

		analysis, err := analyzer.Load(huntFile)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		return hunt(ctx, cmd, analysis, func() (provider.Provider, error) {
			return newKernelProvider()
		})
	},
}

func init() {
	huntCmd.Flags().StringVarP(&huntFile, "file", "F", "sctrace-analysis.yaml", "analysis written by analyze")
	addOutputFlags(huntCmd)
	huntCmd.Flags().BoolP("show-output", "c", false, "show the test binary's standard output")
	huntCmd.Flags().BoolP("show-errors", "e", false, "show the test binary's standard error")
}

// hunt captures each symbol of the analysis in its own session, opened
// through open, while the test binary holding it runs.
func hunt(ctx context.Context, cmd *cobra.Command, analysis *analyzer.Analysis, open func() (provider.Provider, error)) error {
	for _, bin := range analysis.Binaries {
		logger.Info("hunting", zap.String("binary", bin.Path), zap.Int("symbols", len(bin.Symbols)))

		for _, symbol := range bin.Symbols {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := huntSymbol(ctx, cmd, bin.Path, symbol, open); err != nil {
				return err
			}
		}
	}
	return nil
}

func huntSymbol(ctx context.Context, cmd *cobra.Command, binary, symbol string, open func() (provider.Provider, error)) error {
	p, err := open()
	if err != nil {
		return err
	}
	defer p.Close()

	opts := captor.Options{
		Target:    tracing.TaskCommName(filepath.Base(binary)),
		Binary:    binary,
		Functions: []string{symbol},
		Interval:  settings.Interval,
		OnBatch:   logBatch,
	}
	argv := []string{binary}
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
		logger.Warn("tests failed", zap.String("binary", binary), zap.Error(err))
	}
	return writeResult(cmd, opts, argv, res)
}
