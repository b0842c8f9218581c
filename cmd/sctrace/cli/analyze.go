package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctrace/internal/analyzer"
)

var (
	analyzeExclude   []string
	analyzeRoot      string
	analyzeBinaryDir string
	analyzeSave      bool
	analyzeFile      string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Find the functions of a Go module that its unit tests call",
	Long: `Analyze builds the test binary of every package of the Go module in
--root that has tests, and lists the module functions those tests call.
The result feeds hunt, which traces each function while its tests run.`,
	Example: `  sctrace analyze --exclude vendor/ -S
  sctrace analyze --root ../app -D /tmp/bins -S -F app-analysis.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		a := analyzer.New(analyzer.Options{
			Root:      analyzeRoot,
			Exclude:   analyzeExclude,
			BinaryDir: analyzeBinaryDir,
		}, logger)

		analysis, err := a.Run(ctx)
		if err != nil {
			return err
		}

		if !analyzeSave {
			return analysis.Write(cmd.OutOrStdout())
		}
		if err := analysis.Save(analyzeFile); err != nil {
			return err
		}
		logger.Info("analysis saved", zap.String("path", analyzeFile), zap.Int("binaries", len(analysis.Binaries)))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringSliceVarP(&analyzeExclude, "exclude", "e", nil, "skip paths containing these strings")
	analyzeCmd.Flags().StringVar(&analyzeRoot, "root", ".", "module directory holding go.mod")
	analyzeCmd.Flags().StringVarP(&analyzeBinaryDir, "directory", "D", ".sctrace", "directory for the test binaries")
	analyzeCmd.Flags().BoolVarP(&analyzeSave, "save", "S", false, "save the analysis instead of printing it")
	analyzeCmd.Flags().StringVarP(&analyzeFile, "file", "F", "sctrace-analysis.yaml", "file name of the saved analysis")
}
