package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sctrace/internal/profile"
)

var (
	buildDirectory string
	buildSets      []string
	buildVariants  bool
	buildSave      bool
	buildName      string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a seccomp profile from saved capture reports",
	Long: `Build reads the YAML reports saved by capture, attach and hunt from a
directory and writes a seccomp profile that allows exactly the syscalls
they recorded. Predefined syscall sets cover what a Go program or a
container runtime needs before any traced function runs.`,
	Example: `  sctrace build -D output
  sctrace build -D output --add-syscall-sets=dynamic,docker -V -S --name app.json`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return profile.ValidateSets(buildSets)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		b := profile.NewBuilder(buildVariants, logger)
		for _, set := range buildSets {
			if err := b.AddSet(set); err != nil {
				return err
			}
		}

		n, err := b.LoadDir(buildDirectory)
		if err != nil {
			return err
		}
		logger.Info("reports loaded", zap.String("directory", buildDirectory), zap.Int("reports", n))

		p := b.Profile()
		if !buildSave {
			return p.Write(cmd.OutOrStdout())
		}
		if err := p.Save(buildName); err != nil {
			return err
		}
		logger.Info("profile saved", zap.String("path", buildName), zap.Int("syscalls", len(b.Names())))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildDirectory, "directory", "D", "", "directory holding saved reports")
	buildCmd.MarkFlagRequired("directory")
	buildCmd.Flags().StringSliceVarP(&buildSets, "add-syscall-sets", "s", nil,
		fmt.Sprintf("add predefined syscall sets (%s)", strings.Join(profile.SetNames(), ", ")))
	buildCmd.Flags().BoolVarP(&buildVariants, "add-syscall-variants", "V", false, "add the variants of every syscall, such as dup2 and dup3 for dup")
	buildCmd.Flags().BoolVarP(&buildSave, "save", "S", false, "save the profile instead of printing it")
	buildCmd.Flags().StringVarP(&buildName, "name", "n", "seccomp.json", "file name of the saved profile")
}
