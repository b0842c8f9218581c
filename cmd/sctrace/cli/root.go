// Package cli implements the sctrace command-line interface using Cobra.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"sctrace/internal/config"
	"sctrace/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	settings *config.Config
	logger   = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sctrace",
	Short: "Trace the system calls a function makes",
	Long: `sctrace records the system calls a process makes while selected
functions of that process are running.

Probes on the function's entry and return arm and disarm a kernel filter
that accepts syscalls from the traced command only.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New()
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
		if err := bindFlags(v, cmd.Flags()); err != nil {
			return err
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		settings = cfg

		l, err := logging.New(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = l
		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(symbolsCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(huntCmd)
}

// bindFlags binds every flag of the running command whose name matches a
// config key, so flags override file and environment values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}

	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !keys[key] {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigc:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigc)
	}()

	return ctx, cancel
}

func requireRoot() error {
	if unix.Geteuid() != 0 {
		return errors.New("sctrace loads kernel programs and must run as root")
	}
	return nil
}
