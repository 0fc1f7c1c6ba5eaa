// Package cli implements the peak-mem command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/charmitro/peak-mem/internal/config"
	"github.com/charmitro/peak-mem/internal/logging"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	flagBaselineDir     string
	flagBaselineBackend string

	cfg    config.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command. Invoked with a command line
// it runs and monitors that command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "peak-mem [flags] <command> [args...]",
		Short: "Monitor peak memory usage of a command and its children",
		Long: "peak-mem runs a command, samples the memory of its whole process tree,\n" +
			"and reports the peak resident and virtual memory once it exits.\n\n" +
			"\"baseline\" and \"version\" are subcommands. To monitor a program with\n" +
			"one of those names, put it after \"--\".",
		Example: "  peak-mem -- make -j8\n" +
			"  peak-mem --threshold 512M --json ./build.sh\n" +
			"  peak-mem --save-baseline main -- go test ./...\n" +
			"  peak-mem --compare-baseline main -- go test ./...\n" +
			"  peak-mem -- version",
		Args: cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
		RunE:          runMonitor,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	// Everything after the monitored command name belongs to that command.
	root.Flags().SetInterspersed(false)

	pf := root.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default "+config.DefaultPath()+" when present)")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&flagBaselineDir, "baseline-dir", "", "Directory for baseline storage")
	pf.StringVar(&flagBaselineBackend, "baseline-backend", "", "Baseline storage backend (file, sqlite, bolt)")

	addRunFlags(root)

	root.AddCommand(
		newBaselineCmd(),
		newVersionCmd(),
	)

	return root
}

// setup loads the config file, applies the persistent flags on top of it
// and creates the logger.
func setup(cmd *cobra.Command) error {
	var err error
	cfg, err = config.Load(flagConfig)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	if f.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if f.Changed("baseline-dir") {
		cfg.Baseline.Dir = flagBaselineDir
	}
	if f.Changed("baseline-backend") {
		cfg.Baseline.Backend = flagBaselineBackend
	}
	logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	return nil
}
