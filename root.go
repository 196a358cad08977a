package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/statetracker/internal/config"
	"github.com/tonimelisma/statetracker/pkg/tracker"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the persistent flags shared by every command.
type CLIFlags struct {
	ConfigPath  string
	StorePath   string
	MetricsAddr string
	JSON        bool
	Verbose     bool
	Quiet       bool
}

// CLIContext is built once per invocation by the root pre-run and carried
// on the command context.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. Every
// subcommand runs after it, so a missing value is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("statetracker: command context has no CLIContext")
	}

	return cc
}

// newRootCmd builds the root command with every subcommand registered.
func newRootCmd() *cobra.Command {
	flags := &CLIFlags{}

	cmd := &cobra.Command{
		Use:     "statetracker",
		Short:   "Trace which parts of a state document a consumer reads",
		Long:    "Wraps JSON, TOML or YAML state documents in tracking proxies, records read paths and reports what a change invalidates.",
		Version: version,
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd, *flags, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.StorePath, "store", "", "trace database path")
	pf.StringVar(&flags.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (watch only)")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newTraceCmd())
	cmd.AddCommand(newRelinkCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadCLIContext resolves the effective configuration from the four-layer
// override chain. Only flags the user actually set are passed on, so an
// unset flag never masks the file or the environment.
func loadCLIContext(cmd *cobra.Command, flags CLIFlags, logOut io.Writer) (*CLIContext, error) {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	if cmd.Flags().Changed("store") {
		cli.StorePath = &flags.StorePath
	}

	if cmd.Flags().Changed("metrics-addr") {
		cli.MetricsAddr = &flags.MetricsAddr
	}

	if cmd.Flags().Changed("json") {
		cli.JSON = &flags.JSON
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &CLIContext{
		Flags:  flags,
		Cfg:    resolved,
		Logger: buildLogger(resolved, flags, logOut),
	}, nil
}

// buildLogger creates the process logger. The config file sets the
// baseline level; --verbose and --quiet override it because CLI flags
// always win. The "auto" format picks text on a terminal and JSON
// otherwise.
func buildLogger(cfg *config.Resolved, flags CLIFlags, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	format := config.LogFormatAuto

	if cfg != nil {
		level = config.SlogLevel(cfg.LogLevel)
		format = cfg.LogFormat
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == config.LogFormatAuto {
		format = config.LogFormatJSON
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = config.LogFormatText
		}
	}

	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// jsonOutput reports whether results should be rendered as JSON.
func (cc *CLIContext) jsonOutput() bool {
	return cc.Cfg.Output.Format == config.OutputJSON
}

// trackerOptions returns the Wrap options every command shares. Each call
// starts a fresh scope stack.
func (cc *CLIContext) trackerOptions(extra ...tracker.Option) []tracker.Option {
	opts := []tracker.Option{
		tracker.WithLogger(cc.Logger),
		tracker.WithRevoke(cc.Cfg.Tracker.Revoke),
		tracker.WithStack(tracker.NewScopeStack(cc.Logger, cc.Cfg.Tracker.ScopePrefix)),
	}

	return append(opts, extra...)
}
