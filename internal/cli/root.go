// Package cli implements the octreport command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

// envPrefix namespaces the environment variables bound to flags, e.g.
// OCTREPORT_LOG_LEVEL for --log-level.
const envPrefix = "OCTREPORT"

// newViper returns a viper instance that resolves keys from OCTREPORT_*
// environment variables, with dashes mapped to underscores.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// newRootCmd builds the full command tree. Every call returns fresh flag
// state, so tests can run commands back to back.
func newRootCmd() *cobra.Command {
	v := newViper()

	root := &cobra.Command{
		Use:   "octreport",
		Short: "OCT retinal layer analysis and normative comparison",
		Long: `octreport compares measured retinal layer thicknesses from an OCT scan
export against a normative reference table. It prints the comparison in the
terminal, serves it over HTTP, WebSocket and gRPC health, exposes it as MCP
tools, and writes clinical PDF reports.

Every flag can also be set through an OCTREPORT_* environment variable,
e.g. OCTREPORT_LOG_LEVEL=debug.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return fmt.Errorf("binding flags: %w", err)
			}
			return setupLogging(cmd, v)
		},
	}

	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "log format: text or json (default json for serve, text otherwise)")

	root.AddCommand(
		newCompareCmd(v),
		newServeCmd(v),
		newReportCmd(v),
		newDashboardCmd(v),
		newMCPCmd(v),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "octreport %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
		},
	}
}

// setupLogging installs the default slog logger for the running command.
// serve logs JSON to stdout; everything else logs text to stderr, which keeps
// stdout free for command output and the MCP stdio transport.
func setupLogging(cmd *cobra.Command, v *viper.Viper) error {
	format := v.GetString("log-format")
	var w io.Writer = cmd.ErrOrStderr()
	if cmd.Name() == "serve" {
		w = os.Stdout
		if format == "" {
			format = "json"
		}
	}

	logger, err := newLogger(w, v.GetString("log-level"), format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// newLogger builds a slog logger writing to w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: must be text or json", format)
	}
}

// Execute runs the root command with os.Args. An interrupt cancels the
// command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}
