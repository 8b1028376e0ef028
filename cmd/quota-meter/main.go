// Package main provides the quota-meter CLI application.
//
// Quota Meter reports Claude plan usage: the rolling five-hour session
// window, the weekly window, the weekly model-specific window and extra
// usage spend. It reads usage either from the web API with a stored
// session key or by driving the interactive CLI's /usage screen.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/0xmhha/quota-meter/pkg/config"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// version is set during build time.
var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitReauth = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode returns exitReauth when the stored session key is missing or
// must be replaced.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	kind := usage.KindOf(err)
	if kind == usage.KindNoCredential || kind.RequiresReauth() {
		return exitReauth
	}
	return exitError
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	strategy   string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "quota-meter",
		Short: "Quota Meter - Claude plan usage monitor",
		Long: `Quota Meter reports Claude plan usage limits.

It shows the five-hour session window, the weekly window, the weekly
model-specific window and extra usage spend, either by calling the web
API with a stored session key (strategy "web") or by reading the
interactive CLI's /usage screen (strategy "cli").

Examples:
  # Store a session key copied from the browser
  quota-meter key set sk-ant-sid01-...

  # Show current usage
  quota-meter status

  # Live monitoring every minute
  quota-meter watch --interval 1m

  # Serve the usage API and Prometheus metrics
  quota-meter serve --addr 127.0.0.1:8787`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.strategy != "" &&
				opts.strategy != config.StrategyWeb && opts.strategy != config.StrategyCLI {
				return fmt.Errorf("%w: %q", config.ErrInvalidStrategy, opts.strategy)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.StringVar(&opts.strategy, "strategy", "", "usage strategy (web, cli); overrides the config file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newStatusCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newKeyCmd(opts),
		newServeCmd(opts),
		newActivityCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "quota-meter %s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// errUsage marks argument errors that are not worth a stack of context.
var errUsage = errors.New("invalid usage")
