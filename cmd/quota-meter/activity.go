package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/quota-meter/pkg/activity"
)

func newActivityCmd(opts *rootOptions) *cobra.Command {
	var (
		since  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Summarize token usage from local conversation logs",
		Long: `Scan the CLI's local conversation logs and total the tokens
recorded inside a window. This works offline and needs no session key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := activity.ParseWindow(since)
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			a := &app{cfg: cfg, log: opts.newLogger(cfg)}

			formatter, err := a.formatter(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sum, err := a.activityScanner().Scan(ctx, time.Now().Add(-window))
			if err != nil {
				return fmt.Errorf("failed to scan logs: %w", err)
			}
			return formatter.FormatActivity(cmd.OutOrStdout(), sum)
		},
	}

	cmd.Flags().StringVar(&since, "since", "session", "window to total (session, week or a duration such as 24h)")
	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	return cmd
}

// activityScanner builds a log scanner from the activity settings.
func (a *app) activityScanner() activity.Scanner {
	return activity.New(activity.Config{
		Dirs:        a.cfg.Activity.Dirs,
		Concurrency: a.cfg.Activity.Concurrency,
	}, a.log)
}
