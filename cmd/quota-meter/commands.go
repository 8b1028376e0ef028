package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0xmhha/quota-meter/pkg/display"
	"github.com/0xmhha/quota-meter/pkg/monitor"
)

// ansiClearScreen moves the cursor home and clears the terminal.
const ansiClearScreen = "\033[H\033[2J"

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var (
		format    string
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch and display current usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp()
			if err != nil {
				return err
			}

			formatter, err := a.formatter(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			snap, err := a.service.FetchUsageData(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch usage: %w", err)
			}

			if !noHistory {
				store, herr := a.openHistory()
				if herr != nil {
					a.log.Warn("history unavailable", "error", herr)
				} else {
					if _, rerr := store.Record(snap); rerr != nil {
						a.log.Warn("failed to record snapshot", "error", rerr)
					}
					a.closeHistory(store)
				}
			}

			return formatter.FormatSnapshot(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the snapshot")
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		limit  int
		prune  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded usage snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp()
			if err != nil {
				return err
			}

			formatter, err := a.formatter(format, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer a.closeHistory(store)

			if prune > 0 {
				removed, perr := store.Prune(time.Now().Add(-prune))
				if perr != nil {
					return fmt.Errorf("failed to prune history: %w", perr)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d entries\n", removed)
			}

			entries, err := store.List(limit)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}
			return formatter.FormatHistory(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "output format (table, json, simple)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum entries to show (0 for all)")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete entries older than this before listing (e.g. 720h)")
	return cmd
}

// watchCommand polls usage and redraws on every update.
type watchCommand struct {
	interval    time.Duration
	format      string
	clearScreen bool
	noHistory   bool
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	wc := &watchCommand{}
	var appendMode bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live monitoring of usage",
		Long: `Poll usage on an interval and redraw the display on every update.

Press Ctrl+C to exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wc.clearScreen = !appendMode
			return wc.execute(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&wc.interval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().StringVar(&wc.format, "format", "", "output format (table, json, simple)")
	cmd.Flags().BoolVar(&appendMode, "append", false, "append updates instead of clearing the screen")
	cmd.Flags().BoolVar(&wc.noHistory, "no-history", false, "do not record snapshots")
	return cmd
}

func (c *watchCommand) execute(parent context.Context, opts *rootOptions, out io.Writer) error {
	a, err := opts.loadApp()
	if err != nil {
		return err
	}

	formatter, err := a.formatter(c.format, out)
	if err != nil {
		return err
	}

	interval := c.interval
	if interval <= 0 {
		interval = a.cfg.Monitor.Interval
	}

	var recorder monitor.Recorder
	if !c.noHistory {
		store, herr := a.openHistory()
		if herr != nil {
			a.log.Warn("history unavailable", "error", herr)
		} else {
			defer a.closeHistory(store)
			recorder = store
		}
	}

	poller, err := monitor.New(monitor.Config{Interval: interval}, a.service, recorder, a.log)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	defer func() {
		if cerr := poller.Close(); cerr != nil {
			a.log.Error("failed to close poller", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case update, ok := <-poller.Updates():
			if !ok {
				return nil
			}
			if err := c.render(out, formatter, update, interval); err != nil {
				return err
			}
		}
	}
}

// render draws one update.
func (c *watchCommand) render(out io.Writer, formatter display.Formatter, update monitor.Update, interval time.Duration) error {
	if c.clearScreen {
		fmt.Fprint(out, ansiClearScreen)
	}

	if update.Err != nil {
		fmt.Fprintf(out, "[%s] fetch failed: %v\n", update.Timestamp.Format("15:04:05"), update.Err)
		return nil
	}

	if err := formatter.FormatSnapshot(out, update.Snapshot); err != nil {
		return err
	}

	if d := update.Delta; d != (monitor.Delta{}) {
		fmt.Fprintf(out, "Change: session %+.0f%%  weekly %+.0f%%  model %+.0f%%\n", d.Session, d.Weekly, d.Model)
	}
	if c.clearScreen {
		fmt.Fprintf(out, "Next update in %s (Ctrl+C to exit)\n", interval)
	}
	return nil
}
