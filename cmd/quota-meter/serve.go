package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/quota-meter/pkg/credwatch"
	"github.com/0xmhha/quota-meter/pkg/metrics"
	"github.com/0xmhha/quota-meter/pkg/monitor"
	"github.com/0xmhha/quota-meter/pkg/server"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// serveCommand runs the HTTP API.
type serveCommand struct {
	addr      string
	poll      bool
	noHistory bool
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	sc := &serveCommand{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the usage API and Prometheus metrics",
		Long: `Serve the usage API over HTTP.

Routes:
  GET  /api/claude/usage       fetch current usage
  POST /api/claude/key         store a session key {"key": "..."}
  GET  /api/claude/key/check   {"exists": bool}
  GET  /api/claude/history     recorded snapshots
  GET  /metrics                Prometheus metrics
  GET  /healthz                liveness

With --poll, usage is also fetched in the background on the monitor
interval so metrics and history stay current without API traffic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sc.execute(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&sc.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&sc.poll, "poll", false, "poll usage in the background")
	cmd.Flags().BoolVar(&sc.noHistory, "no-history", false, "do not record snapshots")
	return cmd
}

func (c *serveCommand) execute(parent context.Context, opts *rootOptions) error {
	a, err := opts.loadApp()
	if err != nil {
		return err
	}

	addr := c.addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	m := metrics.New(metrics.DefaultNamespace)
	fetcher := metrics.Instrument(a.fetcher, a.cfg.Strategy, m, a.log)
	svc := usage.NewService(fetcher, a.creds)

	srvOpts := []server.Option{server.WithMetrics(m)}
	var recorder monitor.Recorder
	if !c.noHistory {
		store, herr := a.openHistory()
		if herr != nil {
			return herr
		}
		defer a.closeHistory(store)
		srvOpts = append(srvOpts, server.WithHistory(store))
		recorder = store
	}

	srvOpts = append(srvOpts, server.WithActivity(a.activityScanner()))
	srv := server.New(server.Config{Addr: addr}, svc, a.log, srvOpts...)

	watcher, err := credwatch.New(credwatch.Config{Path: a.creds.Path()}, a.log)
	if err != nil {
		return fmt.Errorf("failed to create credential watcher: %w", err)
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			a.log.Error("failed to close credential watcher", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := watcher.Start(ctx); err != nil {
		// The API still works; only cache invalidation on external edits
		// is lost.
		a.log.Warn("credential watcher unavailable", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		srv.WatchCredential(gctx, watcher.Events())
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case werr, ok := <-watcher.Errors():
				if !ok {
					return nil
				}
				a.log.Warn("credential watcher error", "error", werr)
			}
		}
	})

	if c.poll {
		poller, perr := monitor.New(monitor.Config{
			Interval:     a.cfg.Monitor.Interval,
			FetchTimeout: pollTimeout(a.cfg.Web.Timeout, a.cfg.CLI.HardTimeout),
		}, svc, recorder, a.log)
		if perr != nil {
			return fmt.Errorf("failed to create poller: %w", perr)
		}
		defer func() {
			if cerr := poller.Close(); cerr != nil {
				a.log.Error("failed to close poller", "error", cerr)
			}
		}()

		if err := poller.Start(gctx); err != nil {
			return fmt.Errorf("failed to start poller: %w", err)
		}

		// Drain updates; reauth failures also drop the cached key check.
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case u, ok := <-poller.Updates():
					if !ok {
						return nil
					}
					kind := usage.KindOf(u.Err)
					if u.Err != nil && (kind == usage.KindNoCredential || kind.RequiresReauth()) {
						srv.InvalidateCredential()
					}
				}
			}
		})
	}

	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	return g.Wait()
}

// pollTimeout bounds one background fetch by the slower strategy timeout
// plus headroom for organization lookup and process teardown.
func pollTimeout(web, cli time.Duration) time.Duration {
	t := web
	if cli > t {
		t = cli
	}
	return t + 15*time.Second
}
