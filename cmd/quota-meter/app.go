package main

import (
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/quota-meter/pkg/cliusage"
	"github.com/0xmhha/quota-meter/pkg/config"
	"github.com/0xmhha/quota-meter/pkg/credential"
	"github.com/0xmhha/quota-meter/pkg/display"
	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/usage"
	"github.com/0xmhha/quota-meter/pkg/webapi"
)

// app bundles the components every command builds from configuration.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	creds   *credential.Store
	fetcher usage.Fetcher
	service *usage.Service
}

// loadConfig loads configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(o.configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.strategy != "" {
		cfg.Strategy = o.strategy
	}
	return cfg, nil
}

// newLogger builds the logger from cfg, forcing debug level under --verbose.
func (o *rootOptions) newLogger(cfg *config.Config) logger.Logger {
	logCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Output: cfg.Logging.Output,
		Format: cfg.Logging.Format,
	}
	if o.verbose {
		logCfg.Level = "debug"
	}
	return logger.New(logCfg)
}

// loadApp loads configuration and wires the selected strategy.
func (o *rootOptions) loadApp() (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	log := o.newLogger(cfg)

	creds := credential.New(credential.Config{Path: cfg.Credential.Path}, log)

	fetcher, err := newFetcher(cfg, creds, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		creds:   creds,
		fetcher: fetcher,
		service: usage.NewService(fetcher, creds),
	}, nil
}

// newFetcher returns the strategy named by cfg.Strategy.
func newFetcher(cfg *config.Config, creds *credential.Store, log logger.Logger) (usage.Fetcher, error) {
	switch cfg.Strategy {
	case config.StrategyWeb:
		return webapi.New(webapi.Config{
			BaseURL:      cfg.Web.BaseURL,
			Timeout:      cfg.Web.Timeout,
			FetchOverage: cfg.Web.FetchOverage,
			BrowserTLS:   cfg.Web.BrowserTLS,
		}, creds, log), nil

	case config.StrategyCLI:
		return cliusage.New(cliusage.Config{
			Binary:          cfg.CLI.Binary,
			Args:            cfg.CLI.Args,
			HardTimeout:     cfg.CLI.HardTimeout,
			MarkerTimeout:   cfg.CLI.MarkerTimeout,
			PrimaryMarker:   cfg.CLI.PrimaryMarker,
			SecondaryMarker: cfg.CLI.SecondaryMarker,
			PrimaryDelay:    cfg.CLI.PrimaryDelay,
			SecondaryDelay:  cfg.CLI.SecondaryDelay,
		}, log), nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidStrategy, cfg.Strategy)
	}
}

// openHistory opens the snapshot history database.
func (a *app) openHistory() (history.Store, error) {
	store, err := history.New(history.Config{
		DBPath:    a.cfg.History.DBPath,
		Retention: a.cfg.History.Retention,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// formatter builds a display formatter for out. An empty name uses the
// configured default format.
func (a *app) formatter(name string, out io.Writer) (display.Formatter, error) {
	if name == "" {
		name = a.cfg.Display.DefaultFormat
	}
	format, err := display.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	color := a.cfg.Display.ColorEnabled
	if f, ok := out.(*os.File); ok {
		color = color && display.ColorSupported(f)
	} else {
		color = false
	}

	return display.New(display.Config{
		Format:       format,
		ColorEnabled: color,
	}), nil
}

// closeHistory closes store, logging any failure.
func (a *app) closeHistory(store history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		a.log.Error("failed to close history", "error", err)
	}
}
