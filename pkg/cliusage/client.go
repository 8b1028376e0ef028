package cliusage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/resettime"
	"github.com/0xmhha/quota-meter/pkg/supervisor"
	"github.com/0xmhha/quota-meter/pkg/termparse"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

const versionProbeTimeout = 5 * time.Second

// Client is the CLI usage strategy. It implements usage.Fetcher.
type Client struct {
	cfg      Config
	logger   logger.Logger
	start    StartFunc
	resolver *resettime.Resolver
	now      func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithStarter replaces the pseudo-terminal spawner.
func WithStarter(start StartFunc) Option {
	return func(c *Client) {
		c.start = start
	}
}

// WithClock overrides the wall clock used for reset resolution.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithResolver replaces the reset phrase resolver.
func WithResolver(r *resettime.Resolver) Option {
	return func(c *Client) {
		c.resolver = r
	}
}

// New creates a CLI client. Zero Config fields take DefaultConfig values.
func New(cfg Config, log logger.Logger, opts ...Option) *Client {
	cfg = withDefaults(cfg)
	log = log.With("component", "cliusage")

	c := &Client{
		cfg:      cfg,
		logger:   log,
		resolver: resettime.New(),
		now:      time.Now,
	}
	c.start = func(ctx context.Context, spec supervisor.Spec) (Process, error) {
		p, err := supervisor.Start(ctx, spec, log)
		if err != nil {
			return nil, err
		}
		return p, nil
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if len(cfg.Args) == 0 {
		cfg.Args = def.Args
	}
	if cfg.HardTimeout <= 0 {
		cfg.HardTimeout = def.HardTimeout
	}
	if cfg.MarkerTimeout <= 0 {
		cfg.MarkerTimeout = def.MarkerTimeout
	}
	if cfg.PrimaryMarker == "" {
		cfg.PrimaryMarker = def.PrimaryMarker
	}
	if cfg.SecondaryMarker == "" {
		cfg.SecondaryMarker = def.SecondaryMarker
	}
	if cfg.PrimaryDelay <= 0 {
		cfg.PrimaryDelay = def.PrimaryDelay
	}
	if cfg.SecondaryDelay <= 0 {
		cfg.SecondaryDelay = def.SecondaryDelay
	}
	return cfg
}

// IsAvailable reports whether the CLI is on PATH and answers --version.
// It never fails; any error reports false.
func (c *Client) IsAvailable(ctx context.Context) bool {
	path, err := exec.LookPath(c.cfg.Binary)
	if err != nil {
		c.logger.Debug("cli not found", "binary", c.cfg.Binary, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	if err := exec.CommandContext(ctx, path, "--version").Run(); err != nil { // nolint:gosec
		c.logger.Debug("cli version probe failed", "path", path, "error", err)
		return false
	}
	return true
}

// FetchUsageData runs the usage screen once and returns the parsed
// snapshot.
func (c *Client) FetchUsageData(ctx context.Context) (*usage.Snapshot, error) {
	spec := supervisor.Spec{
		Path:                c.cfg.Binary,
		Args:                c.cfg.Args,
		Dir:                 c.workDir(),
		Env:                 []string{"TERM=xterm-256color"},
		HardTimeout:         c.cfg.HardTimeout,
		AnswerCursorQueries: true,
	}

	proc, err := c.start(ctx, spec)
	if err != nil {
		c.logger.Warn("failed to start cli", "binary", spec.Path, "error", err)
		return nil, usage.NewError(usage.KindProcessSpawnFailure, err)
	}
	defer proc.Terminate() // nolint:errcheck

	c.cancelOnMarker(ctx, proc)

	res, err := proc.Wait(ctx)
	if err != nil {
		if errors.Is(err, supervisor.ErrTimeout) {
			return nil, usage.NewError(usage.KindTimeout, err)
		}
		return nil, fmt.Errorf("usage command interrupted: %w", err)
	}

	c.logger.Debug("cli finished",
		"exit_code", res.ExitCode,
		"stdout_bytes", len(res.Stdout),
		"stderr_bytes", len(res.Stderr),
		"duration", res.Duration)

	return c.interpret(res)
}

// cancelOnMarker waits for either marker and sends the cancel key after
// the marker's delay. On inner timeout or end of stream nothing is sent.
func (c *Client) cancelOnMarker(ctx context.Context, proc Process) {
	markers := supervisor.Contains(c.cfg.PrimaryMarker, c.cfg.SecondaryMarker)
	match := func(output string) int {
		return markers(termparse.StripANSI(output))
	}

	var delay time.Duration
	switch idx := proc.WaitFor(ctx, c.cfg.MarkerTimeout, match); idx {
	case 0:
		delay = c.cfg.PrimaryDelay
	case 1:
		delay = c.cfg.SecondaryDelay
	default:
		c.logger.Debug("no marker seen, waiting for exit")
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-proc.Done():
		return
	case <-ctx.Done():
		return
	}

	if err := proc.Send(supervisor.KeyEscape); err != nil {
		c.logger.Debug("failed to send cancel key", "error", err)
	}
}

// interpret classifies a finished run. Authentication markers win over
// everything else; non-empty stdout is parsed even on a non-zero exit.
func (c *Client) interpret(res *supervisor.Result) (*usage.Snapshot, error) {
	stdout := termparse.StripANSI(res.Stdout)
	stderr := strings.TrimSpace(termparse.StripANSI(res.Stderr))

	if marker, ok := authFailure(stdout + "\n" + stderr); ok {
		c.logger.Warn("cli reports authentication failure", "marker", marker)
		return nil, usage.NewError(usage.KindAuthenticationFailed, nil)
	}

	if strings.TrimSpace(stdout) == "" {
		if res.ExitCode != 0 {
			return nil, &usage.Error{Kind: usage.KindProcessError, ExitCode: res.ExitCode, Stderr: stderr}
		}
		return nil, usage.NewError(usage.KindNoOutput, nil)
	}

	if res.ExitCode != 0 {
		c.logger.Debug("cli exited non-zero with output, parsing anyway", "exit_code", res.ExitCode)
	}
	return c.Snapshot(res.Stdout), nil
}

// Snapshot parses raw captured output into a snapshot stamped now.
func (c *Client) Snapshot(raw string) *usage.Snapshot {
	now := c.now()
	parsed := termparse.Parse(raw)

	return &usage.Snapshot{
		SessionPercentage:    parsed.Session.Percentage,
		SessionResetTime:     c.resolver.ResolveAt(parsed.Session.RawResetText, usage.CategorySession, now),
		SessionResetText:     parsed.Session.ResetText,
		WeeklyPercentage:     parsed.Weekly.Percentage,
		WeeklyResetTime:      c.resolver.ResolveAt(parsed.Weekly.RawResetText, usage.CategoryWeekly, now),
		WeeklyResetText:      parsed.Weekly.ResetText,
		OpusWeeklyPercentage: parsed.Model.Percentage,
		OpusResetText:        parsed.Model.ResetText,
		Source:               usage.SourceCLI,
		LastUpdated:          now,
		UserTimezone:         usage.LocalTimezone(),
	}
}

func authFailure(output string) (string, bool) {
	lower := strings.ToLower(output)
	for _, m := range AuthFailureMarkers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}

func (c *Client) workDir() string {
	if c.cfg.Dir != "" {
		return c.cfg.Dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

var _ usage.Fetcher = (*Client)(nil)
