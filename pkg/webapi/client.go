package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// maxBodySize caps response bodies read into memory.
const maxBodySize = 1 << 20

// Client is the web usage strategy. It implements usage.Fetcher.
type Client struct {
	cfg    Config
	http   *http.Client
	tokens TokenSource
	logger logger.Logger
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, including its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock overrides the wall clock used for defaults and LastUpdated.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a web client reading the credential from tokens.
func New(cfg Config, tokens TokenSource, log logger.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}

	c := &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg.BrowserTLS),
		},
		tokens: tokens,
		logger: log.With("component", "webapi"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchUsageData loads the stored credential and fetches usage with it.
func (c *Client) FetchUsageData(ctx context.Context) (*usage.Snapshot, error) {
	token, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	return c.FetchWithToken(ctx, token)
}

// ResolveOrganizationID returns the first organization's identifier.
//
// Returns KindAuthenticationFailed on 401/403, KindServerError on any other
// non-2xx status, and KindNoOrganization when the list is empty.
func (c *Client) ResolveOrganizationID(ctx context.Context, token string) (string, error) {
	var orgs []organization
	if err := c.getJSON(ctx, token, "/organizations", &orgs); err != nil {
		return "", err
	}
	if len(orgs) == 0 || orgs[0].UUID == "" {
		return "", usage.ErrNoOrganization
	}

	c.logger.Debug("organization resolved", "count", len(orgs), "org", orgs[0].UUID)
	return orgs[0].UUID, nil
}

// FetchWithToken resolves the organization, then requests usage and
// overage concurrently. Only the usage request can fail the fetch.
func (c *Client) FetchWithToken(ctx context.Context, token string) (*usage.Snapshot, error) {
	orgID, err := c.ResolveOrganizationID(ctx, token)
	if err != nil {
		return nil, err
	}
	base := "/organizations/" + url.PathEscape(orgID)

	var (
		usageResp   usageResponse
		overageResp *overageResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, token, base+"/usage", &usageResp)
	})
	if c.cfg.FetchOverage {
		g.Go(func() error {
			var o overageResponse
			if err := c.getJSON(gctx, token, base+"/overage_spend_limit", &o); err != nil {
				c.logger.Debug("overage unavailable", "error", err)
				return nil
			}
			overageResp = &o
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return c.snapshot(&usageResp, overageResp), nil
}

func (c *Client) snapshot(u *usageResponse, o *overageResponse) *usage.Snapshot {
	now := c.now()

	sessionPct, sessionReset := readWindow(u.FiveHour, usage.CategorySession, now)
	weeklyPct, weeklyReset := readWindow(u.SevenDay, usage.CategoryWeekly, now)
	opusPct, _ := readWindow(u.SevenDayOpus, usage.CategoryModel, now)

	return &usage.Snapshot{
		SessionPercentage:    sessionPct,
		SessionResetTime:     sessionReset,
		WeeklyPercentage:     weeklyPct,
		WeeklyResetTime:      weeklyReset,
		WeeklyTokensUsed:     usage.ApproxTokens(weeklyPct),
		WeeklyLimit:          usage.ReferenceLimit,
		OpusWeeklyPercentage: opusPct,
		OpusWeeklyTokensUsed: usage.ApproxTokens(opusPct),
		Cost:                 overageCost(o),
		Source:               usage.SourceWeb,
		LastUpdated:          now,
		UserTimezone:         usage.LocalTimezone(),
	}
}

// readWindow returns the clamped utilization and the reset instant, falling
// back to the category default when either is missing or unparseable.
func readWindow(w *window, category usage.Category, now time.Time) (float64, time.Time) {
	reset := usage.DefaultReset(category, now)
	if w == nil {
		return 0, reset
	}

	var pct float64
	if w.Utilization != nil {
		pct = usage.Clamp(*w.Utilization)
	}
	if w.ResetsAt != nil && *w.ResetsAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, *w.ResetsAt); err == nil {
			reset = t
		}
	}
	return pct, reset
}

// overageCost returns nil unless overage is enabled and every figure is
// present.
func overageCost(o *overageResponse) *usage.Cost {
	if o == nil || !o.IsEnabled {
		return nil
	}
	if o.UsedCredits == nil || o.MonthlyCreditLimit == nil || o.Currency == nil {
		return nil
	}
	return &usage.Cost{
		Used:     *o.UsedCredits,
		Limit:    *o.MonthlyCreditLimit,
		Currency: *o.Currency,
	}
}

// getJSON performs an authenticated GET and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	SetHeaders(req, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close() // nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("request failed", "path", path, "status", resp.StatusCode, "body", truncate(string(body), 200))
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return &usage.Error{Kind: usage.KindAuthenticationFailed, Status: resp.StatusCode}
		}
		return &usage.Error{Kind: usage.KindServerError, Status: resp.StatusCode}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// SetHeaders attaches the session cookie and the browser-like headers.
func SetHeaders(req *http.Request, token string) {
	req.Header.Set("Cookie", "sessionKey="+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Origin", Origin)
	req.Header.Set("Referer", Referer)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ usage.Fetcher = (*Client)(nil)
