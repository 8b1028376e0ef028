// Package webapi fetches usage from the provider's web API using the
// stored browser session credential.
//
// A fetch resolves the account's organization, then requests usage and
// overage spend concurrently. The usage request is required; the overage
// request is best effort and its failure only leaves cost data absent.
//
// Example usage:
//
//	client := webapi.New(webapi.DefaultConfig(), store, log)
//	snap, err := client.FetchUsageData(ctx)
//	if usage.KindOf(err).RequiresReauth() {
//	    // prompt for a new session key
//	}
package webapi

import "time"

// DefaultBaseURL is the provider's web API root.
const DefaultBaseURL = "https://claude.ai/api"

// Browser-like request headers.
const (
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	Origin    = "https://claude.ai"
	Referer   = "https://claude.ai/"
)

// Config contains web strategy configuration.
type Config struct {
	// BaseURL is the API root. Default: DefaultBaseURL.
	BaseURL string

	// Timeout bounds each HTTP request. Default: 15s.
	Timeout time.Duration

	// FetchOverage enables the overage spend request.
	FetchOverage bool

	// BrowserTLS dials with a Chrome TLS fingerprint.
	BrowserTLS bool
}

// DefaultConfig returns the default web configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:      DefaultBaseURL,
		Timeout:      15 * time.Second,
		FetchOverage: true,
	}
}

// TokenSource supplies the session credential. *credential.Store
// implements it.
type TokenSource interface {
	Load() (string, error)
}

// organization is one entry of GET /organizations.
type organization struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// window is one quota window of GET /organizations/{id}/usage.
type window struct {
	Utilization *float64 `json:"utilization"`
	ResetsAt    *string  `json:"resets_at"`
}

// usageResponse is GET /organizations/{id}/usage.
type usageResponse struct {
	FiveHour     *window `json:"five_hour"`
	SevenDay     *window `json:"seven_day"`
	SevenDayOpus *window `json:"seven_day_opus"`
}

// overageResponse is GET /organizations/{id}/overage_spend_limit.
type overageResponse struct {
	MonthlyCreditLimit *float64 `json:"monthly_credit_limit"`
	Currency           *string  `json:"currency"`
	UsedCredits        *float64 `json:"used_credits"`
	IsEnabled          bool     `json:"is_enabled"`
}
