package metrics

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// InstrumentedFetcher wraps a usage.Fetcher with metrics and a log line
// per fetch. Each call gets a fetch ID so its log lines can be correlated.
type InstrumentedFetcher struct {
	next     usage.Fetcher
	strategy string
	metrics  *Metrics
	logger   logger.Logger
	now      func() time.Time
}

// Instrument wraps next. strategy labels every metric it records.
func Instrument(next usage.Fetcher, strategy string, m *Metrics, log logger.Logger) *InstrumentedFetcher {
	return &InstrumentedFetcher{
		next:     next,
		strategy: strategy,
		metrics:  m,
		logger:   log.With("component", "fetch", "strategy", strategy),
		now:      time.Now,
	}
}

// FetchUsageData implements usage.Fetcher.
func (f *InstrumentedFetcher) FetchUsageData(ctx context.Context) (*usage.Snapshot, error) {
	fetchID := uuid.New().String()
	log := f.logger.With("fetch_id", fetchID)
	log.Debug("fetch started")

	start := f.now()
	snap, err := f.next.FetchUsageData(ctx)
	elapsed := f.now().Sub(start)

	outcome := OutcomeSuccess
	if err != nil {
		outcome = string(usage.KindOf(err))
		log.Warn("fetch failed",
			"kind", outcome,
			"duration", elapsed,
			"error", err)
	} else if snap != nil {
		log.Info("fetch succeeded",
			"duration", elapsed,
			"session_pct", snap.SessionPercentage,
			"weekly_pct", snap.WeeklyPercentage)
	}

	if f.metrics != nil {
		f.metrics.RecordFetch(f.strategy, outcome, elapsed.Seconds())
		if err == nil {
			f.metrics.ObserveSnapshot(snap)
		}
	}

	return snap, err
}
