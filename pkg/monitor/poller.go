package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// poller implements the Poller interface.
type poller struct {
	config   Config
	fetcher  usage.Fetcher
	recorder Recorder
	logger   logger.Logger
	now      func() time.Time

	mu       sync.RWMutex
	running  bool
	closed   bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	latest    Update
	hasLatest bool
	lastGood  *usage.Snapshot

	updates chan Update
	trigger chan struct{}
}

// New creates a new poller.
//
// Parameters:
//   - cfg: Poller configuration
//   - fetcher: Strategy to poll
//   - recorder: History sink for successes (may be nil)
//   - log: Logger instance
//
// Returns:
//   - Configured Poller
//   - ErrNilFetcher if fetcher is nil
func New(cfg Config, fetcher usage.Fetcher, recorder Recorder, log logger.Logger) (Poller, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}

	log = log.With("component", "monitor")
	log.Debug("poller created",
		"interval", cfg.Interval,
		"fetch_timeout", cfg.FetchTimeout,
		"history", recorder != nil)

	return &poller{
		config:   cfg,
		fetcher:  fetcher,
		recorder: recorder,
		logger:   log,
		now:      time.Now,
		updates:  make(chan Update, 10),
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Start implements Poller.Start.
func (p *poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrMonitorClosed
	}
	if p.running {
		return ErrMonitorRunning
	}
	p.running = true
	p.stopChan = make(chan struct{})

	p.wg.Add(1)
	go p.loop(ctx, p.stopChan)

	p.logger.Info("poller started", "interval", p.config.Interval)
	return nil
}

// Stop implements Poller.Stop.
func (p *poller) Stop() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrMonitorClosed
	}
	if !p.running {
		p.mu.Unlock()
		return ErrMonitorNotRunning
	}
	close(p.stopChan)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("poller stopped")
	return nil
}

// Refresh implements Poller.Refresh.
func (p *poller) Refresh() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Updates implements Poller.Updates.
func (p *poller) Updates() <-chan Update {
	return p.updates
}

// Latest implements Poller.Latest.
func (p *poller) Latest() (Update, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasLatest
}

// Close implements Poller.Close.
func (p *poller) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.running {
		close(p.stopChan)
		p.running = false
	}
	p.mu.Unlock()

	// The loop is the only sender, so the channel closes after it exits.
	p.wg.Wait()
	close(p.updates)

	p.logger.Debug("poller closed")
	return nil
}

func (p *poller) loop(ctx context.Context, stop <-chan struct{}) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			p.mu.Lock()
			if p.stopChan == stop && p.running {
				p.running = false
			}
			p.mu.Unlock()
			p.logger.Info("poller stopped", "reason", "context cancelled")
			return

		case <-stop:
			return

		case <-p.trigger:
			p.poll(ctx)
			ticker.Reset(p.config.Interval)

		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll runs one fetch and publishes its outcome.
func (p *poller) poll(ctx context.Context) {
	fetchCtx := ctx
	if p.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.config.FetchTimeout)
		defer cancel()
	}

	snap, err := p.fetcher.FetchUsageData(fetchCtx)
	if err == nil && snap == nil {
		err = usage.ErrNoOutput
	}

	update := Update{
		Timestamp: p.now(),
		Snapshot:  snap,
		Err:       err,
	}

	if err != nil {
		update.Snapshot = nil
		p.logger.Warn("usage fetch failed",
			"kind", usage.KindOf(err),
			"error", err)
	} else {
		p.mu.RLock()
		prev := p.lastGood
		p.mu.RUnlock()
		if prev != nil {
			update.Delta = Delta{
				Session: snap.SessionPercentage - prev.SessionPercentage,
				Weekly:  snap.WeeklyPercentage - prev.WeeklyPercentage,
				Model:   snap.OpusWeeklyPercentage - prev.OpusWeeklyPercentage,
			}
		}

		if p.recorder != nil {
			if _, recErr := p.recorder.Record(snap); recErr != nil {
				p.logger.Warn("failed to record snapshot", "error", recErr)
			}
		}

		p.logger.Debug("usage fetched",
			"session_pct", snap.SessionPercentage,
			"weekly_pct", snap.WeeklyPercentage)
	}

	p.mu.Lock()
	p.latest = update
	p.hasLatest = true
	if update.Snapshot != nil {
		p.lastGood = update.Snapshot
	}
	p.mu.Unlock()

	p.publish(update)
}

// publish delivers update, discarding the oldest queued one when full.
func (p *poller) publish(update Update) {
	for {
		select {
		case p.updates <- update:
			return
		default:
		}

		select {
		case <-p.updates:
			p.logger.Warn("updates channel full, dropping oldest update")
		default:
		}
	}
}
