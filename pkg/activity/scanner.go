package activity

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/0xmhha/quota-meter/pkg/logger"
)

// scanner implements the Scanner interface.
type scanner struct {
	dirs        []string
	concurrency int
	maxFileSize int64
	logger      logger.Logger
	now         func() time.Time
}

// New creates a new Scanner.
//
// Parameters:
//   - cfg: Scanner configuration
//   - log: Logger instance
//
// Returns a configured Scanner.
func New(cfg Config, log logger.Logger) Scanner {
	return newScanner(cfg, log)
}

func newScanner(cfg Config, log logger.Logger) *scanner {
	dirs := cfg.Dirs
	if len(dirs) == 0 {
		dirs = DefaultDirs()
	}
	expanded := make([]string, 0, len(dirs))
	for _, d := range dirs {
		expanded = append(expanded, expandHome(d))
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}

	return &scanner{
		dirs:        expanded,
		concurrency: cfg.Concurrency,
		maxFileSize: cfg.MaxFileSize,
		logger:      log.With("component", "activity"),
		now:         time.Now,
	}
}

// Scan implements Scanner.Scan.
func (s *scanner) Scan(ctx context.Context, since time.Time) (*Summary, error) {
	until := s.now()

	files, err := s.discover(since)
	if err != nil {
		return nil, err
	}

	// Files are parsed concurrently; results are folded in path order so
	// the first copy of a resumed request is the one counted.
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	results := make([][]record, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, perr := s.parseFile(f, since)
			if perr != nil {
				s.logger.Warn("failed to read log", "path", f.path, "error", perr)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := newAggregator(since, until)
	for _, recs := range results {
		for _, rec := range recs {
			agg.add(rec)
		}
	}

	summary := agg.result(len(files))
	s.logger.Debug("activity scanned",
		"files", summary.Files,
		"requests", summary.Requests,
		"tokens", summary.Tokens.Total())
	return summary, nil
}
