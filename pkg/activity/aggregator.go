package activity

import (
	"sort"
	"time"
)

// aggregator folds records into a Summary. A request resumed into a new
// conversation file is logged again under the same key, so keys already
// counted are skipped.
type aggregator struct {
	summary  Summary
	models   map[string]*ModelStats
	sessions map[string]struct{}
	seen     map[string]struct{}
}

func newAggregator(since, until time.Time) *aggregator {
	return &aggregator{
		summary: Summary{
			Since:  since,
			Until:  until,
			Models: []ModelStats{},
		},
		models:   make(map[string]*ModelStats),
		sessions: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// add counts rec unless its key was already counted.
func (a *aggregator) add(rec record) {
	if rec.key != "" {
		if _, dup := a.seen[rec.key]; dup {
			return
		}
		a.seen[rec.key] = struct{}{}
	}

	s := &a.summary
	s.Requests++
	s.Tokens.add(rec.tokens)

	if s.FirstSeen.IsZero() || rec.at.Before(s.FirstSeen) {
		s.FirstSeen = rec.at
	}
	if rec.at.After(s.LastSeen) {
		s.LastSeen = rec.at
	}

	if rec.sessionID != "" {
		a.sessions[rec.sessionID] = struct{}{}
	}

	m, ok := a.models[rec.model]
	if !ok {
		m = &ModelStats{Model: rec.model}
		a.models[rec.model] = m
	}
	m.Requests++
	m.Tokens.add(rec.tokens)
}

// result returns the summary with models ordered by total tokens.
func (a *aggregator) result(files int) *Summary {
	s := a.summary
	s.Files = files
	s.Sessions = len(a.sessions)

	s.Models = make([]ModelStats, 0, len(a.models))
	for _, m := range a.models {
		s.Models = append(s.Models, *m)
	}
	sort.Slice(s.Models, func(i, j int) bool {
		ti, tj := s.Models[i].Tokens.Total(), s.Models[j].Tokens.Total()
		if ti != tj {
			return ti > tj
		}
		return s.Models[i].Model < s.Models[j].Model
	})

	return &s
}
