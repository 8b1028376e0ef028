package usage

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/semaphore"
)

// ErrEmptyCredential is reported by SaveCredential when no key is given.
var ErrEmptyCredential = errors.New("key is required")

// CredentialStore is the slice of the credential store the service needs.
type CredentialStore interface {
	Save(raw string) error
	Exists() bool
}

// SaveResult reports the outcome of SaveCredential.
type SaveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Service is the narrow interface consumed by UI collaborators: a
// credential probe, a credential setter, and a single-shot fetch.
//
// Fetches through one Service run one at a time, so a poller and request
// handlers sharing it never spawn two CLI children or race on the same
// credential.
type Service struct {
	fetcher Fetcher
	store   CredentialStore
	fetchMu *semaphore.Weighted
}

// NewService binds the selected strategy and the credential store.
func NewService(fetcher Fetcher, store CredentialStore) *Service {
	return &Service{
		fetcher: fetcher,
		store:   store,
		fetchMu: semaphore.NewWeighted(1),
	}
}

// CheckCredential reports whether a usable credential is stored.
func (s *Service) CheckCredential() bool {
	return s.store.Exists()
}

// SaveCredential stores raw as the single credential, replacing any
// previous one.
func (s *Service) SaveCredential(raw string) SaveResult {
	if strings.TrimSpace(raw) == "" {
		return SaveResult{Error: ErrEmptyCredential.Error()}
	}
	if err := s.store.Save(raw); err != nil {
		return SaveResult{Error: err.Error()}
	}
	return SaveResult{Success: true}
}

// FetchUsageData runs the configured strategy once. A call made while
// another is in flight waits for it to finish, or returns ctx's error.
func (s *Service) FetchUsageData(ctx context.Context) (*Snapshot, error) {
	if err := s.fetchMu.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.fetchMu.Release(1)

	return s.fetcher.FetchUsageData(ctx)
}
