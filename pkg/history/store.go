package history

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Bucket names.
var (
	bucketEntries = []byte("entries") // capture time -> Entry
	bucketIDs     = []byte("ids")     // ID -> capture time (index)
)

// store implements the Store interface using BoltDB.
type store struct {
	db     *bolt.DB
	logger logger.Logger
	config Config
	now    func() time.Time

	// mu serializes key allocation so two entries never share a key.
	mu      sync.Mutex
	lastKey int64
}

// New creates a new history store.
//
// Parameters:
//   - cfg: Store configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Store
//   - Error if database cannot be opened
func New(cfg Config, log logger.Logger) (Store, error) {
	return newStore(cfg, log, time.Now)
}

func newStore(cfg Config, log logger.Logger, now func() time.Time) (*store, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}

	dbPath := expandHome(cfg.DBPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketEntries); createErr != nil {
			return fmt.Errorf("failed to create entries bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketIDs); createErr != nil {
			return fmt.Errorf("failed to create ids bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log = log.With("component", "history")
	log.Debug("history store initialized", "db_path", dbPath)

	return &store{
		db:     db,
		logger: log,
		config: cfg,
		now:    now,
	}, nil
}

// Record implements Store.Record.
func (s *store) Record(snap *usage.Snapshot) (*Entry, error) {
	if snap == nil {
		return nil, ErrNilSnapshot
	}

	captured := s.now()
	entry := &Entry{
		ID:         uuid.NewString(),
		CapturedAt: captured,
		Snapshot:   *snap,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}

	s.mu.Lock()
	keyNanos := captured.UnixNano()
	if keyNanos <= s.lastKey {
		keyNanos = s.lastKey + 1
	}
	s.lastKey = keyNanos
	s.mu.Unlock()
	key := encodeKey(keyNanos)

	if err := s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		ids := tx.Bucket(bucketIDs)

		if err := entries.Put(key, data); err != nil {
			return fmt.Errorf("failed to store entry: %w", err)
		}
		if err := ids.Put([]byte(entry.ID), key); err != nil {
			return fmt.Errorf("failed to store id index: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Debug("snapshot recorded",
		"id", entry.ID,
		"session_pct", snap.SessionPercentage,
		"weekly_pct", snap.WeeklyPercentage)

	if s.config.Retention > 0 {
		if _, err := s.Prune(captured.Add(-s.config.Retention)); err != nil {
			s.logger.Warn("failed to prune history", "error", err)
		}
	}

	return entry, nil
}

// Get implements Store.Get.
func (s *store) Get(id string) (*Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	var entry *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIDs).Get([]byte(id))
		if key == nil {
			return ErrEntryNotFound
		}
		data := tx.Bucket(bucketEntries).Get(key)
		if data == nil {
			return ErrEntryNotFound
		}

		e, err := decodeEntry(data)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Latest implements Store.Latest.
func (s *store) Latest() (*Entry, error) {
	entries, err := s.List(1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEntryNotFound
	}
	return entries[0], nil
}

// List implements Store.List.
func (s *store) List(limit int) ([]*Entry, error) {
	entries := make([]*Entry, 0, 16)

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			e, err := decodeEntry(v)
			if err != nil {
				s.logger.Warn("failed to unmarshal entry",
					"key", decodeKey(k),
					"error", err)
				continue // Skip invalid entries.
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// Prune implements Store.Prune.
func (s *store) Prune(cutoff time.Time) (int, error) {
	removed := 0
	limit := encodeKey(cutoff.UnixNano())

	err := s.db.Update(func(tx *bolt.Tx) error {
		entries := tx.Bucket(bucketEntries)
		ids := tx.Bucket(bucketIDs)

		var stale [][]byte
		c := entries.Cursor()
		for k, v := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, v = c.Next() {
			stale = append(stale, append([]byte(nil), k...))
			if e, err := decodeEntry(v); err == nil {
				if err := ids.Delete([]byte(e.ID)); err != nil {
					return fmt.Errorf("failed to delete id index: %w", err)
				}
			}
		}

		for _, k := range stale {
			if err := entries.Delete(k); err != nil {
				return fmt.Errorf("failed to delete entry: %w", err)
			}
		}
		removed = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.logger.Info("history pruned", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// Close implements Store.Close.
func (s *store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return &e, nil
}

// encodeKey encodes nanoseconds big-endian so byte order is time order.
// Pre-1970 instants are clamped to zero.
func encodeKey(nanos int64) []byte {
	if nanos < 0 {
		nanos = 0
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(nanos))
	return key
}

func decodeKey(key []byte) time.Time {
	if len(key) != 8 {
		return time.Time{}
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(key)))
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
