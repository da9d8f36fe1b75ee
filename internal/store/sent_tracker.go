// Package store holds the flat-file campaign bookkeeping: the sent tracker
// and the append-only send log.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftfi/reactivation-backend/internal/model"
)

// SentTracker is the durable mapping from user ID to "already messaged in
// this campaign". Every mutation is persisted synchronously before the call
// returns, so a crash mid-batch loses at most the in-flight send.
type SentTracker struct {
	path   string
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]model.SentRecord
}

// LoadSentTracker reads the tracker file. A missing or corrupt file degrades
// to an empty tracker; load never fails.
func LoadSentTracker(path string, logger *zap.Logger) *SentTracker {
	t := &SentTracker{
		path:    path,
		logger:  logger,
		entries: make(map[string]model.SentRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("sent tracker unreadable, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return t
	}
	if err := json.Unmarshal(data, &t.entries); err != nil {
		logger.Warn("sent tracker corrupt, starting empty",
			zap.String("path", path), zap.Error(err))
		t.entries = make(map[string]model.SentRecord)
	}
	return t
}

// MarkSent records that userID was messaged under category and persists
// before returning. Re-marking overwrites the record; map semantics, no
// duplicate keys.
func (t *SentTracker) MarkSent(userID string, category model.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[userID] = model.SentRecord{
		Category: category,
		SentAt:   time.Now().UTC(),
	}
	return t.persistLocked()
}

// Contains reports whether userID has a tracker entry, for any category.
func (t *SentTracker) Contains(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[userID]
	return ok
}

// Len is the number of tracked users.
func (t *SentTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Reset clears the tracker and persists the empty state. All users become
// eligible again.
func (t *SentTracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]model.SentRecord)
	return t.persistLocked()
}

func (t *SentTracker) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0o644)
}
