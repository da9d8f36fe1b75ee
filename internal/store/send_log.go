package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riftfi/reactivation-backend/internal/model"
)

// SendLog is the append-only record of delivered messages, one JSON array
// per campaign. Entries are never mutated after write.
type SendLog struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSendLog creates a send log backed by path.
func NewSendLog(path string, logger *zap.Logger) *SendLog {
	return &SendLog{path: path, logger: logger}
}

// Append adds one entry and persists the whole file.
func (l *SendLog) Append(entry model.SendLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.readLocked()
	entries = append(entries, entry)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.path, data, 0o644)
}

// Tail returns the most recent n entries, oldest first.
func (l *SendLog) Tail(n int) []model.SendLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.readLocked()
	if n > 0 && len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	return entries
}

// readLocked tolerates missing and corrupt files, same policy as the
// sent tracker.
func (l *SendLog) readLocked() []model.SendLogEntry {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return []model.SendLogEntry{}
	}
	var entries []model.SendLogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Warn("send log corrupt, starting empty",
			zap.String("path", l.path), zap.Error(err))
		return []model.SendLogEntry{}
	}
	return entries
}

// WriteDryRun saves a dry-run batch to its own dated file and returns the
// path.
func (l *SendLog) WriteDryRun(entries []model.SendLogEntry, category model.Category) (string, error) {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("dry_run_%s_%s.json", category, time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
