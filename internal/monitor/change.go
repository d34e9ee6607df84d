// Package monitor detects changes between successive news runs.
package monitor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChangeType identifies what kind of change occurred.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
)

// Change is one schedule line that appeared or disappeared since the
// previous snapshot.
type Change struct {
	Type      ChangeType `json:"type"`
	Line      string     `json:"line"`
	Timestamp time.Time  `json:"timestamp"`
}

type snapshot struct {
	Key     string    `json:"key"`
	Lines   []string  `json:"lines"`
	SavedAt time.Time `json:"saved_at"`
}

// ChangeDetector compares extracted lines against the snapshot kept for the
// same key and then replaces the snapshot.
type ChangeDetector struct {
	snapshotDir string
	now         func() time.Time
	logger      *slog.Logger
	mu          sync.Mutex
}

// NewChangeDetector creates a change detector storing snapshots in snapshotDir.
func NewChangeDetector(snapshotDir string, logger *slog.Logger) *ChangeDetector {
	return &ChangeDetector{
		snapshotDir: snapshotDir,
		now:         time.Now,
		logger:      logger.With("component", "change_detector"),
	}
}

// Detect returns the lines added and removed since the last call with key.
// The first call for a key reports every line as added.
func (cd *ChangeDetector) Detect(key string, lines []string) ([]Change, error) {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	old, err := cd.loadSnapshot(key)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	now := cd.now()
	prev := make(map[string]int, len(old))
	for _, l := range old {
		prev[l]++
	}
	var changes []Change
	for _, l := range lines {
		if prev[l] > 0 {
			prev[l]--
			continue
		}
		changes = append(changes, Change{Type: ChangeAdded, Line: l, Timestamp: now})
	}
	cur := make(map[string]int, len(lines))
	for _, l := range lines {
		cur[l]++
	}
	for _, l := range old {
		if cur[l] > 0 {
			cur[l]--
			continue
		}
		changes = append(changes, Change{Type: ChangeRemoved, Line: l, Timestamp: now})
	}

	if err := cd.saveSnapshot(key, lines, now); err != nil {
		return changes, err
	}
	if len(changes) > 0 {
		cd.logger.Info("schedule changed", "key", key, "changes", len(changes))
	}
	return changes, nil
}

func (cd *ChangeDetector) loadSnapshot(key string) ([]string, error) {
	data, err := os.ReadFile(cd.snapshotPath(key))
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap.Lines, nil
}

func (cd *ChangeDetector) saveSnapshot(key string, lines []string, at time.Time) error {
	if err := os.MkdirAll(cd.snapshotDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.Marshal(snapshot{Key: key, Lines: lines, SavedAt: at})
	if err != nil {
		return err
	}
	if err := os.WriteFile(cd.snapshotPath(key), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (cd *ChangeDetector) snapshotPath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(cd.snapshotDir, hex.EncodeToString(hash[:8])+".json")
}
