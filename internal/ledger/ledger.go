// Package ledger persists which orders have finished the pipeline.
// The ledger file is the single source of truth for "already done"
// across process restarts. It stays a flat JSON mapping so the
// operator can hand-edit it while the pipeline is not running.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Record is one order's completion state.
type Record struct {
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// PersistenceError reports a failed ledger write. The in-memory state
// is preserved so the operator can retry marking complete without
// re-rendering anything.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("ledger write to %s failed: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Ledger is the completion ledger for one operator's order queue.
// All access is serialized; concurrent runs against the same file are
// not supported and must be prevented by the caller.
type Ledger struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
	log     *zap.Logger
	clock   func() time.Time
}

// Load reads the ledger file at path. A missing file yields an empty
// ledger. A corrupt file also yields an empty ledger but the error is
// returned so the caller can warn the operator — corruption is never
// silently treated as "all pending" without a signal.
func Load(path string, log *zap.Logger) (*Ledger, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Ledger{
		path:    path,
		records: make(map[string]Record),
		log:     log,
		clock:   time.Now,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		log.Warn("ledger unreadable, starting empty", zap.String("path", path), zap.Error(err))
		return l, fmt.Errorf("read ledger %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &l.records); err != nil {
		l.records = make(map[string]Record)
		log.Warn("ledger corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return l, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return l, nil
}

// IsCompleted reports whether the order has been fulfilled.
func (l *Ledger) IsCompleted(orderID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.records[orderID].Completed
}

// MarkCompleted records the given orders as fulfilled. Marking an
// already-completed order is a no-op, never an error, and leaves its
// original timestamp untouched. The write is a single atomic file
// replace: after a crash the file holds either all of this call's ids
// or none of them. A failed write is retried once; on the second
// failure a *PersistenceError is returned with the marks still held
// in memory.
func (l *Ledger) MarkCompleted(orderIDs []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	now := l.clock()
	for _, id := range orderIDs {
		if id == "" {
			continue
		}
		if rec := l.records[id]; rec.Completed {
			continue
		}
		l.records[id] = Record{Completed: true, CompletedAt: now}
		changed = true
	}
	if !changed {
		return nil
	}

	if err := l.persist(); err != nil {
		l.log.Warn("ledger write failed, retrying once", zap.Error(err))
		if err = l.persist(); err != nil {
			return &PersistenceError{Path: l.path, Err: err}
		}
	}
	l.log.Info("orders marked completed", zap.Int("count", len(orderIDs)))
	return nil
}

// Flush re-persists the in-memory state. Used by the operator retry
// path after a MarkCompleted persistence failure.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.persist(); err != nil {
		return &PersistenceError{Path: l.path, Err: err}
	}
	return nil
}

// Get returns the record for an order, if tracked.
func (l *Ledger) Get(orderID string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[orderID]
	return rec, ok
}

// CompletedIDs returns the ids of all completed orders, sorted.
func (l *Ledger) CompletedIDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for id, rec := range l.records {
		if rec.Completed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// persist writes the mapping to a temp file in the ledger's directory
// and renames it into place. Rename on the same filesystem is atomic,
// so a crash mid-write can never truncate the ledger.
func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
