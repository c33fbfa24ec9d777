// Package statefile reads supervisor state records. Each supervisor writes
// one small JSON file per CLI family recording the last spawned run; this
// engine is one of many readers and never writes.
//
// Absence of a state file is normal and means "no known active run for that
// CLI". A malformed file degrades to no record for that CLI only.
package statefile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// stateSuffix is the per-CLI state file naming convention.
const stateSuffix = ".state.json"

// lockRetryDelay paces shared-lock acquisition attempts.
const lockRetryDelay = 25 * time.Millisecond

// Record is one supervisor state record. Foreign-owned and possibly stale;
// a recorded pid is only evidence of a run if the OS confirms it.
type Record struct {
	// CLI is the tool family this supervisor manages. Filled from the
	// filename when the field is absent from the JSON body.
	CLI string `json:"cli,omitempty"`

	// PID is the last spawned process id.
	PID int `json:"pid"`

	// AgentID is the run identity the supervisor recorded at spawn time.
	AgentID string `json:"agent_id"`

	// SpawnedAt is the supervisor's own spawn timestamp.
	SpawnedAt time.Time `json:"spawned_at"`
}

// Store reads state records from a directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a Store over dir. A nil logger falls back to slog.Default.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Load returns the state record for one CLI, or (nil, nil) when the file
// does not exist.
func (s *Store) Load(ctx context.Context, cli string) (*Record, error) {
	return s.loadPath(ctx, filepath.Join(s.dir, cli+stateSuffix), cli)
}

// LoadAll returns every readable state record in the directory. Unreadable
// or malformed files are logged and skipped; a missing directory yields an
// empty slice.
func (s *Store) LoadAll(ctx context.Context) []Record {
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("listing state dir", "dir", s.dir, "error", err)
		}
		return nil
	}

	var records []Record
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, stateSuffix) {
			continue
		}
		cli := strings.TrimSuffix(name, stateSuffix)
		rec, err := s.loadPath(ctx, filepath.Join(s.dir, name), cli)
		if err != nil {
			s.logger.Warn("skipping state file", "file", name, "error", err)
			continue
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}
	return records
}

// loadPath reads one state file under a shared lock. The orchestrator writes
// under an exclusive flock; if the lock cannot be acquired before the context
// deadline the file is read anyway; a torn read is caught by the JSON parse
// and degrades to a skipped record.
func (s *Store) loadPath(ctx context.Context, path, cli string) (*Record, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("statefile: stat %s: %w", path, err)
	}

	lk := flock.New(path)
	locked, err := lk.TryRLockContext(ctx, lockRetryDelay)
	if err == nil && locked {
		defer func() { _ = lk.Unlock() }()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("statefile: reading %s: %w", path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("statefile: parsing %s: %w", path, err)
	}
	if rec.CLI == "" {
		rec.CLI = cli
	}
	return &rec, nil
}
