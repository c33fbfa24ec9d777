// Package snapshot composes one consistent, best-effort picture of the
// fleet from every independent data source.
//
// Each analytics dimension runs in its own goroutine; any one of them
// failing (or timing out) leaves its field nil and adds a warning, never
// failing the snapshot. Concurrent callers share a single computation via
// singleflight, and a short-TTL cache absorbs request bursts. The cache is
// an optimization only; disabling it changes nothing but cost.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/agentfleet/fleetwatch/internal/analytics"
	"github.com/agentfleet/fleetwatch/internal/classify"
	"github.com/agentfleet/fleetwatch/internal/config"
	"github.com/agentfleet/fleetwatch/internal/coord"
	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/liveness"
	"github.com/agentfleet/fleetwatch/internal/logdir"
	"github.com/agentfleet/fleetwatch/internal/proctable"
	"github.com/agentfleet/fleetwatch/internal/statefile"
)

// SupervisorStatus pairs a supervisor's last state record with what the OS
// actually says about its pid.
type SupervisorStatus struct {
	CLI       string    `json:"cli"`
	PID       int       `json:"pid"`
	AgentID   string    `json:"agent_id"`
	SpawnedAt time.Time `json:"spawned_at,omitzero"`
	Alive     bool      `json:"alive"`
}

// Snapshot is the composed point-in-time picture of the fleet. Nil fields
// mean the corresponding source was unavailable when the snapshot was
// taken.
type Snapshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Running  []fleet.AgentRun `json:"running"`
	Finished []fleet.AgentRun `json:"finished"`

	Crashes *analytics.CrashAnalytics `json:"crashes,omitempty"`
	Costs   *analytics.CostAnalytics  `json:"costs,omitempty"`

	Supervisors []SupervisorStatus     `json:"supervisors,omitempty"`
	Board       *coord.BoardSummary    `json:"board,omitempty"`
	Decisions   *coord.DecisionSummary `json:"decisions,omitempty"`
	Genomes     *coord.GenomeSummary   `json:"genomes,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Composer builds snapshots.
type Composer struct {
	cfg    *config.Config
	logger *slog.Logger
	procs  proctable.Table
	now    func() time.Time

	states   *statefile.Store
	coord    *coord.Reader
	resolver *liveness.Resolver
	agg      *analytics.Aggregator

	group  singleflight.Group
	cached atomic.Pointer[cachedSnapshot]
}

type cachedSnapshot struct {
	snap *Snapshot
	at   time.Time
}

// Option configures a Composer.
type Option func(*Composer)

// WithLogger sets the structured logger. Default: slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// WithProcTable replaces the OS process table, for tests.
func WithProcTable(t proctable.Table) Option {
	return func(c *Composer) { c.procs = t }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

// New creates a Composer over cfg.
func New(cfg *config.Config, opts ...Option) *Composer {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Composer{
		cfg:    cfg,
		logger: slog.Default(),
		procs:  proctable.ProcTable{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.states = statefile.NewStore(cfg.StateDir, c.logger)
	c.coord = coord.NewReader(cfg.CoordDir, c.logger)
	c.resolver = liveness.NewResolver(c.procs, cfg.GetLivenessWindow(), c.logger)

	classifier := classify.New(cfg.GetTailBytes(), c.logger)
	c.agg = analytics.New(classifier, analytics.Options{
		Location:     cfg.Location(),
		TailBytes:    cfg.GetTailBytes(),
		MaxCostFiles: cfg.GetMaxCostFiles(),
		TopCosts:     cfg.GetTopCosts(),
		TopCrashes:   cfg.GetTopCrashes(),
	}, c.logger)

	return c
}

// Snapshot returns the current fleet picture. Repeated calls within the
// cache TTL share one result; concurrent calls past the TTL share one
// computation.
func (c *Composer) Snapshot(ctx context.Context) (*Snapshot, error) {
	ttl := c.cfg.GetCacheTTL()
	if ttl > 0 {
		if cached := c.cached.Load(); cached != nil && c.now().Sub(cached.at) < ttl {
			return cached.snap, nil
		}
	}

	// Compute under context.Background: singleflight reuses the first
	// caller's context, and one impatient caller must not poison the
	// result for its waiters. Per-source timeouts still bound the work.
	v, err, _ := c.group.Do("snapshot", func() (any, error) {
		snap := c.compose()
		if ttl > 0 {
			c.cached.Store(&cachedSnapshot{snap: snap, at: c.now()})
		}
		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return v.(*Snapshot), nil
}

// compose fans out every independent computation and assembles the result.
func (c *Composer) compose() *Snapshot {
	now := c.now()
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Timestamp: now,
	}

	var mu sync.Mutex
	warn := func(source string, err error) {
		c.logger.Warn("snapshot source degraded", "source", source, "error", err)
		mu.Lock()
		snap.Warnings = append(snap.Warnings, fmt.Sprintf("%s: %v", source, err))
		mu.Unlock()
	}

	// Stage 1: fetch the two shared immutable inputs concurrently.
	var (
		entries []logdir.Entry
		records []statefile.Record
		wg      sync.WaitGroup
	)
	wg.Add(2)
	go c.runTask("logdir", warn, &wg, func(context.Context) (func(), error) {
		list, err := logdir.List(c.cfg.LogDir)
		if err != nil {
			return nil, err
		}
		return func() { entries = list }, nil
	})
	go c.runTask("statefiles", warn, &wg, func(taskCtx context.Context) (func(), error) {
		recs := c.states.LoadAll(taskCtx)
		return func() { records = recs }, nil
	})
	wg.Wait()

	// Liveness feeds both the run lists and the analytics windows, so it
	// resolves before the second fan-out.
	snap.Running = c.resolver.Running(records, entries, now)
	running := make(map[string]bool, len(snap.Running))
	for _, r := range snap.Running {
		running[r.ID] = true
	}

	// Stage 2: every remaining dimension is independent.
	tasks := []struct {
		name string
		fn   func(context.Context) (func(), error)
	}{
		{"terminal_runs", func(taskCtx context.Context) (func(), error) {
			runs, err := c.agg.TerminalRuns(taskCtx, entries, running, now)
			if err != nil {
				return nil, err
			}
			return func() { snap.Finished = runs }, nil
		}},
		{"crash_analytics", func(taskCtx context.Context) (func(), error) {
			crashes, err := c.agg.Crashes(taskCtx, entries, running, now)
			if err != nil {
				return nil, err
			}
			return func() { snap.Crashes = crashes }, nil
		}},
		{"cost_analytics", func(taskCtx context.Context) (func(), error) {
			costs, err := c.agg.Costs(taskCtx, entries, c.coord.Leaderboard(taskCtx), now)
			if err != nil {
				return nil, err
			}
			return func() { snap.Costs = costs }, nil
		}},
		{"supervisors", func(context.Context) (func(), error) {
			statuses := c.supervisorStatuses(records)
			return func() { snap.Supervisors = statuses }, nil
		}},
		{"board", func(taskCtx context.Context) (func(), error) {
			board := c.coord.Board(taskCtx)
			return func() { snap.Board = board }, nil
		}},
		{"decisions", func(taskCtx context.Context) (func(), error) {
			decisions := c.coord.Decisions(taskCtx)
			return func() { snap.Decisions = decisions }, nil
		}},
		{"genomes", func(taskCtx context.Context) (func(), error) {
			genomes := c.coord.Genomes(taskCtx)
			return func() { snap.Genomes = genomes }, nil
		}},
	}
	wg.Add(len(tasks))
	for _, task := range tasks {
		go c.runTask(task.name, warn, &wg, task.fn)
	}
	wg.Wait()

	return snap
}

// runTask runs one snapshot task under the probe timeout, converting
// errors, panics and timeouts into warnings. The task computes its value
// and returns a commit closure; the commit runs only when the task finishes
// in time, so a task stuck in a blocking read can neither stall the
// snapshot nor write into it after the deadline. A failed or timed-out
// task leaves its field at its zero value.
func (c *Composer) runTask(name string, warn func(string, error), wg *sync.WaitGroup, fn func(context.Context) (func(), error)) {
	defer wg.Done()

	taskCtx, cancel := context.WithTimeout(context.Background(), c.cfg.GetProbeTimeout())
	defer cancel()

	type outcome struct {
		commit func()
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		commit, err := fn(taskCtx)
		done <- outcome{commit: commit, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			warn(name, out.err)
			return
		}
		if out.commit != nil {
			out.commit()
		}
	case <-taskCtx.Done():
		// The worker goroutine is abandoned; whatever it eventually
		// computes is discarded because its commit never runs.
		warn(name, taskCtx.Err())
	}
}

// supervisorStatuses verifies each state record's pid against the process
// table. A failed probe reports the supervisor as not alive.
func (c *Composer) supervisorStatuses(records []statefile.Record) []SupervisorStatus {
	statuses := make([]SupervisorStatus, 0, len(records))
	for _, rec := range records {
		status := SupervisorStatus{
			CLI:       rec.CLI,
			PID:       rec.PID,
			AgentID:   rec.AgentID,
			SpawnedAt: rec.SpawnedAt,
		}
		if rec.PID > 0 {
			alive, err := c.procs.Alive(rec.PID)
			if err != nil {
				c.logger.Warn("supervisor pid probe failed", "cli", rec.CLI, "pid", rec.PID, "error", err)
			}
			status.Alive = alive && err == nil
		}
		statuses = append(statuses, status)
	}
	return statuses
}
