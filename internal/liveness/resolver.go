// Package liveness reconciles supervisor state records, log-file recency and
// the OS process table into the set of currently running agent runs.
//
// The two discovery paths are deliberately imperfect on their own: a state
// record may be stale (dead pid), and a recent log file proves only recent
// writes, not a live process. A run found through both paths is emitted once,
// and the state-record entry wins because it carries a verified pid.
package liveness

import (
	"log/slog"
	"time"

	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/identity"
	"github.com/agentfleet/fleetwatch/internal/logdir"
	"github.com/agentfleet/fleetwatch/internal/proctable"
	"github.com/agentfleet/fleetwatch/internal/statefile"
)

// DefaultWindow is how recently a log file must have been written for its
// run to count as alive absent a verified pid.
const DefaultWindow = 5 * time.Minute

// Resolver computes the running-run set.
type Resolver struct {
	procs  proctable.Table
	window time.Duration
	logger *slog.Logger
}

// NewResolver creates a Resolver. window <= 0 uses DefaultWindow; a nil
// logger falls back to slog.Default.
func NewResolver(procs proctable.Table, window time.Duration, logger *slog.Logger) *Resolver {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{procs: procs, window: window, logger: logger}
}

// Running resolves the ordered list of currently running runs: state-record
// entries first (verified pids), then unclaimed log files modified within
// the liveness window. Any single source failing is logged and skipped;
// resolution of the remaining sources always proceeds.
func (r *Resolver) Running(records []statefile.Record, entries []logdir.Entry, now time.Time) []fleet.AgentRun {
	var runs []fleet.AgentRun
	claimed := make(map[string]bool)

	for _, rec := range records {
		run, ok := r.fromStateRecord(rec, entries, now)
		if !ok {
			continue
		}
		if claimed[run.ID] {
			continue
		}
		claimed[run.ID] = true
		runs = append(runs, run)
	}

	for _, e := range entries {
		if now.Sub(e.ModTime) > r.window || e.ModTime.After(now.Add(time.Minute)) {
			continue
		}
		ident := identity.Parse(e.Name, e.ModTime)
		if claimed[ident.ID] {
			// Already discovered through a state record; that entry
			// carries the verified pid and wins.
			continue
		}
		claimed[ident.ID] = true

		run := fleet.AgentRun{
			ID:        ident.ID,
			Genome:    ident.Genome,
			CLI:       ident.CLI,
			StartTime: ident.StartTime,
			Status:    fleet.StatusRunning,
			Source:    fleet.SourceLog,
			LogPath:   e.Path,
		}
		if !ident.StartTime.IsZero() {
			run.DurationMS = now.Sub(ident.StartTime).Milliseconds()
		}
		runs = append(runs, run)
	}

	return runs
}

// fromStateRecord verifies one supervisor record against the process table.
// A dead or unverifiable pid is not evidence of a running process.
func (r *Resolver) fromStateRecord(rec statefile.Record, entries []logdir.Entry, now time.Time) (fleet.AgentRun, bool) {
	if rec.PID <= 0 || rec.AgentID == "" {
		return fleet.AgentRun{}, false
	}

	alive, err := r.procs.Alive(rec.PID)
	if err != nil {
		r.logger.Warn("process table query failed", "cli", rec.CLI, "pid", rec.PID, "error", err)
		return fleet.AgentRun{}, false
	}
	if !alive {
		// Stale record: the supervisor's last spawn has already exited.
		return fleet.AgentRun{}, false
	}

	ident := identity.Parse(rec.AgentID, rec.SpawnedAt)

	start := rec.SpawnedAt
	// The kernel's start time for the verified pid is more accurate than
	// the supervisor's own timestamp.
	if st, err := r.procs.StartTime(rec.PID); err == nil && !st.IsZero() {
		start = st
	}

	pid := rec.PID
	run := fleet.AgentRun{
		ID:        ident.ID,
		Genome:    ident.Genome,
		CLI:       rec.CLI,
		PID:       &pid,
		StartTime: start,
		Status:    fleet.StatusRunning,
		Source:    fleet.SourceState,
	}
	if run.CLI == "" {
		run.CLI = ident.CLI
	}
	if !start.IsZero() {
		run.DurationMS = now.Sub(start).Milliseconds()
	}

	for _, e := range entries {
		if identity.Parse(e.Name, e.ModTime).ID == run.ID {
			run.LogPath = e.Path
			break
		}
	}

	return run, true
}
