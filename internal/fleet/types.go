// Package fleet defines the shared data model for agent fleet observation:
// runs, terminal outcomes, and derived crash/cost records.
//
// Every snapshot recomputes these records fresh from the filesystem and the
// OS process table; nothing here is persisted by the engine itself.
package fleet

import "time"

// RunStatus represents the lifecycle state of an agent run.
type RunStatus string

const (
	// StatusRunning means the run's OS process is currently alive, or its
	// log file was modified within the liveness window.
	StatusRunning RunStatus = "running"

	// StatusCompleted means the run terminated with no recognized failure
	// evidence in its log tail.
	StatusCompleted RunStatus = "completed"

	// StatusFailed means the run terminated and its log matched a crash
	// pattern (or the log is zero bytes).
	StatusFailed RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
// Terminal states are monotonic: a run never goes back to running
// while its log file is unchanged.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunSource indicates which data source a run was discovered through.
type RunSource string

const (
	// SourceState means the run came from a supervisor state record with a
	// verified pid.
	SourceState RunSource = "state"

	// SourceLog means the run was discovered through log-file recency alone.
	SourceLog RunSource = "log"
)

// CrashType categorizes how a failed run terminated.
type CrashType string

const (
	// CrashZeroByte means the run produced an empty log file.
	CrashZeroByte CrashType = "zero_byte"

	// CrashTimeout means the log tail matched a timeout pattern.
	CrashTimeout CrashType = "timeout"

	// CrashError covers every other recognized failure pattern.
	CrashError CrashType = "error"
)

// AgentRun is one spawned worker invocation, reconciled from the supervisor
// state file, the log directory, and the process table.
type AgentRun struct {
	// ID is the stable identity derived from the log filename or state record.
	ID string `json:"id"`

	// Genome is the role/template identifier ("builder", "patcher", ...).
	// Empty when unparseable.
	Genome string `json:"genome,omitempty"`

	// CLI is the tool/model family that produced the run. Empty when unknown.
	CLI string `json:"cli,omitempty"`

	// PID is the OS process id when the run was discovered through a state
	// record; nil when discovered via log recency only.
	PID *int `json:"pid,omitempty"`

	// StartTime is when the run began. Zero when no grammar or record
	// yielded one.
	StartTime time.Time `json:"start_time,omitzero"`

	// EndTime is the log file's last modification time for terminal runs
	// (a proxy for process exit); nil while running.
	EndTime *time.Time `json:"end_time,omitempty"`

	// Status is running, completed, or failed.
	Status RunStatus `json:"status"`

	// Source records which discovery path produced this entry.
	Source RunSource `json:"source"`

	// LogPath is the run's append-only log file, when known.
	LogPath string `json:"log_path,omitempty"`

	// DurationMS is elapsed wall time in milliseconds, measured start to
	// now for running entries and start to EndTime for terminal ones.
	// Zero when the start time is unknown.
	DurationMS int64 `json:"duration_ms,omitempty"`
}

// CrashRecord is a derived record for one failed run.
type CrashRecord struct {
	ID           string    `json:"id"`
	CLI          string    `json:"cli,omitempty"`
	Genome       string    `json:"genome,omitempty"`
	Time         time.Time `json:"time"`
	Type         CrashType `json:"type"`
	ErrorSnippet string    `json:"error_snippet,omitempty"`
}

// CostRecord is a derived per-run cost entry.
type CostRecord struct {
	ID         string    `json:"id"`
	CLI        string    `json:"cli,omitempty"`
	Cost       float64   `json:"cost"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Points     *int      `json:"points,omitempty"`
	Time       time.Time `json:"time"`

	// Efficiency is points per currency unit. Nil unless points are present
	// and cost is positive.
	Efficiency *float64 `json:"efficiency,omitempty"`
}

// ComputeEfficiency fills Efficiency from Points and Cost.
// Cost of zero (or missing points) leaves it nil; never divides by zero.
func (c *CostRecord) ComputeEfficiency() {
	if c.Points == nil || c.Cost <= 0 {
		c.Efficiency = nil
		return
	}
	e := float64(*c.Points) / c.Cost
	c.Efficiency = &e
}
