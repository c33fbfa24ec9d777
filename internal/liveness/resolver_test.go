package liveness

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/logdir"
	"github.com/agentfleet/fleetwatch/internal/statefile"
)

// fakeTable implements proctable.Table for tests.
type fakeTable struct {
	alive      map[int]bool
	aliveErrs  map[int]error
	startTimes map[int]time.Time
}

func (f *fakeTable) Alive(pid int) (bool, error) {
	if err := f.aliveErrs[pid]; err != nil {
		return false, err
	}
	return f.alive[pid], nil
}

func (f *fakeTable) StartTime(pid int) (time.Time, error) {
	if st, ok := f.startTimes[pid]; ok {
		return st, nil
	}
	return time.Time{}, errors.New("no start time")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var now = time.Date(2025, 1, 5, 15, 0, 0, 0, time.UTC)

func TestRunning_StateRecordVerifiedAlive(t *testing.T) {
	procStart := now.Add(-10 * time.Minute)
	procs := &fakeTable{
		alive:      map[int]bool{4242: true},
		startTimes: map[int]time.Time{4242: procStart},
	}
	records := []statefile.Record{{
		CLI:       "claude",
		PID:       4242,
		AgentID:   "claude_builder_20250105_144500",
		SpawnedAt: now.Add(-16 * time.Minute),
	}}

	r := NewResolver(procs, 0, discardLogger())
	runs := r.Running(records, nil, now)

	if len(runs) != 1 {
		t.Fatalf("Running() = %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.Status != fleet.StatusRunning {
		t.Errorf("Status = %q, want running", run.Status)
	}
	if run.PID == nil || *run.PID != 4242 {
		t.Errorf("PID = %v, want 4242", run.PID)
	}
	if run.Source != fleet.SourceState {
		t.Errorf("Source = %q, want state", run.Source)
	}
	// Kernel start time preferred over the record's own timestamp.
	if !run.StartTime.Equal(procStart) {
		t.Errorf("StartTime = %v, want %v (from /proc)", run.StartTime, procStart)
	}
	if run.DurationMS != (10 * time.Minute).Milliseconds() {
		t.Errorf("DurationMS = %d, want 10 minutes", run.DurationMS)
	}
}

func TestRunning_DeadPidEmitsNothing(t *testing.T) {
	procs := &fakeTable{alive: map[int]bool{}}
	records := []statefile.Record{{CLI: "gemini", PID: 99, AgentID: "gmn_run", SpawnedAt: now}}

	r := NewResolver(procs, 0, discardLogger())
	if runs := r.Running(records, nil, now); len(runs) != 0 {
		t.Errorf("Running() = %d runs, want 0 for dead pid", len(runs))
	}
}

func TestRunning_LogRecencyPath(t *testing.T) {
	procs := &fakeTable{}
	entries := []logdir.Entry{
		{Name: "claude_builder_20250105_145800.log", Path: "/logs/claude_builder_20250105_145800.log", ModTime: now.Add(-2 * time.Minute), Size: 10},
		{Name: "gemini_patcher_20250105_120000.log", Path: "/logs/old.log", ModTime: now.Add(-3 * time.Hour), Size: 10},
	}

	r := NewResolver(procs, 5*time.Minute, discardLogger())
	runs := r.Running(nil, entries, now)

	if len(runs) != 1 {
		t.Fatalf("Running() = %d runs, want 1 (stale log excluded)", len(runs))
	}
	run := runs[0]
	if run.ID != "claude_builder_20250105_145800" {
		t.Errorf("ID = %q", run.ID)
	}
	if run.PID != nil {
		t.Errorf("PID = %v, want nil for log-recency discovery", run.PID)
	}
	if run.Source != fleet.SourceLog {
		t.Errorf("Source = %q, want log", run.Source)
	}
	if run.DurationMS != (2 * time.Minute).Milliseconds() {
		t.Errorf("DurationMS = %d, want 2 minutes", run.DurationMS)
	}
}

func TestRunning_DedupStateRecordWins(t *testing.T) {
	const agentID = "claude_builder_20250105_145500"
	procs := &fakeTable{alive: map[int]bool{7: true}}
	records := []statefile.Record{{CLI: "claude", PID: 7, AgentID: agentID, SpawnedAt: now.Add(-5 * time.Minute)}}
	entries := []logdir.Entry{
		{Name: agentID + ".log", Path: "/logs/" + agentID + ".log", ModTime: now.Add(-time.Minute), Size: 5},
	}

	r := NewResolver(procs, 5*time.Minute, discardLogger())
	runs := r.Running(records, entries, now)

	if len(runs) != 1 {
		t.Fatalf("Running() = %d runs, want exactly 1 after dedup", len(runs))
	}
	if runs[0].PID == nil || *runs[0].PID != 7 {
		t.Errorf("PID = %v, want the state record's verified pid", runs[0].PID)
	}
	if runs[0].LogPath == "" {
		t.Error("LogPath empty, want claimed log file attached")
	}
}

func TestRunning_OneQueryFailureDoesNotAbortOthers(t *testing.T) {
	procs := &fakeTable{
		alive:     map[int]bool{1: true, 3: true},
		aliveErrs: map[int]error{2: errors.New("proc query exploded")},
	}
	records := []statefile.Record{
		{CLI: "claude", PID: 1, AgentID: "run_a_20250105_140000", SpawnedAt: now},
		{CLI: "gemini", PID: 2, AgentID: "run_b_20250105_140000", SpawnedAt: now},
		{CLI: "codex", PID: 3, AgentID: "run_c_20250105_140000", SpawnedAt: now},
	}

	r := NewResolver(procs, 0, discardLogger())
	runs := r.Running(records, nil, now)

	if len(runs) != 2 {
		t.Fatalf("Running() = %d runs, want 2 (failed query skipped, others resolved)", len(runs))
	}
	for _, run := range runs {
		if run.CLI == "gemini" {
			t.Error("run with failed pid query must not be emitted")
		}
	}
}

func TestRunning_MonotonicStatusForUnchangedLog(t *testing.T) {
	// A log file whose mtime never changes must not flap back to running
	// on later resolver calls as time advances.
	procs := &fakeTable{}
	entry := logdir.Entry{
		Name:    "claude_builder_20250105_140000.log",
		ModTime: now.Add(-4 * time.Minute),
		Size:    10,
	}

	r := NewResolver(procs, 5*time.Minute, discardLogger())

	if runs := r.Running(nil, []logdir.Entry{entry}, now); len(runs) != 1 {
		t.Fatalf("first call: %d runs, want 1", len(runs))
	}
	// Later calls, same file, mtime unchanged: the run has aged out of the
	// liveness window and stays out.
	for _, later := range []time.Time{now.Add(2 * time.Minute), now.Add(time.Hour)} {
		if runs := r.Running(nil, []logdir.Entry{entry}, later); len(runs) != 0 {
			t.Errorf("at now+%v: %d running, want 0", later.Sub(now), len(runs))
		}
	}
}

func TestRunning_IncompleteRecordSkipped(t *testing.T) {
	procs := &fakeTable{alive: map[int]bool{5: true}}
	records := []statefile.Record{
		{CLI: "claude", PID: 0, AgentID: "x"},
		{CLI: "gemini", PID: 5, AgentID: ""},
	}

	r := NewResolver(procs, 0, discardLogger())
	if runs := r.Running(records, nil, now); len(runs) != 0 {
		t.Errorf("Running() = %d runs, want 0 for incomplete records", len(runs))
	}
}
