// Package analytics aggregates run, crash and cost records into
// time-windowed summaries for dashboards and alerting.
//
// Two windows apply. "Today" is an exact calendar-date match between a log
// file's modification time and now, in the configured location, not a
// rolling 24 hours, so two runs straddling local midnight land in different
// days. "This week" is a true rolling trailing 7x24 hours.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/agentfleet/fleetwatch/internal/classify"
	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/identity"
	"github.com/agentfleet/fleetwatch/internal/logdir"
	"github.com/agentfleet/fleetwatch/internal/result"
)

const week = 7 * 24 * time.Hour

// Options configures an Aggregator. Zero values take the engine defaults.
type Options struct {
	// Location is the "today" windowing zone. Nil means machine-local.
	Location *time.Location

	// TailBytes bounds tail reads for cost extraction.
	TailBytes int64

	// MaxCostFiles caps how many most-recently-modified logs feed cost
	// analytics.
	MaxCostFiles int

	// TopCosts and TopCrashes cap the ranked lists.
	TopCosts   int
	TopCrashes int
}

// Aggregator computes analytics over one scan of the log directory.
type Aggregator struct {
	classifier *classify.Classifier
	opts       Options
	logger     *slog.Logger
}

// New creates an Aggregator. A nil classifier or logger falls back to
// defaults.
func New(classifier *classify.Classifier, opts Options, logger *slog.Logger) *Aggregator {
	if classifier == nil {
		classifier = classify.New(opts.TailBytes, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.MaxCostFiles <= 0 {
		opts.MaxCostFiles = 100
	}
	if opts.TopCosts <= 0 {
		opts.TopCosts = 10
	}
	if opts.TopCrashes <= 0 {
		opts.TopCrashes = 20
	}
	return &Aggregator{classifier: classifier, opts: opts, logger: logger}
}

// CLIStats is the per-CLI slice of the crash summary.
type CLIStats struct {
	Spawns       int `json:"spawns"`
	Crashes      int `json:"crashes"`
	CrashRatePct int `json:"crash_rate_pct"`
}

// CrashAnalytics summarizes today's spawn/crash picture plus the week's
// most recent crashes.
type CrashAnalytics struct {
	SpawnsToday   int                  `json:"spawns_today"`
	CrashesToday  int                  `json:"crashes_today"`
	CrashRatePct  int                  `json:"crash_rate_pct"`
	ZeroByteToday int                  `json:"zero_byte_today"`
	PerCLI        map[string]*CLIStats `json:"per_cli,omitempty"`
	RecentCrashes []fleet.CrashRecord  `json:"recent_crashes,omitempty"`
}

// Crashes computes crash analytics over the log entries. running marks run
// IDs currently alive; live runs count as spawns but are never classified.
// Each entry may cost a tail read, so the context is checked between
// entries; expiry returns an error and no partial result.
func (a *Aggregator) Crashes(ctx context.Context, entries []logdir.Entry, running map[string]bool, now time.Time) (*CrashAnalytics, error) {
	ca := &CrashAnalytics{PerCLI: make(map[string]*CLIStats)}
	var crashes []fleet.CrashRecord

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ident := identity.Parse(e.Name, e.ModTime)
		today := a.sameDay(e.ModTime, now)

		if today {
			ca.SpawnsToday++
			a.cliStats(ca, ident.CLI).Spawns++
		}
		if running[ident.ID] {
			continue
		}

		out := a.classifier.Classify(e.Path, e.Size)
		if out.Status != fleet.StatusFailed {
			continue
		}

		if today {
			ca.CrashesToday++
			a.cliStats(ca, ident.CLI).Crashes++
			if out.CrashType == fleet.CrashZeroByte {
				ca.ZeroByteToday++
			}
		}
		if inWeek(e.ModTime, now) {
			crashes = append(crashes, fleet.CrashRecord{
				ID:           ident.ID,
				CLI:          ident.CLI,
				Genome:       ident.Genome,
				Time:         e.ModTime,
				Type:         out.CrashType,
				ErrorSnippet: out.ErrorSnippet,
			})
		}
	}

	ca.CrashRatePct = crashRate(ca.CrashesToday, ca.SpawnsToday)
	for _, stats := range ca.PerCLI {
		stats.CrashRatePct = crashRate(stats.Crashes, stats.Spawns)
	}

	// Most recent first; discovery order breaks ties.
	sort.SliceStable(crashes, func(i, j int) bool {
		return crashes[i].Time.After(crashes[j].Time)
	})
	if len(crashes) > a.opts.TopCrashes {
		crashes = crashes[:a.opts.TopCrashes]
	}
	ca.RecentCrashes = crashes

	return ca, nil
}

// CostAnalytics summarizes spend over today and the trailing week.
type CostAnalytics struct {
	TodayTotal    float64            `json:"today_total"`
	WeekTotal     float64            `json:"week_total"`
	PerModel      map[string]float64 `json:"per_model,omitempty"`
	Hourly        map[string]float64 `json:"hourly,omitempty"`
	TopEfficiency []fleet.CostRecord `json:"top_efficiency,omitempty"`
	Records       int                `json:"records"`
}

// Costs computes cost analytics from the most recently modified logs,
// bounded by MaxCostFiles to cap I/O. leaderboard supplies points for runs
// whose own result text carries none. Context expiry mid-scan returns an
// error and no partial result.
func (a *Aggregator) Costs(ctx context.Context, entries []logdir.Entry, leaderboard map[string]int, now time.Time) (*CostAnalytics, error) {
	sorted := make([]logdir.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ModTime.After(sorted[j].ModTime)
	})
	if len(sorted) > a.opts.MaxCostFiles {
		sorted = sorted[:a.opts.MaxCostFiles]
	}

	ca := &CostAnalytics{
		PerModel: make(map[string]float64),
		Hourly:   make(map[string]float64),
	}
	var ranked []fleet.CostRecord

	for _, e := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.Size == 0 {
			continue
		}
		tail, err := logdir.ReadTail(e.Path, a.opts.TailBytes)
		if err != nil {
			a.logger.Debug("skipping cost record", "path", e.Path, "error", err)
			continue
		}
		rec := result.Extract(tail)
		if rec == nil {
			continue
		}

		ident := identity.Parse(e.Name, e.ModTime)
		cr := fleet.CostRecord{
			ID:         ident.ID,
			CLI:        ident.CLI,
			Cost:       rec.CostUSD,
			DurationMS: rec.DurationMS,
			Time:       e.ModTime,
		}
		if pts := rec.Points(); pts != nil {
			cr.Points = pts
		} else if pts, ok := leaderboard[ident.ID]; ok {
			cr.Points = &pts
		}
		cr.ComputeEfficiency()
		ca.Records++

		if inWeek(e.ModTime, now) {
			ca.WeekTotal += cr.Cost
			a.addModelCosts(ca, rec, ident.CLI, cr.Cost)
		}
		if a.sameDay(e.ModTime, now) {
			ca.TodayTotal += cr.Cost
			hour := fmt.Sprintf("%02d:00", e.ModTime.In(a.opts.Location).Hour())
			ca.Hourly[hour] += cr.Cost
		}
		if cr.Efficiency != nil {
			ranked = append(ranked, cr)
		}
	}

	// Highest points-per-dollar first; stable, so discovery order breaks
	// ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].Efficiency > *ranked[j].Efficiency
	})
	if len(ranked) > a.opts.TopCosts {
		ranked = ranked[:a.opts.TopCosts]
	}
	ca.TopEfficiency = ranked

	return ca, nil
}

// TerminalRuns classifies every non-running log entry modified within the
// trailing week into a terminal AgentRun. Context expiry mid-scan returns
// an error and no partial result.
func (a *Aggregator) TerminalRuns(ctx context.Context, entries []logdir.Entry, running map[string]bool, now time.Time) ([]fleet.AgentRun, error) {
	var runs []fleet.AgentRun
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !inWeek(e.ModTime, now) {
			continue
		}
		ident := identity.Parse(e.Name, e.ModTime)
		if running[ident.ID] {
			continue
		}

		out := a.classifier.Classify(e.Path, e.Size)
		end := e.ModTime
		run := fleet.AgentRun{
			ID:        ident.ID,
			Genome:    ident.Genome,
			CLI:       ident.CLI,
			StartTime: ident.StartTime,
			EndTime:   &end,
			Status:    out.Status,
			Source:    fleet.SourceLog,
			LogPath:   e.Path,
		}
		if !ident.StartTime.IsZero() && !end.Before(ident.StartTime) {
			run.DurationMS = end.Sub(ident.StartTime).Milliseconds()
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (a *Aggregator) cliStats(ca *CrashAnalytics, cli string) *CLIStats {
	if cli == "" {
		cli = "unknown"
	}
	stats, ok := ca.PerCLI[cli]
	if !ok {
		stats = &CLIStats{}
		ca.PerCLI[cli] = stats
	}
	return stats
}

// addModelCosts books per-model spend from the result's model breakdown,
// falling back to the run's CLI bucket when the record has none.
func (a *Aggregator) addModelCosts(ca *CostAnalytics, rec *result.Record, cli string, cost float64) {
	if len(rec.ModelUsage) > 0 {
		for model, mu := range rec.ModelUsage {
			ca.PerModel[model] += mu.CostUSD
		}
		return
	}
	if cost <= 0 {
		return
	}
	if cli == "" {
		cli = "unknown"
	}
	ca.PerModel[cli] += cost
}

// sameDay reports whether t and now share a calendar date in the configured
// location.
func (a *Aggregator) sameDay(t, now time.Time) bool {
	loc := a.opts.Location
	return t.In(loc).Format(time.DateOnly) == now.In(loc).Format(time.DateOnly)
}

// inWeek reports whether t falls within the trailing 7x24h rolling window.
func inWeek(t, now time.Time) bool {
	age := now.Sub(t)
	return age >= 0 && age <= week
}

// crashRate is crashes over spawns as a rounded percentage, 0 when there
// were no spawns.
func crashRate(crashes, spawns int) int {
	if spawns == 0 {
		return 0
	}
	return int(math.Round(float64(crashes) / float64(spawns) * 100))
}
