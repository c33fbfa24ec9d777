package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/agentfleet/fleetwatch/internal/analytics"
	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/snapshot"
	"github.com/agentfleet/fleetwatch/internal/style"
)

// printer formats numbers with locale-aware grouping for cost and token
// figures.
var printer = message.NewPrinter(language.English)

// formatDuration renders a millisecond duration compactly: 45s, 12m3s,
// 2h05m.
func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func statusStyle(s fleet.RunStatus) string {
	switch s {
	case fleet.StatusRunning:
		return style.Good.Render(string(s))
	case fleet.StatusFailed:
		return style.Bad.Render(string(s))
	default:
		return style.Dim.Render(string(s))
	}
}

func renderRuns(b *strings.Builder, runs []fleet.AgentRun) {
	for _, r := range runs {
		pid := "-"
		if r.PID != nil {
			pid = fmt.Sprintf("%d", *r.PID)
		}
		cli := r.CLI
		if cli == "" {
			cli = "?"
		}
		fmt.Fprintf(b, "  %-10s %-10s %-42s pid=%-7s %s\n",
			statusStyle(r.Status), cli, r.ID, pid, style.Dim.Render(formatDuration(r.DurationMS)))
	}
}

func renderCrashes(b *strings.Builder, ca *analytics.CrashAnalytics) {
	if ca == nil {
		fmt.Fprintln(b, style.Dim.Render("  crash analytics unavailable"))
		return
	}
	fmt.Fprintf(b, "  spawns today: %d   crashes: %d (%d%%)   zero-byte: %d\n",
		ca.SpawnsToday, ca.CrashesToday, ca.CrashRatePct, ca.ZeroByteToday)

	clis := make([]string, 0, len(ca.PerCLI))
	for cli := range ca.PerCLI {
		clis = append(clis, cli)
	}
	sort.Strings(clis)
	for _, cli := range clis {
		s := ca.PerCLI[cli]
		fmt.Fprintf(b, "    %-10s spawns=%-4d crashes=%-4d rate=%d%%\n", cli, s.Spawns, s.Crashes, s.CrashRatePct)
	}

	for _, crash := range ca.RecentCrashes {
		line := fmt.Sprintf("  %s  %-10s %-9s %s",
			crash.Time.Format("01-02 15:04"), crash.CLI, crash.Type, crash.ID)
		fmt.Fprintln(b, style.Bad.Render(line))
		if crash.ErrorSnippet != "" {
			fmt.Fprintf(b, "      %s\n", style.Dim.Render(crash.ErrorSnippet))
		}
	}
}

func renderCosts(b *strings.Builder, ca *analytics.CostAnalytics) {
	if ca == nil {
		fmt.Fprintln(b, style.Dim.Render("  cost analytics unavailable"))
		return
	}
	fmt.Fprintf(b, "  today: %s   week: %s   (%d result records)\n",
		printer.Sprintf("$%.2f", ca.TodayTotal), printer.Sprintf("$%.2f", ca.WeekTotal), ca.Records)

	models := make([]string, 0, len(ca.PerModel))
	for m := range ca.PerModel {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		fmt.Fprintf(b, "    %-24s %s\n", m, printer.Sprintf("$%.2f", ca.PerModel[m]))
	}

	hours := make([]string, 0, len(ca.Hourly))
	for h := range ca.Hourly {
		hours = append(hours, h)
	}
	sort.Strings(hours)
	if len(hours) > 0 {
		fmt.Fprintf(b, "  %s ", style.Dim.Render("hourly:"))
		for _, h := range hours {
			fmt.Fprintf(b, "%s=%s ", h, printer.Sprintf("$%.2f", ca.Hourly[h]))
		}
		fmt.Fprintln(b)
	}

	for i, rec := range ca.TopEfficiency {
		eff := "-"
		if rec.Efficiency != nil {
			eff = fmt.Sprintf("%.1f pts/$", *rec.Efficiency)
		}
		fmt.Fprintf(b, "  %2d. %-42s %s  %s\n", i+1, rec.ID, printer.Sprintf("$%.2f", rec.Cost), style.Good.Render(eff))
	}
}

func renderSnapshot(snap *snapshot.Snapshot) string {
	var b strings.Builder

	fmt.Fprintln(&b, style.Title.Render("Fleet snapshot"), style.Dim.Render(snap.Timestamp.Format(time.RFC3339)))

	fmt.Fprintf(&b, "\n%s\n", style.Header.Render(fmt.Sprintf("Running (%d)", len(snap.Running))))
	if len(snap.Running) == 0 {
		fmt.Fprintln(&b, style.Dim.Render("  none"))
	}
	renderRuns(&b, snap.Running)

	fmt.Fprintf(&b, "\n%s\n", style.Header.Render("Crashes"))
	renderCrashes(&b, snap.Crashes)

	fmt.Fprintf(&b, "\n%s\n", style.Header.Render("Costs"))
	renderCosts(&b, snap.Costs)

	if len(snap.Supervisors) > 0 {
		fmt.Fprintf(&b, "\n%s\n", style.Header.Render("Supervisors"))
		for _, s := range snap.Supervisors {
			state := style.Bad.Render("dead")
			if s.Alive {
				state = style.Good.Render("alive")
			}
			fmt.Fprintf(&b, "  %-10s pid=%-7d %s  %s\n", s.CLI, s.PID, state, style.Dim.Render(s.AgentID))
		}
	}

	if snap.Board != nil || snap.Decisions != nil || snap.Genomes != nil {
		fmt.Fprintf(&b, "\n%s\n", style.Header.Render("Coordination"))
		if snap.Board != nil {
			fmt.Fprintf(&b, "  board: %d messages\n", snap.Board.Messages)
		}
		if snap.Decisions != nil {
			fmt.Fprintf(&b, "  decisions: %d\n", snap.Decisions.Decisions)
		}
		if snap.Genomes != nil {
			fmt.Fprintf(&b, "  genomes: %d registered\n", snap.Genomes.Count)
			for _, w := range snap.Genomes.Warnings {
				fmt.Fprintf(&b, "    %s\n", style.Warn.Render(w))
			}
		}
	}

	for _, w := range snap.Warnings {
		fmt.Fprintf(&b, "\n%s\n", style.Warn.Render("warning: "+w))
	}

	return b.String()
}
