// Package identity parses agent run identities out of log file names.
//
// Parsing is pure and total: no I/O, no errors, no panics. A name that
// matches neither grammar degrades to a bare-ID identity with every other
// field empty, so callers never have to special-case bad input.
package identity

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Identity is the structured identity of one agent run.
type Identity struct {
	// ID is the log file base name without its extension. Always set.
	ID string

	// Genome is the role/template identifier. Empty when unparseable.
	Genome string

	// CLI is the tool family name. Empty when unknown.
	CLI string

	// StartTime is the run's start time. Zero when no grammar matched.
	StartTime time.Time
}

// labCLIs maps lab filename prefixes to CLI family names.
var labCLIs = map[string]string{
	"CLD": "claude",
	"CDX": "codex",
	"GMN": "gemini",
	"OPC": "opencode",
	"AMP": "amp",
}

var (
	// <LAB>-<ROLE>-<HH:MM>.<DD>.<MM>.<LAB>  e.g. CLD-builder-14:30.05.03.CLD
	labRegex = regexp.MustCompile(`^([A-Z]{2,5})-([A-Za-z][A-Za-z0-9-]*)-(\d{2}):(\d{2})\.(\d{2})\.(\d{2})\.([A-Z]{2,5})$`)

	// <genome>_<YYYYMMDD>_<HHMMSS>  e.g. claude_builder_20250105_143000
	legacyRegex = regexp.MustCompile(`^(.+)_(\d{8})_(\d{6})$`)
)

// Parse turns a log file base name plus its modification time into an
// Identity. The modification time supplies the year for the lab grammar
// (the filename omits it) and the location for all parsed timestamps.
func Parse(base string, mtime time.Time) Identity {
	id := strings.TrimSuffix(base, ".log")
	if i := parseLab(id, mtime); i != nil {
		return *i
	}
	if i := parseLegacy(id, mtime); i != nil {
		return *i
	}
	return Identity{ID: id}
}

func parseLab(id string, mtime time.Time) *Identity {
	m := labRegex.FindStringSubmatch(id)
	if m == nil {
		return nil
	}
	// The lab token appears at both ends of the name; a mismatch means the
	// name is not this grammar.
	if m[1] != m[7] {
		return nil
	}

	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])
	day, _ := strconv.Atoi(m[5])
	month, _ := strconv.Atoi(m[6])
	if hour > 23 || minute > 59 || day < 1 || day > 31 || month < 1 || month > 12 {
		return nil
	}

	loc := mtime.Location()
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(mtime.Year(), time.Month(month), day, hour, minute, 0, 0, loc)
	// time.Date normalizes impossible calendar dates (Feb 31 becomes early
	// March); such a name carries no real start time.
	if start.Day() != day || start.Month() != time.Month(month) {
		return nil
	}

	// The filename carries no year. A file written in early January from a
	// late-December run would otherwise parse a start time in the future.
	if start.After(mtime.Add(24 * time.Hour)) {
		start = start.AddDate(-1, 0, 0)
	}

	return &Identity{
		ID:        id,
		Genome:    m[2],
		CLI:       labCLIs[m[1]],
		StartTime: start,
	}
}

func parseLegacy(id string, mtime time.Time) *Identity {
	m := legacyRegex.FindStringSubmatch(id)
	if m == nil {
		return nil
	}

	loc := mtime.Location()
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("20060102_150405", m[2]+"_"+m[3], loc)
	if err != nil {
		return nil
	}

	genome := m[1]
	cli := genome
	if i := strings.Index(genome, "_"); i > 0 {
		cli = genome[:i]
	}

	return &Identity{
		ID:        id,
		Genome:    genome,
		CLI:       cli,
		StartTime: start,
	}
}
