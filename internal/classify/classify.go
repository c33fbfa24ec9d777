// Package classify assigns terminal outcomes to agent runs that are no
// longer alive, by inspecting a bounded tail of their log files.
//
// Classification is an ordered table of (pattern, crash type) pairs
// evaluated short-circuit, so each pattern's behavior is reproducible and
// testable on its own. The zero-byte check always runs before any pattern
// scan.
package classify

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/logdir"
)

// snippetLen bounds the length of captured error evidence.
const snippetLen = 80

// Pattern maps a compiled regex to a crash type.
type Pattern struct {
	// Name identifies the pattern in logs and outcomes.
	Name string

	Regex *regexp.Regexp
	Type  fleet.CrashType
}

// Patterns is the ordered crash-evidence table. Evaluation is first match
// wins, so more specific evidence (rate limits, timeouts, refused
// connections) is checked before the generic Error: prefix and the explicit
// failure markers.
var Patterns = []Pattern{
	{"not_found", regexp.MustCompile(`(?i)not found|no such file|ENOENT`), fleet.CrashError},
	{"rate_limit", regexp.MustCompile(`(?i)rate.?limit|too many requests|overloaded`), fleet.CrashError},
	{"timeout", regexp.MustCompile(`(?i)timed?.?out|deadline exceeded`), fleet.CrashTimeout},
	{"connection_refused", regexp.MustCompile(`(?i)connection refused|ECONNREFUSED`), fleet.CrashError},
	{"auth_failed", regexp.MustCompile(`(?i)authentication failed|invalid api key|unauthorized`), fleet.CrashError},
	{"error_line", regexp.MustCompile(`(?im)^\s*Error:`), fleet.CrashError},
	{"status_failed", regexp.MustCompile(`(?i)status:\s*failed`), fleet.CrashError},
	{"exit_code", regexp.MustCompile(`(?i)exit(?:ed with)? code:?\s*[1-9]\d*`), fleet.CrashError},
}

// Outcome is the classification of one terminated run.
type Outcome struct {
	// Status is completed or failed.
	Status fleet.RunStatus `json:"status"`

	// CrashType is set only when Status is failed.
	CrashType fleet.CrashType `json:"crash_type,omitempty"`

	// ErrorSnippet is the first ~80 characters of the matched evidence.
	ErrorSnippet string `json:"error_snippet,omitempty"`

	// PatternName is the table entry that matched, for debugging.
	PatternName string `json:"pattern_name,omitempty"`
}

// Scan runs the pattern table over a log tail. Pure; first match wins.
func Scan(tail []byte) (Outcome, bool) {
	for _, p := range Patterns {
		loc := p.Regex.FindIndex(tail)
		if loc == nil {
			continue
		}
		return Outcome{
			Status:       fleet.StatusFailed,
			CrashType:    p.Type,
			ErrorSnippet: snippet(tail, loc[0]),
			PatternName:  p.Name,
		}, true
	}
	return Outcome{Status: fleet.StatusCompleted}, false
}

// snippet returns up to snippetLen characters of the matched line, starting
// at the match.
func snippet(tail []byte, start int) string {
	end := start + snippetLen
	if end > len(tail) {
		end = len(tail)
	}
	s := string(tail[start:end])
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Classifier classifies terminated runs from their log files.
type Classifier struct {
	tailBytes int64
	logger    *slog.Logger
}

// New creates a Classifier reading at most tailBytes from each log tail.
// tailBytes <= 0 uses the logdir default; a nil logger falls back to
// slog.Default.
func New(tailBytes int64, logger *slog.Logger) *Classifier {
	if tailBytes <= 0 {
		tailBytes = logdir.DefaultTailBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{tailBytes: tailBytes, logger: logger}
}

// Classify assigns a terminal outcome to the log file at path with the
// given size. A zero-byte file is a zero_byte crash with no read attempted.
// An unreadable tail degrades to completed; absence of evidence is not
// evidence of a crash.
func (c *Classifier) Classify(path string, size int64) Outcome {
	if size == 0 {
		return Outcome{
			Status:      fleet.StatusFailed,
			CrashType:   fleet.CrashZeroByte,
			PatternName: "zero_byte",
		}
	}

	tail, err := logdir.ReadTail(path, c.tailBytes)
	if err != nil {
		c.logger.Warn("reading log tail", "path", path, "error", err)
		return Outcome{Status: fleet.StatusCompleted}
	}

	out, _ := Scan(tail)
	return out
}
