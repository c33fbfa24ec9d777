// Package result extracts the terminal result record from an agent log.
//
// Agents append one structured JSON line when they finish; the last
// syntactically valid one in the tail is authoritative for cost, token and
// timing figures. Extraction is best effort: a malformed or absent record
// is "no data", never an error.
package result

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
)

// Usage holds aggregate token counts for one run.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModelUsage breaks usage and cost down per underlying model.
type ModelUsage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Record is the structured terminal result of one run.
type Record struct {
	CostUSD    float64               `json:"total_cost_usd"`
	DurationMS int64                 `json:"duration_ms"`
	Usage      Usage                 `json:"usage"`
	ModelUsage map[string]ModelUsage `json:"model_usage,omitempty"`

	// ResultText is the free-text result content, scanned for a points
	// marker.
	ResultText string `json:"result,omitempty"`
}

// resultKeys discriminate a result record from other JSON lines in the log.
var resultKeys = []string{"total_cost_usd", "duration_ms", "usage"}

var pointsRegex = regexp.MustCompile(`(?i)points earned:?\s*(\d+)`)

// Extract returns the last valid result record in the tail, or nil when
// none parses.
func Extract(tail []byte) *Record {
	lines := bytes.Split(tail, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		if rec := parseLine(line); rec != nil {
			return rec
		}
	}
	return nil
}

// parseLine parses one candidate line. The line must be a JSON object
// carrying at least one result key; an arbitrary JSON log line is not a
// result record.
func parseLine(line []byte) *Record {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil
	}
	found := false
	for _, key := range resultKeys {
		if _, ok := raw[key]; ok {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil
	}
	return &rec
}

// Points scans the free-text result content for a "points earned: N"
// marker. Nil when absent; this is a heuristic, not a structured field.
func (r *Record) Points() *int {
	if r == nil {
		return nil
	}
	m := pointsRegex.FindStringSubmatch(r.ResultText)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
