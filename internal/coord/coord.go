// Package coord reads the coordination layer's sibling state files:
// leaderboard points, the message board, the decision trace and the genome
// registry. All of them are foreign-owned enrichment sources: absence or
// corruption degrades the corresponding snapshot field, never the snapshot.
package coord

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Reader reads coordination files from one directory.
type Reader struct {
	dir    string
	logger *slog.Logger
}

// NewReader creates a Reader over dir. A nil logger falls back to
// slog.Default.
func NewReader(dir string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{dir: dir, logger: logger}
}

// Leaderboard returns run identity -> points from leaderboard.json, or nil
// when the file is absent or unreadable.
func (r *Reader) Leaderboard(ctx context.Context) map[string]int {
	if ctx.Err() != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(r.dir, "leaderboard.json"))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("reading leaderboard", "error", err)
		}
		return nil
	}
	var points map[string]int
	if err := json.Unmarshal(data, &points); err != nil {
		r.logger.Warn("parsing leaderboard", "error", err)
		return nil
	}
	return points
}

// boardMessage is one message board entry. Only the fields the summary
// needs are decoded.
type boardMessage struct {
	From    string    `json:"from"`
	Subject string    `json:"subject,omitempty"`
	Time    time.Time `json:"time"`
}

// BoardSummary summarizes the message board.
type BoardSummary struct {
	Messages int        `json:"messages"`
	LastPost *time.Time `json:"last_post,omitempty"`
}

// Board summarizes board.json, or returns nil when absent/unreadable.
func (r *Reader) Board(ctx context.Context) *BoardSummary {
	if ctx.Err() != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(r.dir, "board.json"))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("reading board", "error", err)
		}
		return nil
	}
	var messages []boardMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		r.logger.Warn("parsing board", "error", err)
		return nil
	}

	sum := &BoardSummary{Messages: len(messages)}
	for i := range messages {
		t := messages[i].Time
		if t.IsZero() {
			continue
		}
		if sum.LastPost == nil || t.After(*sum.LastPost) {
			last := t
			sum.LastPost = &last
		}
	}
	return sum
}

// DecisionSummary summarizes the append-only decision trace.
type DecisionSummary struct {
	Decisions int        `json:"decisions"`
	Last      *time.Time `json:"last,omitempty"`
}

// Decisions summarizes decisions.jsonl: one JSON object per line, malformed
// lines skipped. Nil when the file is absent or the context expires
// mid-scan.
func (r *Reader) Decisions(ctx context.Context) *DecisionSummary {
	if ctx.Err() != nil {
		return nil
	}
	f, err := os.Open(filepath.Join(r.dir, "decisions.jsonl"))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("reading decisions", "error", err)
		}
		return nil
	}
	defer f.Close()

	sum := &DecisionSummary{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			r.logger.Warn("decisions scan canceled", "error", ctx.Err())
			return nil
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry struct {
			Time time.Time `json:"time"`
		}
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		sum.Decisions++
		if !entry.Time.IsZero() {
			if sum.Last == nil || entry.Time.After(*sum.Last) {
				last := entry.Time
				sum.Last = &last
			}
		}
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("scanning decisions", "error", err)
	}
	return sum
}

// Genome is one registry entry.
type Genome struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	CLI         string `yaml:"cli,omitempty" json:"cli,omitempty"`
}

// GenomeSummary summarizes the genome registry.
type GenomeSummary struct {
	Count    int      `json:"count"`
	Names    []string `json:"names,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// genomeFile is the genomes.yaml document shape.
type genomeFile struct {
	Genomes []Genome `yaml:"genomes"`
}

// Genomes loads and validates genomes.yaml. Validation problems become
// warnings on the summary rather than errors; nil only when the file is
// absent or unparseable.
func (r *Reader) Genomes(ctx context.Context) *GenomeSummary {
	if ctx.Err() != nil {
		return nil
	}
	data, err := os.ReadFile(filepath.Join(r.dir, "genomes.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.Warn("reading genome registry", "error", err)
		}
		return nil
	}
	var file genomeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		r.logger.Warn("parsing genome registry", "error", err)
		return nil
	}

	sum := &GenomeSummary{}
	seen := make(map[string]bool)
	for i, g := range file.Genomes {
		if g.Name == "" {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("genome %d: name is required", i))
			continue
		}
		if seen[g.Name] {
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("duplicate genome name: %s", g.Name))
			continue
		}
		seen[g.Name] = true
		sum.Count++
		sum.Names = append(sum.Names, g.Name)
	}
	return sum
}
