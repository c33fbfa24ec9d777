package coord

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReader(t *testing.T) (*Reader, string) {
	t.Helper()
	dir := t.TempDir()
	return NewReader(dir, slog.New(slog.NewTextHandler(io.Discard, nil))), dir
}

func write(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestAbsentFilesDegradeToNil(t *testing.T) {
	r, _ := newReader(t)

	assert.Nil(t, r.Leaderboard(context.Background()))
	assert.Nil(t, r.Board(context.Background()))
	assert.Nil(t, r.Decisions(context.Background()))
	assert.Nil(t, r.Genomes(context.Background()))
}

func TestCanceledContextDegradesToNil(t *testing.T) {
	r, dir := newReader(t)
	write(t, dir, "leaderboard.json", `{"a": 1}`)
	write(t, dir, "board.json", `[]`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, r.Leaderboard(ctx))
	assert.Nil(t, r.Board(ctx))
	assert.Nil(t, r.Decisions(ctx))
	assert.Nil(t, r.Genomes(ctx))
}

func TestLeaderboard(t *testing.T) {
	r, dir := newReader(t)
	write(t, dir, "leaderboard.json", `{"claude_builder_20250105_143000": 42, "gmn_run": 7}`)

	points := r.Leaderboard(context.Background())
	require.NotNil(t, points)
	assert.Equal(t, 42, points["claude_builder_20250105_143000"])

	write(t, dir, "leaderboard.json", `not json`)
	assert.Nil(t, r.Leaderboard(context.Background()))
}

func TestBoard(t *testing.T) {
	r, dir := newReader(t)
	write(t, dir, "board.json", `[
		{"from": "builder", "subject": "claimed task 9", "time": "2025-01-05T10:00:00Z"},
		{"from": "patcher", "time": "2025-01-05T11:30:00Z"},
		{"from": "witness"}
	]`)

	sum := r.Board(context.Background())
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.Messages)
	require.NotNil(t, sum.LastPost)
	assert.Equal(t, time.Date(2025, 1, 5, 11, 30, 0, 0, time.UTC), *sum.LastPost)
}

func TestDecisions_SkipsMalformedLines(t *testing.T) {
	r, dir := newReader(t)
	write(t, dir, "decisions.jsonl", `{"time": "2025-01-05T09:00:00Z", "action": "spawn"}
garbage line
{"time": "2025-01-05T10:00:00Z", "action": "retire"}

{"action": "no timestamp"}
`)

	sum := r.Decisions(context.Background())
	require.NotNil(t, sum)
	assert.Equal(t, 3, sum.Decisions)
	require.NotNil(t, sum.Last)
	assert.Equal(t, time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC), *sum.Last)
}

func TestGenomes_Validation(t *testing.T) {
	r, dir := newReader(t)
	write(t, dir, "genomes.yaml", `
genomes:
  - name: builder
    description: writes code
    cli: claude
  - name: patcher
  - name: builder
  - description: nameless
`)

	sum := r.Genomes(context.Background())
	require.NotNil(t, sum)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, []string{"builder", "patcher"}, sum.Names)
	require.Len(t, sum.Warnings, 2)
	assert.Contains(t, sum.Warnings[0], "duplicate genome name")
	assert.Contains(t, sum.Warnings[1], "name is required")
}
