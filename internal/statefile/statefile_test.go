package statefile

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Absent(t *testing.T) {
	store := NewStore(t.TempDir(), discardLogger())

	rec, err := store.Load(context.Background(), "claude")
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for absent file", err)
	}
	if rec != nil {
		t.Errorf("Load() = %+v, want nil", rec)
	}
}

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	body := `{"pid": 4242, "agent_id": "claude_builder_20250105_143000", "spawned_at": "2025-01-05T14:30:00Z"}`
	if err := os.WriteFile(filepath.Join(dir, "claude.state.json"), []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(dir, discardLogger())
	rec, err := store.Load(context.Background(), "claude")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Load() = nil, want record")
	}
	if rec.PID != 4242 {
		t.Errorf("PID = %d, want 4242", rec.PID)
	}
	if rec.AgentID != "claude_builder_20250105_143000" {
		t.Errorf("AgentID = %q", rec.AgentID)
	}
	// CLI filled from the filename when the JSON body omits it.
	if rec.CLI != "claude" {
		t.Errorf("CLI = %q, want %q", rec.CLI, "claude")
	}
	want := time.Date(2025, 1, 5, 14, 30, 0, 0, time.UTC)
	if !rec.SpawnedAt.Equal(want) {
		t.Errorf("SpawnedAt = %v, want %v", rec.SpawnedAt, want)
	}
}

func TestLoadAll_SkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"claude.state.json": `{"pid": 1, "agent_id": "a"}`,
		"gemini.state.json": `{not json`,
		"codex.state.json":  `{"pid": 2, "agent_id": "b"}`,
		"readme.txt":        "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	store := NewStore(dir, discardLogger())
	records := store.LoadAll(context.Background())

	if len(records) != 2 {
		t.Fatalf("LoadAll() = %d records, want 2 (malformed skipped)", len(records))
	}
	clis := map[string]bool{}
	for _, r := range records {
		clis[r.CLI] = true
	}
	if !clis["claude"] || !clis["codex"] {
		t.Errorf("LoadAll() CLIs = %v, want claude and codex", clis)
	}
}

func TestLoadAll_MissingDir(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), discardLogger())
	if records := store.LoadAll(context.Background()); len(records) != 0 {
		t.Errorf("LoadAll() = %d records, want 0", len(records))
	}
}
