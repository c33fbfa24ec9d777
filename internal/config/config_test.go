package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "fleetwatch.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if cfg.LogDir != "logs" || cfg.StateDir != "state" || cfg.CoordDir != "coord" {
		t.Errorf("defaults = %q/%q/%q", cfg.LogDir, cfg.StateDir, cfg.CoordDir)
	}
	if cfg.GetLivenessWindow() != 5*time.Minute {
		t.Errorf("GetLivenessWindow() = %v, want 5m", cfg.GetLivenessWindow())
	}
	if cfg.GetMaxCostFiles() != 100 {
		t.Errorf("GetMaxCostFiles() = %d, want 100", cfg.GetMaxCostFiles())
	}
	if cfg.GetTopCosts() != 10 || cfg.GetTopCrashes() != 20 {
		t.Errorf("top caps = %d/%d, want 10/20", cfg.GetTopCosts(), cfg.GetTopCrashes())
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetwatch.toml")
	body := `
log_dir = "/var/fleet/logs"
timezone = "UTC"
liveness_window = "90s"
cache_ttl = "0"
max_cost_files = 25
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogDir != "/var/fleet/logs" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
	if cfg.StateDir != "state" {
		t.Errorf("StateDir = %q, want default preserved", cfg.StateDir)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
	if cfg.GetLivenessWindow() != 90*time.Second {
		t.Errorf("GetLivenessWindow() = %v, want 90s", cfg.GetLivenessWindow())
	}
	if cfg.GetCacheTTL() != 0 {
		t.Errorf("GetCacheTTL() = %v, want 0 (disabled)", cfg.GetCacheTTL())
	}
	if cfg.GetMaxCostFiles() != 25 {
		t.Errorf("GetMaxCostFiles() = %d, want 25", cfg.GetMaxCostFiles())
	}
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("log_dir = ["), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want parse error")
	}
}

func TestLocation_UnknownZoneFallsBack(t *testing.T) {
	cfg := &Config{Timezone: "Not/AZone"}
	if cfg.Location() != time.Local {
		t.Errorf("Location() = %v, want local fallback", cfg.Location())
	}
}
