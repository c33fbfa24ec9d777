// Package cmd wires the fleetwatch CLI. Commands are thin: they compose a
// snapshot through the engine and print it; no engine semantics live here.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentfleet/fleetwatch/internal/config"
	"github.com/agentfleet/fleetwatch/internal/snapshot"
	"github.com/agentfleet/fleetwatch/internal/style"
)

var (
	configPath string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "fleetwatch",
	Short:         "Observe a fleet of short-lived agent runs",
	Long:          "Fleetwatch correlates supervisor state files, per-run log files and the\nOS process table into one best-effort picture: which runs are alive, how\nfinished runs terminated, and rolling crash/cost analytics.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "fleetwatch.toml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of styled text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log skipped records and degraded sources")
}

// takeSnapshot loads config, composes a snapshot and returns it.
func takeSnapshot() (*snapshot.Snapshot, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		style.DisableColors()
	}

	composer := snapshot.New(cfg, snapshot.WithLogger(newLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap, err := composer.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("composing snapshot: %w", err)
	}
	return snap, nil
}

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelWarn}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
