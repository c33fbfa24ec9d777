package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentfleet/fleetwatch/internal/fleet"
	"github.com/agentfleet/fleetwatch/internal/style"
)

var runsAll bool

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List currently running agent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := takeSnapshot()
		if err != nil {
			return err
		}

		runs := snap.Running
		if runsAll {
			runs = append(append([]fleet.AgentRun{}, snap.Running...), snap.Finished...)
		}
		if jsonOutput {
			return printJSON(runs)
		}

		if len(runs) == 0 {
			fmt.Println(style.Dim.Render("no runs"))
			return nil
		}
		var b strings.Builder
		renderRuns(&b, runs)
		fmt.Print(b.String())
		return nil
	},
}

func init() {
	runsCmd.Flags().BoolVar(&runsAll, "all", false, "include finished runs from the trailing week")
	rootCmd.AddCommand(runsCmd)
}
