package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show spend totals, per-model breakdown and efficiency ranking",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := takeSnapshot()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(snap.Costs)
		}
		var b strings.Builder
		renderCosts(&b, snap.Costs)
		fmt.Print(b.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(costsCmd)
}
