package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var crashesCmd = &cobra.Command{
	Use:   "crashes",
	Short: "Show crash analytics for today and the trailing week",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := takeSnapshot()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(snap.Crashes)
		}
		var b strings.Builder
		renderCrashes(&b, snap.Crashes)
		fmt.Print(b.String())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(crashesCmd)
}
