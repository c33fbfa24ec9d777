package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Compose and print a full fleet snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := takeSnapshot()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(snap)
		}
		fmt.Print(renderSnapshot(snap))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}
