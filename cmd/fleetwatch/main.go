package main

import (
	"fmt"
	"os"

	"github.com/agentfleet/fleetwatch/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fleetwatch:", err)
		os.Exit(1)
	}
}
