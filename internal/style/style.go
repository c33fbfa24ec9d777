// Package style centralizes lipgloss styles for fleetwatch CLI output.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Shared output styles.
var (
	Title  = lipgloss.NewStyle().Bold(true)
	Header = lipgloss.NewStyle().Bold(true).Underline(true)
	Dim    = lipgloss.NewStyle().Faint(true)

	Good = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	Warn = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	Bad  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// DisableColors forces plain output, for non-TTY destinations.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
