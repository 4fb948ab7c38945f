// Package tui holds terminal UI setup shared by storefront's interactive commands.
package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// InitializeTUI prepares the terminal environment for TUI applications.
// When `CLICOLOR_FORCE=1` or `COLORTERM=truecolor` is set, lipgloss is forced
// to a true-color profile so colors survive non-interactive output (CI, recordings).
// NO_COLOR disables color entirely.
func InitializeTUI() {
	switch {
	case os.Getenv("NO_COLOR") != "":
		lipgloss.SetColorProfile(termenv.Ascii)
	case os.Getenv("CLICOLOR_FORCE") == "1" || os.Getenv("COLORTERM") == "truecolor":
		lipgloss.SetColorProfile(termenv.TrueColor)
	}
}
