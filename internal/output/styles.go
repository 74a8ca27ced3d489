package output

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color palette — named constants for the ANSI 256 colors used in log and
// status output. Table styles in table.go set their own color literals.
var (
	// ColorCyan is used for identifiable nouns: task ids, format names, paths.
	ColorCyan = lipgloss.Color("14")

	// colorGreen is used for success and "reapplied" loss status.
	colorGreen = lipgloss.Color("82")

	// ColorYellow is used for "adapted" loss status and warnings.
	ColorYellow = lipgloss.Color("220")

	// colorRed is used for "lost" and "lost_again" loss statuses.
	colorRed = lipgloss.Color("196")

	// colorGreenCheck is used for the completion checkmark (✔).
	colorGreenCheck = lipgloss.Color("10")
)

// Semantic styles — map domain concepts to visual presentation.
var (
	// styleNoun styles identifiable nouns (task ids, format names, paths).
	styleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// styleDim styles structural chrome (scope prefixes, separators).
	styleDim = lipgloss.NewStyle().Faint(true)
)

// StatusStyle returns the lipgloss style for a loss-entry status string.
// Unknown statuses return an unstyled default.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "reapplied":
		return lipgloss.NewStyle().Foreground(colorGreen)
	case "adapted":
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case "lost", "lost_again":
		return lipgloss.NewStyle().Foreground(colorRed)
	default:
		return lipgloss.NewStyle()
	}
}

// Noun styles an identifiable noun for inline log output.
func Noun(s string) string {
	return styleNoun.Render(s)
}

// FormatCheckmark renders a completion message with a green checkmark.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(colorGreenCheck).Render("✔")
	return fmt.Sprintf("%s %s", check, msg)
}
