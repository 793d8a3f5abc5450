package output

import "github.com/charmbracelet/lipgloss"

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	staleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	freshStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

// StaleMarker labels data served from an expired cache entry.
func StaleMarker() string {
	return staleStyle.Render("[stale]")
}

// FreshMarker labels data that is current.
func FreshMarker() string {
	return freshStyle.Render("[fresh]")
}

// Heading renders a section title.
func Heading(s string) string {
	return headingStyle.Render(s)
}

// Field renders a "label: value" status line.
func Field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

// Success renders a positive status message.
func Success(s string) string {
	return successStyle.Render("✓ " + s)
}

// Warning renders a cautionary status message.
func Warning(s string) string {
	return warnStyle.Render("! " + s)
}

// Failure renders an error status message.
func Failure(s string) string {
	return errorStyle.Render("✗ " + s)
}
