package annotate

import "github.com/charmbracelet/lipgloss"

// Semantic colors for annotations; lipgloss degrades them automatically on
// limited terminals and honors NO_COLOR.
var (
	errorColor  = lipgloss.Color("#e53935")
	gutterColor = lipgloss.Color("#2196F3")
	dimColor    = lipgloss.AdaptiveColor{Light: "#5c6773", Dark: "#8a919c"}

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
	originStyle = lipgloss.NewStyle().Foreground(dimColor)
	gutterStyle = lipgloss.NewStyle().Foreground(gutterColor)
	markStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)
)
