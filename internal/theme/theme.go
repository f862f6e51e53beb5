// Package theme holds the terminal styles used by command output.
package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for section headers.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// PanelStyle wraps a block of summary lines.
var PanelStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// MutedStyle is used for secondary text such as timestamps.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ErrorStyle is used for error lines.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// NewBadgeStyle marks records flagged new.
var NewBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorGreen)

// LabelStyle returns a color-coded style for a record label.
func LabelStyle(label string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch label {
	case "inbox":
		return base.Foreground(ColorBlue)
	case "starred":
		return base.Foreground(ColorYellow)
	case "sent", "draft":
		return base.Foreground(ColorGreen)
	case "trash", "promotions", "social", "updates":
		return base.Foreground(ColorGray)
	default:
		// Rule categories.
		return base.Foreground(ColorMagenta)
	}
}

// ToneStyle returns a style for an enrichment tone.
func ToneStyle(tone string) lipgloss.Style {
	switch tone {
	case "Urgent", "Angry", "Negative":
		return lipgloss.NewStyle().Foreground(ColorRed)
	case "Friendly", "Positive":
		return lipgloss.NewStyle().Foreground(ColorGreen)
	default:
		return lipgloss.NewStyle().Foreground(ColorGray)
	}
}
