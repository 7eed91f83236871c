package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Semantic colors for status indication, ANSI codes for broad terminal
// compatibility.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// GradientColors cycle through the spinner animation.
var GradientColors = []lipgloss.Color{
	"13", // Pink
	"5",  // Purple
	"6",  // Cyan
	"2",  // Green
}

// ConfigureColors locks lipgloss to the color profile the environment
// actually supports, honoring NO_COLOR and dumb terminals.
func ConfigureColors() {
	lipgloss.SetColorProfile(termenv.EnvColorProfile())
}
