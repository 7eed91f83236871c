package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a non-interactive Bubbles table with default styling.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{
			Title: c.Title,
			Width: c.Width,
		}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(string(ColorMuted))).
		BorderBottom(true).
		Bold(true).
		Foreground(lipgloss.Color(string(ColorPrimary)))
	s.Cell = s.Cell.
		Foreground(lipgloss.Color(string(ColorPrimary)))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(string(ColorPrimary))).
		Background(lipgloss.Color(string(ColorMuted))).
		Bold(false)

	t.SetStyles(s)
	return t
}

// PodRow is one line of the pod listing.
type PodRow struct {
	Alias   string
	PodID   string
	Status  string // "running", "stopped", "invalid"
	GPU     string // e.g. "2xA100"
	CostHr  string // e.g. "$1.99/hr", empty when stopped
	Address string // ip:port when running
}

// RenderPodTable renders the tracked-pod listing as a formatted table.
func RenderPodTable(rows []PodRow) string {
	if len(rows) == 0 {
		return "No pods tracked"
	}

	runningStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	stoppedStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	invalidStyle := lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(ColorMuted)

	var output string
	output += headerStyle.Render("  STATUS   ALIAS            POD                GPU          COST        SSH") + "\n"

	for _, row := range rows {
		var statusIcon string
		switch row.Status {
		case "running":
			statusIcon = runningStyle.Render(SymbolComplete)
		case "stopped":
			statusIcon = stoppedStyle.Render(SymbolStopped)
		default:
			statusIcon = invalidStyle.Render(SymbolFail)
		}

		cost := row.CostHr
		if cost == "" {
			cost = "-"
		}
		addr := row.Address
		if addr == "" {
			addr = "-"
		}

		line := "  " + statusIcon + "        " +
			padRight(row.Alias, 17) +
			padRight(mutedStyle.Render(row.PodID), 19) +
			padRight(row.GPU, 13) +
			padRight(cost, 12) +
			mutedStyle.Render(addr)
		output += line + "\n"
	}

	return output
}

// CostPerHour formats an hourly cost for display.
func CostPerHour(cost float64) string {
	if cost <= 0 {
		return ""
	}
	return fmt.Sprintf("$%.2f/hr", cost)
}

// padRight pads a string to the specified visible width, ignoring ANSI codes.
func padRight(s string, width int) string {
	visibleLen := lipgloss.Width(s)
	if visibleLen >= width {
		return s
	}
	padding := width - visibleLen
	for i := 0; i < padding; i++ {
		s += " "
	}
	return s
}
