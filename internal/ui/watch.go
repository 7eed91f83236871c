package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PodFetcher returns the current pod rows. Called off the UI goroutine.
type PodFetcher func() ([]PodRow, error)

// watchSpinnerFrames match the rest of the CLI (◐ ◓ ◑ ◒).
var watchSpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// WatchModel is the Bubble Tea model for the live pod listing.
type WatchModel struct {
	fetch      PodFetcher
	interval   time.Duration
	spinner    spinner.Model
	rows       []PodRow
	err        error
	lastUpdate time.Time
	loading    bool
	quitting   bool
}

// tickMsg signals a periodic refresh.
type tickMsg time.Time

// rowsMsg carries a completed fetch.
type rowsMsg struct {
	rows []PodRow
	err  error
}

// NewWatch creates the live listing model.
func NewWatch(fetch PodFetcher, interval time.Duration) WatchModel {
	sp := spinner.New()
	sp.Spinner = watchSpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(ColorSecondary)

	return WatchModel{
		fetch:    fetch,
		interval: interval,
		spinner:  sp,
		loading:  true,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

func (m WatchModel) refresh() tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		rows, err := fetch()
		return rowsMsg{rows: rows, err: err}
	}
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			if !m.loading {
				m.loading = true
				return m, m.refresh()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case rowsMsg:
		m.loading = false
		m.lastUpdate = time.Now()
		m.rows, m.err = msg.rows, msg.err
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case tickMsg:
		m.loading = true
		return m, m.refresh()
	}

	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	errStyle := lipgloss.NewStyle().Foreground(ColorError)

	var out string
	if m.err != nil {
		out = errStyle.Render(SymbolFail+" "+m.err.Error()) + "\n"
	} else if m.rows != nil {
		out = RenderPodTable(m.rows)
	}

	footer := "r refresh · q quit"
	if m.loading {
		footer = m.spinner.View() + " refreshing · " + footer
	} else if !m.lastUpdate.IsZero() {
		footer = "updated " + m.lastUpdate.Format("15:04:05") + " · " + footer
	}
	return out + mutedStyle.Render(footer) + "\n"
}

// RunWatch runs the live listing until the user quits.
func RunWatch(fetch PodFetcher, interval time.Duration) error {
	_, err := tea.NewProgram(NewWatch(fetch, interval)).Run()
	return err
}
