package ui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Deterministic output regardless of the test terminal.
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestRenderPodTable(t *testing.T) {
	rows := []PodRow{
		{Alias: "gpu1", PodID: "abc123", Status: "running", GPU: "1xA100", CostHr: "$1.99/hr", Address: "1.2.3.4:40022"},
		{Alias: "gpu2", PodID: "def456", Status: "stopped", GPU: "2xH100"},
		{Alias: "old", PodID: "ghi789", Status: "invalid"},
	}

	out := RenderPodTable(rows)
	assert.Contains(t, out, "gpu1")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "1.2.3.4:40022")
	assert.Contains(t, out, "$1.99/hr")
	assert.Contains(t, out, SymbolComplete)
	assert.Contains(t, out, SymbolStopped)
	assert.Contains(t, out, SymbolFail)
	// Stopped pod shows dashes for cost and address.
	gpu2Line := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "gpu2") {
			gpu2Line = line
		}
	}
	require.NotEmpty(t, gpu2Line)
	assert.Contains(t, gpu2Line, "-")
}

func TestRenderPodTableEmpty(t *testing.T) {
	assert.Equal(t, "No pods tracked", RenderPodTable(nil))
}

func TestCostPerHour(t *testing.T) {
	assert.Equal(t, "$1.99/hr", CostPerHour(1.99))
	assert.Equal(t, "$0.34/hr", CostPerHour(0.335))
	assert.Equal(t, "", CostPerHour(0))
}

func TestNewTable(t *testing.T) {
	tbl := NewTable(
		[]TableColumn{{Title: "ALIAS", Width: 10}, {Title: "POD", Width: 12}},
		nil,
	)
	view := tbl.View()
	assert.Contains(t, view, "ALIAS")
	assert.Contains(t, view, "POD")
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", padRight("ab", 5))
	assert.Equal(t, "abcdef", padRight("abcdef", 5))
}

func TestSpinnerLifecycle(t *testing.T) {
	var mu sync.Mutex
	var buf strings.Builder

	s := NewSpinner("Waiting for pod")
	s.SetOutput(func(out string) {
		mu.Lock()
		defer mu.Unlock()
		buf.WriteString(out)
	})

	assert.Equal(t, SpinnerPending, s.State())

	s.Start()
	assert.Equal(t, SpinnerInProgress, s.State())
	time.Sleep(100 * time.Millisecond)
	s.Success()
	assert.Equal(t, SpinnerSuccess, s.State())

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.Contains(t, out, "Waiting for pod")
	assert.Contains(t, out, SymbolSuccess)
}

func TestSpinnerFail(t *testing.T) {
	var mu sync.Mutex
	var buf strings.Builder

	s := NewSpinner("Starting pod")
	s.SetOutput(func(out string) {
		mu.Lock()
		defer mu.Unlock()
		buf.WriteString(out)
	})

	s.Start()
	s.SetLabel("Starting pod gpu1")
	s.Fail()
	assert.Equal(t, SpinnerFailed, s.State())

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	assert.Contains(t, out, SymbolFail)
}

func TestSpinnerDoubleStartAndStop(t *testing.T) {
	s := NewSpinner("x")
	s.SetOutput(func(string) {})
	s.Start()
	s.Start() // no-op
	s.Stop()
	s.Stop() // no-op
}

func TestWatchModelUpdate(t *testing.T) {
	fetched := 0
	m := NewWatch(func() ([]PodRow, error) {
		fetched++
		return []PodRow{{Alias: "gpu1", PodID: "abc", Status: "running"}}, nil
	}, time.Minute)

	// Initial fetch command produces a rowsMsg.
	cmd := m.refresh()
	msg := cmd()
	rows, ok := msg.(rowsMsg)
	require.True(t, ok)
	require.Len(t, rows.rows, 1)
	assert.Equal(t, 1, fetched)

	// Applying the rows stops the loading state and shows the table.
	next, _ := m.Update(rows)
	m = next.(WatchModel)
	assert.False(t, m.loading)
	assert.Contains(t, m.View(), "gpu1")
	assert.Contains(t, m.View(), "updated")

	// A tick starts the next refresh.
	next, cmd = m.Update(tickMsg(time.Now()))
	m = next.(WatchModel)
	assert.True(t, m.loading)
	require.NotNil(t, cmd)

	// q quits and blanks the view.
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = next.(WatchModel)
	require.NotNil(t, cmd)
	assert.Equal(t, "", m.View())
}

func TestWatchModelError(t *testing.T) {
	m := NewWatch(nil, time.Minute)
	next, _ := m.Update(rowsMsg{err: assert.AnError})
	m = next.(WatchModel)
	assert.Contains(t, m.View(), SymbolFail)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", formatDuration(50*time.Millisecond))
	assert.Equal(t, "1.2s", formatDuration(1200*time.Millisecond))
}
