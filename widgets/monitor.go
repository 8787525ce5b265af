package widgets

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-acid/midi"
	"go-acid/theme"
)

// RenderMonitor shows the newest height entries of the MIDI log, oldest first
func RenderMonitor(th *theme.Theme, entries []midi.LogEntry, height int) string {
	title := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true).Render("MIDI OUT")
	dim := lipgloss.NewStyle().Foreground(th.Muted())
	text := lipgloss.NewStyle().Foreground(th.FG())

	lines := []string{title}
	if len(entries) == 0 {
		lines = append(lines, dim.Render("no messages"))
		return strings.Join(lines, "\n")
	}
	if height > 0 && len(entries) > height {
		entries = entries[len(entries)-height:]
	}
	for _, e := range entries {
		lines = append(lines, dim.Render(e.Time.Format("15:04:05.000"))+" "+text.Render(e.Description))
	}
	return strings.Join(lines, "\n")
}
