package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-acid/theme"
)

// ParamBar is one labelled slider
type ParamBar struct {
	Label    string
	Value    float64
	Min, Max float64
	Format   string // value format, e.g. "%4.0f Hz"
	Selected bool
}

// RenderParamBar draws "Label  ████░░░░  value"
func RenderParamBar(th *theme.Theme, p ParamBar, width int) string {
	if width < 1 {
		width = 1
	}
	frac := 0.0
	if p.Max > p.Min {
		frac = (p.Value - p.Min) / (p.Max - p.Min)
	}
	frac = min(max(frac, 0), 1)
	filled := int(frac*float64(width) + 0.5)

	labelStyle := lipgloss.NewStyle().Foreground(th.FG()).Width(11)
	if p.Selected {
		labelStyle = labelStyle.Foreground(th.Cursor()).Bold(true)
	}
	bar := lipgloss.NewStyle().Foreground(th.Color(0.3 + 0.7*frac)).
		Render(strings.Repeat(string(th.Symbols.BarFull), filled))
	rest := lipgloss.NewStyle().Foreground(th.Muted()).
		Render(strings.Repeat(string(th.Symbols.BarEmpty), width-filled))

	marker := "  "
	if p.Selected {
		marker = "> "
	}
	return marker + labelStyle.Render(p.Label) + bar + rest + " " + fmt.Sprintf(p.Format, p.Value)
}

// RenderParamBars stacks bars vertically
func RenderParamBars(th *theme.Theme, bars []ParamBar, width int) string {
	lines := make([]string, len(bars))
	for i, b := range bars {
		lines[i] = RenderParamBar(th, b, width)
	}
	return strings.Join(lines, "\n")
}
