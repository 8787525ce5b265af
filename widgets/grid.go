package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-acid/pattern"
	"go-acid/theme"
)

// GridView is the state the step editor draws
type GridView struct {
	Pattern     pattern.Pattern
	Playhead    int // -1 when stopped
	CursorStep  int
	CursorPitch int
	Focused     bool
}

// RenderStepGrid draws twelve pitch rows (B at the top) over sixteen steps,
// then the accent and slide lanes and a step ruler.
func RenderStepGrid(th *theme.Theme, v GridView) string {
	sym := th.Symbols
	label := lipgloss.NewStyle().Foreground(th.Muted()).Width(4)
	empty := lipgloss.NewStyle().Foreground(th.Muted())
	note := lipgloss.NewStyle().Foreground(th.Active()).Bold(true)
	accentNote := lipgloss.NewStyle().Foreground(th.Warning()).Bold(true)
	playhead := lipgloss.NewStyle().Foreground(th.Success())
	cursor := lipgloss.NewStyle().Background(th.Surface())

	cell := func(step int, r rune, style lipgloss.Style, cursorRow bool) string {
		if step == v.Playhead && r == sym.StepEmpty {
			r, style = sym.StepPlayhead, playhead
		}
		if v.Focused && cursorRow && step == v.CursorStep {
			style = style.Inherit(cursor)
		}
		return style.Render(string(r)) + " "
	}

	var lines []string
	for pc := pattern.NumPitches - 1; pc >= 0; pc-- {
		var line strings.Builder
		line.WriteString(label.Render(pattern.NoteNames[pc]))
		for i, st := range v.Pattern {
			r, style := sym.StepEmpty, empty
			if st.Active && pattern.ClampPitch(st.PitchClass) == pc {
				r, style = sym.StepNote, note
				if st.Accent {
					style = accentNote
				}
			}
			line.WriteString(cell(i, r, style, pc == v.CursorPitch))
		}
		lines = append(lines, line.String())
	}

	lanes := []struct {
		name string
		on   rune
		set  func(pattern.Step) bool
	}{
		{"Acc", sym.Accent, func(s pattern.Step) bool { return s.Accent }},
		{"Sld", sym.Slide, func(s pattern.Step) bool { return s.Slide }},
	}
	for _, lane := range lanes {
		var line strings.Builder
		line.WriteString(label.Render(lane.name))
		for i, st := range v.Pattern {
			r, style := sym.StepEmpty, empty
			if lane.set(st) {
				r, style = lane.on, accentNote
			}
			line.WriteString(cell(i, r, style, false))
		}
		lines = append(lines, line.String())
	}

	var ruler strings.Builder
	ruler.WriteString(label.Render(""))
	for i := 0; i < pattern.NumSteps; i++ {
		mark := " "
		if i%4 == 0 {
			mark = fmt.Sprint(i/4 + 1)
		}
		ruler.WriteString(empty.Render(mark) + " ")
	}
	lines = append(lines, ruler.String())

	return strings.Join(lines, "\n")
}
