package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Southclaws/fault/fmsg"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"

	"go-acid/generate"
	"go-acid/midi"
	"go-acid/pattern"
	"go-acid/sequencer"
	"go-acid/synth"
	"go-acid/theme"
	"go-acid/widgets"
)

const (
	generateTimeout = 30 * time.Second
	monitorHeight   = 8
	barWidth        = 20
)

// Synth is the voice parameter surface the panel edits
type Synth interface {
	UpdateParameters(synth.Params)
	Params() synth.Params
	State() synth.State
}

// param is one adjustable synth parameter
type param struct {
	label  string
	format string
	step   float64
	min    float64
	max    float64
	get    func(synth.Params) float64
	set    func(*synth.Params, float64)
}

var params = []param{
	{"Cutoff", "%4.0f Hz", 50, synth.MinCutoff, synth.MaxCutoff,
		func(p synth.Params) float64 { return p.Cutoff }, func(p *synth.Params, v float64) { p.Cutoff = v }},
	{"Resonance", "%4.1f", 0.5, synth.MinResonance, synth.MaxResonance,
		func(p synth.Params) float64 { return p.Resonance }, func(p *synth.Params, v float64) { p.Resonance = v }},
	{"Decay", "%4.2f s", 0.05, synth.MinDecay, synth.MaxDecay,
		func(p synth.Params) float64 { return p.Decay }, func(p *synth.Params, v float64) { p.Decay = v }},
	{"Distortion", "%4.2f", 0.05, synth.MinDistortion, synth.MaxDistortion,
		func(p synth.Params) float64 { return p.Distortion }, func(p *synth.Params, v float64) { p.Distortion = v }},
}

// Options wires the model to the running system
type Options struct {
	Transport *sequencer.Transport
	Synth     Synth               // nil hides the synth panel
	Output    *midi.Output        // nil disables device selection
	Devices   *midi.DeviceManager // nil disables controller hot-plug
	Generator generate.Source     // nil uses the random fallback
	Theme     *theme.Theme
	Logger    *charmlog.Logger
	FPS       int
}

type Model struct {
	transport *sequencer.Transport
	synth     Synth
	out       *midi.Output
	devices   *midi.DeviceManager
	gen       generate.Source
	theme     *theme.Theme
	logger    *charmlog.Logger
	fps       int

	help       help.Model
	prompt     textinput.Model
	prompting  bool
	generating bool
	switching  bool // output change in flight
	status     string
	statusErr  bool

	cursorPitch int
	param       int
	playhead    int
	quitting    bool
}

// Messages

type frameMsg time.Time

// refreshMsg carries the channel that fired so only it is re-armed
type refreshMsg struct{ ch <-chan struct{} }

type DeviceEventMsg midi.DeviceEvent

// surfaceErrMsg carries an error from a controller action
type surfaceErrMsg struct {
	err error
	ch  <-chan error
}

type outputMsg struct {
	id  string
	err error
}

type generatedMsg struct {
	text    string
	pattern pattern.Pattern
	err     error
}

func NewModel(opts Options) Model {
	th := opts.Theme
	if th == nil {
		th = theme.New(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	fps := opts.FPS
	if fps <= 0 {
		fps = 30
	}

	ti := textinput.New()
	ti.Placeholder = "describe a bassline, e.g. squelchy 303 with slides"
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.Width = 60

	h := help.New()
	h.Styles.ShortKey = lipgloss.NewStyle().Foreground(th.Accent())
	h.Styles.ShortDesc = lipgloss.NewStyle().Foreground(th.Muted())
	h.Styles.FullKey = h.Styles.ShortKey
	h.Styles.FullDesc = h.Styles.ShortDesc

	return Model{
		transport: opts.Transport,
		synth:     opts.Synth,
		out:       opts.Output,
		devices:   opts.Devices,
		gen:       opts.Generator,
		theme:     th,
		logger:    logger,
		fps:       fps,
		help:      h,
		prompt:    ti,
		playhead:  -1,
	}
}

// Listeners re-arm themselves from Update

func frameTick(fps int) tea.Cmd {
	return tea.Tick(time.Second/time.Duration(fps), func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func listen(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return refreshMsg{ch}
	}
}

func listenErr(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return surfaceErrMsg{err: err, ch: ch}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func generateCmd(src generate.Source, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()
		p, err := generate.Pattern(ctx, src, text)
		return generatedMsg{text: text, pattern: p, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		frameTick(m.fps),
		listen(m.transport.UpdateChan),
		listen(m.transport.Store().UpdateChan),
		listen(m.transport.Surface().CursorChan),
		listenErr(m.transport.Surface().ErrChan),
	}
	if m.out != nil {
		cmds = append(cmds, listen(m.out.Log().UpdateChan))
	}
	if m.devices != nil {
		cmds = append(cmds, ListenForDevices(m.devices))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.updatePrompt(msg)
		}
		return m.updateKeys(msg)

	case frameMsg:
		m.playhead = m.transport.Notifier().Current()
		return m, frameTick(m.fps)

	case refreshMsg:
		return m, listen(msg.ch)

	case surfaceErrMsg:
		m.setStatus(issue(msg.err), true)
		return m, listenErr(msg.ch)

	case outputMsg:
		m.switching = false
		switch {
		case msg.err != nil:
			m.setStatus(issue(msg.err), true)
		case msg.id == "":
			m.setStatus("MIDI output off", false)
		default:
			m.setStatus("MIDI output "+msg.id, false)
		}
		return m, nil

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		surface := m.transport.Surface()
		switch event.Type {
		case midi.DeviceConnected:
			surface.AddController(event.Controller)
			m.setStatus(fmt.Sprintf("Connected %s", event.ID), false)
		case midi.DeviceDisconnected:
			surface.RemoveController(event.ID)
			m.setStatus(fmt.Sprintf("Disconnected %s", event.ID), false)
		}
		return m, ListenForDevices(m.devices)

	case generatedMsg:
		m.generating = false
		m.transport.Store().Replace(msg.pattern)
		if msg.err != nil {
			m.logger.Warn("generate fell back", "text", msg.text, "err", msg.err)
			m.setStatus(issue(msg.err), true)
		} else {
			m.logger.Info("generated pattern", "text", msg.text, "active", msg.pattern.ActiveCount())
			m.setStatus(fmt.Sprintf("Generated %q", msg.text), false)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		m.prompting = false
		m.prompt.Blur()
		m.prompt.Reset()
		return m, nil

	case key.Matches(msg, keys.Submit):
		text := strings.TrimSpace(m.prompt.Value())
		m.prompting = false
		m.prompt.Blur()
		m.prompt.Reset()
		if text == "" {
			return m, nil
		}
		m.generating = true
		m.setStatus("Generating...", false)
		return m, generateCmd(m.gen, text)
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	store := m.transport.Store()
	surface := m.transport.Surface()
	cursor := surface.Cursor()

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		m.transport.Stop()
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, keys.Left):
		surface.SetCursor(cursor - 1)

	case key.Matches(msg, keys.Right):
		surface.SetCursor(cursor + 1)

	case key.Matches(msg, keys.Up):
		m.cursorPitch = min(m.cursorPitch+1, pattern.NumPitches-1)

	case key.Matches(msg, keys.Down):
		m.cursorPitch = max(m.cursorPitch-1, 0)

	case key.Matches(msg, keys.Toggle):
		pc := m.cursorPitch
		store.Update(cursor, func(st pattern.Step) pattern.Step {
			if st.Active && st.PitchClass == pc {
				st.Active = false
				return st
			}
			st.Active = true
			st.PitchClass = pc
			return st
		})

	case key.Matches(msg, keys.Accent):
		store.Update(cursor, func(st pattern.Step) pattern.Step {
			st.Accent = !st.Accent
			return st
		})

	case key.Matches(msg, keys.Slide):
		store.Update(cursor, func(st pattern.Step) pattern.Step {
			st.Slide = !st.Slide
			return st
		})

	case key.Matches(msg, keys.Clear):
		store.Clear()
		m.setStatus("Pattern cleared", false)

	case key.Matches(msg, keys.Play):
		if err := m.transport.Toggle(); err != nil {
			m.setStatus(issue(err), true)
		}

	case key.Matches(msg, keys.TempoUp):
		m.transport.SetTempo(m.transport.Tempo() + 1)

	case key.Matches(msg, keys.TempoDn):
		m.transport.SetTempo(m.transport.Tempo() - 1)

	case key.Matches(msg, keys.NextParam):
		m.param = (m.param + 1) % len(params)

	case key.Matches(msg, keys.ParamUp):
		m.adjustParam(1)

	case key.Matches(msg, keys.ParamDn):
		m.adjustParam(-1)

	case key.Matches(msg, keys.Waveform):
		if m.synth != nil {
			p := m.synth.Params()
			p.Waveform = p.Waveform.Toggle()
			m.synth.UpdateParameters(p)
		}

	case key.Matches(msg, keys.Output):
		if m.out == nil || m.switching {
			break
		}
		m.switching = true
		m.setStatus("Scanning MIDI outputs...", false)
		return m, cycleOutput(m.out)

	case key.Matches(msg, keys.ClearLog):
		if m.out != nil {
			m.out.Log().Clear()
		}

	case key.Matches(msg, keys.Channel):
		if m.out != nil {
			m.out.SetChannel((m.out.Channel() + 1) % 16)
		}

	case key.Matches(msg, keys.Generate):
		if m.generating {
			break
		}
		m.prompting = true
		cmd := m.prompt.Focus()
		return m, cmd
	}
	return m, nil
}

func (m *Model) adjustParam(dir float64) {
	if m.synth == nil {
		return
	}
	pr := params[m.param]
	p := m.synth.Params()
	v := pr.get(p) + dir*pr.step
	pr.set(&p, min(max(v, pr.min), pr.max))
	m.synth.UpdateParameters(p)
}

// cycleOutput steps through none, then every discovered device. Port
// discovery can stall, so it runs off the UI goroutine.
func cycleOutput(out *midi.Output) tea.Cmd {
	return func() tea.Msg {
		ids := []string{""}
		for _, d := range out.Devices() {
			ids = append(ids, d.ID)
		}
		next := 0
		for i, id := range ids {
			if id == out.Selected() {
				next = (i + 1) % len(ids)
				break
			}
		}
		return outputMsg{id: ids[next], err: out.SelectOutput(ids[next])}
	}
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

// issue is the user-facing text of err
func issue(err error) string {
	if s := fmsg.GetIssue(err); s != "" {
		return s
	}
	return err.Error()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	th := m.theme
	headerStyle := lipgloss.NewStyle().Foreground(th.Accent()).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(th.Muted())
	statusStyle := lipgloss.NewStyle().Foreground(th.Success())
	if m.statusErr {
		statusStyle = statusStyle.Foreground(th.Warning())
	}

	state := m.transport.State()
	surface := m.transport.Surface()

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(m.headerLine(state)))
	out.WriteString("\n\n")

	out.WriteString(widgets.RenderStepGrid(th, widgets.GridView{
		Pattern:     m.transport.Store().Snapshot(),
		Playhead:    m.playhead,
		CursorStep:  surface.Cursor(),
		CursorPitch: m.cursorPitch,
		Focused:     !m.prompting,
	}))
	out.WriteString("\n\n")

	var panels []string
	if m.synth != nil {
		panels = append(panels, m.synthPanel())
	}
	if m.out != nil {
		panels = append(panels, widgets.RenderMonitor(th, m.out.Log().Entries(), monitorHeight))
	}
	if surface.HasGrid() {
		panels = append(panels, launchpadPreview(surface.RenderLEDs()))
	}
	if len(panels) > 0 {
		for i := range panels[:len(panels)-1] {
			panels[i] = lipgloss.NewStyle().PaddingRight(4).Render(panels[i])
		}
		out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, panels...))
		out.WriteString("\n\n")
	}

	if m.prompting {
		out.WriteString(m.prompt.View())
		out.WriteString("\n")
	}
	if m.status != "" {
		out.WriteString(statusStyle.Render(m.status))
		out.WriteString("\n")
	}

	if m.prompting {
		out.WriteString(dimStyle.Render(m.help.View(promptKeys{})))
	} else {
		out.WriteString(m.help.View(keys))
	}
	return out.String()
}

func (m Model) headerLine(state sequencer.State) string {
	playState := "STOP"
	if state.Running {
		playState = "PLAY"
	}
	step := "--"
	if m.playhead >= 0 {
		step = fmt.Sprintf("%02d", m.playhead+1)
	}

	if beat, sixteenth := state.BeatPosition(); beat > 0 {
		step += fmt.Sprintf(" (%d.%d)", beat, sixteenth)
	}

	parts := []string{"go-acid", playState, fmt.Sprintf("%3.0fbpm", state.Tempo), "step:" + step}
	if m.out != nil {
		dest := m.out.Selected()
		if dest == "" {
			dest = "none"
		}
		parts = append(parts, fmt.Sprintf("out:%s ch:%d", dest, m.out.Channel()+1))
	}
	if m.synth != nil {
		parts = append(parts, "audio:"+m.synth.State().String())
	}
	if m.transport.Surface().HasGrid() {
		parts = append(parts, "LP:X")
	}
	return strings.Join(parts, "  ")
}

func (m Model) synthPanel() string {
	p := m.synth.Params()
	bars := make([]widgets.ParamBar, len(params))
	for i, pr := range params {
		bars[i] = widgets.ParamBar{
			Label:    pr.label,
			Value:    pr.get(p),
			Min:      pr.min,
			Max:      pr.max,
			Format:   pr.format,
			Selected: i == m.param,
		}
	}
	wave := lipgloss.NewStyle().Foreground(m.theme.FG()).Render("  Waveform   " + p.Waveform.String())
	return widgets.RenderParamBars(m.theme, bars, barWidth) + "\n" + wave
}

// launchpadPreview mirrors the grid LEDs
func launchpadPreview(leds []sequencer.LEDState) string {
	var grid [8][8][3]uint8
	var top [8][3]uint8
	for _, led := range leds {
		switch {
		case led.Row == 8 && led.Col < 8:
			top[led.Col] = led.Color
		case led.Row >= 0 && led.Row < 8 && led.Col >= 0 && led.Col < 8:
			grid[led.Row][led.Col] = led.Color
		}
	}
	return widgets.RenderPadGrid(grid, &top)
}
