package tui

import "github.com/charmbracelet/bubbles/key"

func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

type keyMap struct {
	Left, Right, Up, Down key.Binding
	Toggle                key.Binding
	Accent, Slide         key.Binding
	Clear                 key.Binding

	Play              key.Binding
	TempoUp, TempoDn  key.Binding
	NextParam         key.Binding
	ParamUp, ParamDn  key.Binding
	Waveform          key.Binding
	Output, Channel   key.Binding
	ClearLog          key.Binding
	Generate          key.Binding
	Submit, Cancel    key.Binding
	Help, Quit        key.Binding
}

var keys = keyMap{
	Left:   Key("step left", "h", "left"),
	Right:  Key("step right", "l", "right"),
	Up:     Key("pitch up", "k", "up"),
	Down:   Key("pitch down", "j", "down"),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle note")),
	Accent: Key("accent", "a"),
	Slide:  Key("slide", "s"),
	Clear:  Key("clear", "x"),

	Play:      Key("play/stop", "p"),
	TempoUp:   Key("tempo +", "+", "="),
	TempoDn:   Key("tempo -", "-", "_"),
	NextParam: Key("next param", "tab"),
	ParamUp:   Key("param +", ".", ">"),
	ParamDn:   Key("param -", ",", "<"),
	Waveform:  Key("saw/square", "w"),
	Output:    Key("midi out", "o"),
	Channel:   Key("midi channel", "c"),
	ClearLog:  Key("clear monitor", "L"),
	Generate:  Key("generate", "g"),
	Submit:    Key("submit", "enter"),
	Cancel:    Key("cancel", "esc"),
	Help:      Key("help", "?"),
	Quit:      Key("quit", "q", "ctrl+c"),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Play, k.TempoUp, k.TempoDn, k.Generate, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down, k.Toggle},
		{k.Accent, k.Slide, k.Clear, k.Generate},
		{k.Play, k.TempoUp, k.TempoDn, k.Output, k.Channel, k.ClearLog},
		{k.NextParam, k.ParamUp, k.ParamDn, k.Waveform},
		{k.Help, k.Quit},
	}
}

// promptKeys is the help shown while the generate prompt is open
type promptKeys struct{}

func (promptKeys) ShortHelp() []key.Binding {
	return []key.Binding{keys.Submit, keys.Cancel}
}

func (promptKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{promptKeys{}.ShortHelp()}
}
