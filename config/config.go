package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v3"
)

// ControllerType identifies the kind of controller
type ControllerType string

const (
	ControllerLaunchpadX ControllerType = "launchpad-x"
	ControllerKeyboard   ControllerType = "keyboard"
)

// ControllerConfig defines a saved controller configuration
type ControllerConfig struct {
	PortName     string         `yaml:"portName"`
	Type         ControllerType `yaml:"type"`
	AutoConnect  bool           `yaml:"autoConnect"`
	InputChannel int            `yaml:"inputChannel,omitempty"` // for keyboards, 0 = any
}

// TempoConfig bounds the transport tempo
type TempoConfig struct {
	Default float64 `yaml:"default"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
}

// MIDIConfig selects the external synth output
type MIDIConfig struct {
	Output     string `yaml:"output,omitempty"` // device id, "port:<name>" or "serial:<path>"
	Channel    int    `yaml:"channel"`          // 1-16 as shown to users
	SerialBaud int    `yaml:"serialBaud"`
	BaseNote   int    `yaml:"baseNote"` // MIDI note of pitch class 0
}

// SynthConfig holds startup synth parameters
type SynthConfig struct {
	Waveform   string  `yaml:"waveform"`
	Cutoff     float64 `yaml:"cutoff"`
	Resonance  float64 `yaml:"resonance"`
	Decay      float64 `yaml:"decay"`
	Distortion float64 `yaml:"distortion"`
	Audio      bool    `yaml:"audio"` // open the sound card on play
}

// GeneratorConfig configures text-to-pattern generation
type GeneratorConfig struct {
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"apiKeyEnv"`
}

// LogConfig configures the debug log file
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level"`
}

// UIConfig stores UI preferences
type UIConfig struct {
	FPS     int    `yaml:"fps"`
	Palette string `yaml:"palette,omitempty"` // GIMP .gpl file, empty = built-in
}

// Config is the main configuration structure
type Config struct {
	Tempo       TempoConfig        `yaml:"tempo"`
	MIDI        MIDIConfig         `yaml:"midi"`
	Synth       SynthConfig        `yaml:"synth"`
	Generator   GeneratorConfig    `yaml:"generator"`
	Log         LogConfig          `yaml:"log"`
	UI          UIConfig           `yaml:"ui"`
	Controllers []ControllerConfig `yaml:"controllers,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Tempo: TempoConfig{Default: 120, Min: 60, Max: 180},
		MIDI: MIDIConfig{
			Channel:    1,
			SerialBaud: 31250,
			BaseNote:   36,
		},
		Synth: SynthConfig{
			Waveform:   "sawtooth",
			Cutoff:     1000,
			Resonance:  5,
			Decay:      0.2,
			Distortion: 0.1,
			Audio:      true,
		},
		Generator: GeneratorConfig{
			Model:     "gemini-2.5-flash",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		Log: LogConfig{Level: "info"},
		UI:  UIConfig{FPS: 30},
		Controllers: []ControllerConfig{
			{
				PortName:    "Launchpad X LPX MIDI",
				Type:        ControllerLaunchpadX,
				AutoConnect: true,
			},
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-acid"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from the default path
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads the config at path, or returns defaults if not found.
// Fields missing from the file keep their default values.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("parse config", "Config file "+path+" is not valid YAML"))
	}

	cfg.normalize()
	return cfg, nil
}

// normalize repairs values a hand-edited file can get wrong
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Tempo.Min <= 0 {
		c.Tempo.Min = def.Tempo.Min
	}
	if c.Tempo.Max < c.Tempo.Min {
		c.Tempo.Max = c.Tempo.Min
	}
	c.Tempo.Default = c.ClampTempo(c.Tempo.Default)
	if c.MIDI.Channel < 1 {
		c.MIDI.Channel = 1
	}
	if c.MIDI.Channel > 16 {
		c.MIDI.Channel = 16
	}
	if c.MIDI.SerialBaud <= 0 {
		c.MIDI.SerialBaud = def.MIDI.SerialBaud
	}
	if c.MIDI.BaseNote < 0 || c.MIDI.BaseNote > 127-11 {
		c.MIDI.BaseNote = def.MIDI.BaseNote
	}
	c.Synth.Waveform = strings.ToLower(c.Synth.Waveform)
	if c.UI.FPS <= 0 {
		c.UI.FPS = def.UI.FPS
	}
}

// ClampTempo forces bpm into the configured range
func (c *Config) ClampTempo(bpm float64) float64 {
	if bpm < c.Tempo.Min {
		return c.Tempo.Min
	}
	if bpm > c.Tempo.Max {
		return c.Tempo.Max
	}
	return bpm
}

// Save writes the config to the default path
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path
func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create config dir"))
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode config"))
	}

	return os.WriteFile(path, data, 0644)
}

// FindController finds a controller config by port name
func (c *Config) FindController(portName string) *ControllerConfig {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == portName {
			return &c.Controllers[i]
		}
	}
	return nil
}

// AddController adds or updates a controller config
func (c *Config) AddController(ctrl ControllerConfig) {
	for i := range c.Controllers {
		if c.Controllers[i].PortName == ctrl.PortName {
			c.Controllers[i] = ctrl
			return
		}
	}
	c.Controllers = append(c.Controllers, ctrl)
}

// AddKeyboard registers an auto-connecting keyboard from "port" or
// "port@channel" (channel 1-16, 0 = any). A bare port keeps the channel of an
// existing entry.
func (c *Config) AddKeyboard(arg string) error {
	name, channel := strings.TrimSpace(arg), -1
	if i := strings.LastIndex(name, "@"); i >= 0 {
		ch, err := strconv.Atoi(name[i+1:])
		if err != nil || ch < 0 || ch > 16 {
			return fault.New(fmt.Sprintf("bad keyboard channel in %q", arg))
		}
		name, channel = strings.TrimSpace(name[:i]), ch
	}
	if name == "" {
		return fault.New(fmt.Sprintf("keyboard port name missing in %q", arg))
	}

	ctrl := ControllerConfig{PortName: name, Type: ControllerKeyboard, AutoConnect: true}
	if existing := c.FindController(name); existing != nil {
		ctrl.InputChannel = existing.InputChannel
	}
	if channel >= 0 {
		ctrl.InputChannel = channel
	}
	c.AddController(ctrl)
	return nil
}

// AutoConnectControllers returns controllers with autoConnect enabled
func (c *Config) AutoConnectControllers() []ControllerConfig {
	var result []ControllerConfig
	for _, ctrl := range c.Controllers {
		if ctrl.AutoConnect {
			result = append(result, ctrl)
		}
	}
	return result
}
