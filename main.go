package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"

	"go-acid/config"
	"go-acid/debug"
	"go-acid/generate"
	"go-acid/midi"
	"go-acid/pattern"
	"go-acid/sequencer"
	"go-acid/synth"
	"go-acid/theme"
	"go-acid/tui"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ~/.config/go-acid/config.yaml)")
		output     = flag.String("output", "", `MIDI output id, e.g. "port:TB-3" or "serial:/dev/ttyUSB0"`)
		channel    = flag.Int("channel", 0, "MIDI channel 1-16 (overrides config)")
		bpm        = flag.Float64("bpm", 0, "starting tempo (overrides config)")
		logLevel   = flag.String("debug", "", "write a debug log at this level (debug, info, warn)")
		noAudio    = flag.Bool("no-audio", false, "disable the built-in synth")
		writeCfg   = flag.Bool("write-config", false, "write the effective config file and exit")
		keyboard   = flag.String("keyboard", "", `add a keyboard controller, "port" or "port@channel"`)
	)
	flag.Parse()

	if *writeCfg {
		if err := writeConfig(*configPath, *keyboard); err != nil {
			fmt.Fprintln(os.Stderr, "go-acid:", describe(err))
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *keyboard, *output, *channel, *bpm, *logLevel, *noAudio); err != nil {
		fmt.Fprintln(os.Stderr, "go-acid:", describe(err))
		os.Exit(1)
	}
}

func run(configPath, keyboard, output string, channel int, bpm float64, logLevel string, noAudio bool) error {
	cfg, err := loadConfig(configPath, keyboard)
	if err != nil {
		return err
	}

	if logLevel == "" && cfg.Log.File != "" {
		logLevel = cfg.Log.Level
	}
	if logLevel != "" {
		if err := debug.Enable(cfg.Log.File, logLevel); err != nil {
			return err
		}
		defer debug.Disable()
	}
	logger := debug.Logger("main")

	palette, err := theme.LoadOrDefault(cfg.UI.Palette)
	if err != nil {
		logger.Warn("palette not loaded, using built-in", "path", cfg.UI.Palette, "err", err)
	}
	th := theme.New(palette)

	store := pattern.NewStore(pattern.Default())

	out := midi.NewOutput(debug.Logger("midi"),
		midi.RtMidiBackend{},
		midi.SerialBackend{BaudRate: cfg.MIDI.SerialBaud},
	)
	defer out.Close()

	if channel > 0 {
		cfg.MIDI.Channel = channel
	}
	out.SetChannel(cfg.MIDI.Channel - 1)
	if output == "" {
		output = cfg.MIDI.Output
	}
	if output != "" {
		if err := out.SelectOutput(output); err != nil {
			logger.Warn("midi output not opened", "id", output, "err", err)
		}
	}

	// voice and panel stay nil interfaces when audio is off
	var (
		voice  sequencer.Voice
		panel  tui.Synth
		engine *synth.Engine
	)
	if cfg.Synth.Audio && !noAudio {
		engine = synth.NewEngine(debug.Logger("synth"))
		defer engine.Close()
		voice, panel = engine, engine

		wave, err := synth.ParseWaveform(cfg.Synth.Waveform)
		if err != nil {
			logger.Warn("bad waveform in config", "value", cfg.Synth.Waveform)
		}
		engine.UpdateParameters(synth.Params{
			Cutoff:     cfg.Synth.Cutoff,
			Resonance:  cfg.Synth.Resonance,
			Decay:      cfg.Synth.Decay,
			Distortion: cfg.Synth.Distortion,
			Waveform:   wave,
		})
	}

	if bpm <= 0 {
		bpm = cfg.Tempo.Default
	}
	transport := sequencer.NewTransport(store, voice, out, sequencer.Options{
		BPM:       cfg.ClampTempo(bpm),
		MinBPM:    cfg.Tempo.Min,
		MaxBPM:    cfg.Tempo.Max,
		BasePitch: cfg.MIDI.BaseNote,
		Logger:    debug.Logger("transport"),
	})
	transport.StartRuntime()
	defer transport.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var keyboards []midi.KeyboardSpec
	for _, c := range cfg.AutoConnectControllers() {
		if c.Type == config.ControllerKeyboard {
			keyboards = append(keyboards, midi.KeyboardSpec{PortName: c.PortName, Channel: c.InputChannel})
		}
	}
	deviceMgr := midi.NewDeviceManager(debug.Logger("devices"), keyboards...)
	go deviceMgr.Run(ctx)

	gen, err := generate.NewGemini(ctx, cfg.Generator.Model, cfg.Generator.APIKeyEnv, debug.Logger("generate"))
	if err != nil {
		logger.Warn("generator unavailable, using random patterns", "err", err)
	}

	m := tui.NewModel(tui.Options{
		Transport: transport,
		Synth:     panel,
		Output:    out,
		Devices:   deviceMgr,
		Generator: gen,
		Theme:     th,
		Logger:    debug.Logger("tui"),
		FPS:       cfg.UI.FPS,
	})

	logger.Info("starting", "bpm", transport.Tempo(), "output", out.Selected(), "audio", engine != nil)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// loadConfig reads the config file and applies the -keyboard flag
func loadConfig(path, keyboard string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if keyboard != "" {
		if err := cfg.AddKeyboard(keyboard); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// writeConfig saves the loaded config (defaults filled in) back to disk
func writeConfig(path, keyboard string) error {
	cfg, err := loadConfig(path, keyboard)
	if err != nil {
		return err
	}
	if path == "" {
		if err := cfg.Save(); err != nil {
			return err
		}
		path, _ = config.ConfigPath()
	} else if err := cfg.SaveFile(path); err != nil {
		return err
	}
	fmt.Println("wrote", path)
	return nil
}

// describe prefers the user-facing message attached to an error chain
func describe(err error) string {
	if issue := fmsg.GetIssue(err); strings.TrimSpace(issue) != "" {
		return issue
	}
	return err.Error()
}
