package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Tempo.Default != 120 || cfg.Tempo.Min != 60 || cfg.Tempo.Max != 180 {
		t.Errorf("unexpected tempo defaults: %+v", cfg.Tempo)
	}
	if cfg.MIDI.BaseNote != 36 || cfg.MIDI.SerialBaud != 31250 {
		t.Errorf("unexpected midi defaults: %+v", cfg.MIDI)
	}
}

// TestLoadFilePartial verifies absent keys keep defaults and bad values are repaired
func TestLoadFilePartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
tempo:
  default: 400
midi:
  output: "serial:/dev/ttyUSB0"
  channel: 22
synth:
  waveform: Square
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Tempo.Default != 180 {
		t.Errorf("tempo default = %v, want clamped 180", cfg.Tempo.Default)
	}
	if cfg.MIDI.Channel != 16 {
		t.Errorf("channel = %d, want 16", cfg.MIDI.Channel)
	}
	if cfg.MIDI.Output != "serial:/dev/ttyUSB0" {
		t.Errorf("output = %q", cfg.MIDI.Output)
	}
	if cfg.Synth.Waveform != "square" {
		t.Errorf("waveform = %q, want square", cfg.Synth.Waveform)
	}
	if cfg.Synth.Cutoff != 1000 {
		t.Errorf("cutoff = %v, want default 1000", cfg.Synth.Cutoff)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("tempo: [unclosed"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.MIDI.Output = "port:IAC Driver Bus 1"
	cfg.AddController(ControllerConfig{PortName: "KeyStep", Type: ControllerKeyboard, AutoConnect: true})

	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.MIDI.Output != cfg.MIDI.Output {
		t.Errorf("output = %q, want %q", got.MIDI.Output, cfg.MIDI.Output)
	}
	if len(got.AutoConnectControllers()) != 2 {
		t.Errorf("auto-connect controllers = %d, want 2", len(got.AutoConnectControllers()))
	}
	if got.FindController("KeyStep") == nil {
		t.Error("keyboard controller not saved")
	}
}

func TestAddKeyboard(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.AddKeyboard("KeyStep 37@2"); err != nil {
		t.Fatal(err)
	}
	kb := cfg.FindController("KeyStep 37")
	if kb == nil || kb.Type != ControllerKeyboard || !kb.AutoConnect || kb.InputChannel != 2 {
		t.Fatalf("keyboard = %+v", kb)
	}

	// a bare name keeps the saved channel
	if err := cfg.AddKeyboard("KeyStep 37"); err != nil {
		t.Fatal(err)
	}
	if got := cfg.FindController("KeyStep 37").InputChannel; got != 2 {
		t.Errorf("channel = %d, want 2", got)
	}
	if len(cfg.Controllers) != 2 {
		t.Errorf("controllers = %d, want 2", len(cfg.Controllers))
	}

	for _, bad := range []string{"KeyStep@17", "KeyStep@x", "@3", "  "} {
		if err := cfg.AddKeyboard(bad); err == nil {
			t.Errorf("AddKeyboard(%q) accepted", bad)
		}
	}
}
