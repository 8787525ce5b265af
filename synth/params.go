package synth

import (
	"fmt"
	"strings"
)

// Waveform is the oscillator shape
type Waveform int

const (
	WaveSawtooth Waveform = iota
	WaveSquare
)

func (w Waveform) String() string {
	switch w {
	case WaveSquare:
		return "square"
	default:
		return "sawtooth"
	}
}

// Toggle flips between the two waveforms
func (w Waveform) Toggle() Waveform {
	if w == WaveSquare {
		return WaveSawtooth
	}
	return WaveSquare
}

// ParseWaveform accepts "saw", "sawtooth" and "square"
func ParseWaveform(s string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "saw", "sawtooth", "":
		return WaveSawtooth, nil
	case "square", "sq":
		return WaveSquare, nil
	}
	return WaveSawtooth, fmt.Errorf("unknown waveform %q", s)
}

// Parameter ranges
const (
	MinCutoff     = 50.0
	MaxCutoff     = 5000.0
	MinResonance  = 0.0
	MaxResonance  = 20.0
	MinDecay      = 0.1
	MaxDecay      = 2.0
	MinDistortion = 0.0
	MaxDistortion = 1.0
)

// Params is the full, user-editable voice configuration
type Params struct {
	Cutoff     float64 // Hz
	Resonance  float64 // Q
	Decay      float64 // seconds
	Distortion float64 // 0-1
	Waveform   Waveform
}

// DefaultParams matches the startup panel: bright saw, a touch of drive
func DefaultParams() Params {
	return Params{
		Cutoff:     1000,
		Resonance:  5,
		Decay:      0.2,
		Distortion: 0.1,
		Waveform:   WaveSawtooth,
	}
}

// Clamp forces every field into its range
func (p Params) Clamp() Params {
	p.Cutoff = clamp(p.Cutoff, MinCutoff, MaxCutoff)
	p.Resonance = clamp(p.Resonance, MinResonance, MaxResonance)
	p.Decay = clamp(p.Decay, MinDecay, MaxDecay)
	p.Distortion = clamp(p.Distortion, MinDistortion, MaxDistortion)
	if p.Waveform != WaveSquare {
		p.Waveform = WaveSawtooth
	}
	return p
}

// GainDB is the output level in dB for the distortion amount
func (p Params) GainDB() float64 {
	return -10 - 5*p.Distortion
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
