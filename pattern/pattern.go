package pattern

import "fmt"

const (
	NumSteps   = 16 // steps per pattern, one bar of sixteenths
	NumPitches = 12 // pitch classes, one octave above the base note
)

// NoteNames are the pitch class labels, index = pitch class
var NoteNames = [NumPitches]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Step is one position of the pattern
type Step struct {
	Active     bool `json:"active" yaml:"active"`
	PitchClass int  `json:"noteIndex" yaml:"pitchClass"`
	Accent     bool `json:"accent" yaml:"accent"`
	Slide      bool `json:"slide" yaml:"slide"`
}

// Normalized returns the step with PitchClass clamped into [0, NumPitches-1]
func (s Step) Normalized() Step {
	s.PitchClass = ClampPitch(s.PitchClass)
	return s
}

// Sounding reports whether the step produces a note
func (s Step) Sounding() bool {
	return s.Active
}

func (s Step) String() string {
	if !s.Active {
		return "---"
	}
	flags := ""
	if s.Accent {
		flags += "A"
	}
	if s.Slide {
		flags += "S"
	}
	return fmt.Sprintf("%s%s", NoteNames[ClampPitch(s.PitchClass)], flags)
}

// ClampPitch forces a pitch class into range
func ClampPitch(pc int) int {
	if pc < 0 {
		return 0
	}
	if pc > NumPitches-1 {
		return NumPitches - 1
	}
	return pc
}

// Pattern is a fixed, cyclic sequence of 16 steps
type Pattern [NumSteps]Step

// Default returns the startup pattern: C on every quarter note
func Default() Pattern {
	var p Pattern
	for i := range p {
		p[i] = Step{Active: i%4 == 0}
	}
	return p
}

// Empty returns a pattern with every step off
func Empty() Pattern {
	return Pattern{}
}

// At returns the step at a cyclic index (16 wraps to 0, -1 wraps to 15)
func (p Pattern) At(index int) Step {
	i := index % NumSteps
	if i < 0 {
		i += NumSteps
	}
	return p[i]
}

// ActiveCount returns the number of sounding steps
func (p Pattern) ActiveCount() int {
	n := 0
	for _, s := range p {
		if s.Active {
			n++
		}
	}
	return n
}
