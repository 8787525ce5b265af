package sequencer

import "time"

// State is a snapshot of the transport for display
type State struct {
	Tempo    float64
	Running  bool
	Tick     int64     // count of the last emitted tick, -1 before the first
	Step     int       // step of the last tick, -1 when stopped
	TickTime time.Time // nominal time of the last tick
	Interval time.Duration
}

// BeatPosition returns bar-relative beat and sixteenth (1-based) for display
func (s State) BeatPosition() (beat, sixteenth int) {
	if s.Step < 0 {
		return 0, 0
	}
	return s.Step/StepsPerBeat + 1, s.Step%StepsPerBeat + 1
}
