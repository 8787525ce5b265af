package sequencer

import "go-acid/pattern"

// StepIndex maps a tick count onto the 16-step cycle
func StepIndex(count int64) int {
	i := count % pattern.NumSteps
	if i < 0 {
		i += pattern.NumSteps
	}
	return int(i)
}
