package sequencer

import "sync/atomic"

// StepNotifier carries the playing step to the UI. Publish never blocks;
// signals coalesce and readers take the latest value from Current.
type StepNotifier struct {
	current atomic.Int64
	updates chan struct{}
}

func NewStepNotifier() *StepNotifier {
	n := &StepNotifier{updates: make(chan struct{}, 1)}
	n.current.Store(-1)
	return n
}

// Publish records step as current and signals Updates
func (n *StepNotifier) Publish(step int) {
	n.current.Store(int64(step))
	select {
	case n.updates <- struct{}{}:
	default:
	}
}

// Current returns the last published step, -1 when stopped
func (n *StepNotifier) Current() int {
	return int(n.current.Load())
}

// Updates signals that Current changed
func (n *StepNotifier) Updates() <-chan struct{} {
	return n.updates
}

// Reset marks the transport as not playing any step
func (n *StepNotifier) Reset() {
	n.Publish(-1)
}
