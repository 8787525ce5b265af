package sequencer

import (
	"math"
	"sync"
	"time"
)

// StepsPerBeat is the clock subdivision: one tick per sixteenth note
const StepsPerBeat = 4

// Tick is one subdivision of the transport clock
type Tick struct {
	Count    int64         // subdivisions since Start, 0-based
	Time     time.Time     // nominal time of the subdivision, not the wake-up time
	Interval time.Duration // sixteenth-note length at this tick's tempo
}

// Interval returns the sixteenth-note duration at bpm, rounded to the nanosecond
func Interval(bpm float64) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(time.Minute) / bpm / StepsPerBeat))
}

// Clock emits a Tick on every sixteenth note from a single goroutine.
//
// Tick times are accumulated from the start time by adding intervals, so
// timer jitter never drifts the grid: a late wake-up still reports the
// nominal time and the next deadline is computed from it.
type Clock struct {
	mu      sync.Mutex
	bpm     float64
	onTick  func(Tick)
	running bool

	stopChan      chan struct{}
	doneChan      chan struct{}
	interruptChan chan struct{} // tempo changed, recompute the pending deadline
}

// NewClock creates a stopped clock. onTick runs on the clock goroutine and
// must not block.
func NewClock(bpm float64, onTick func(Tick)) *Clock {
	if bpm <= 0 {
		bpm = 120
	}
	return &Clock{
		bpm:    bpm,
		onTick: onTick,
	}
}

// Start begins ticking from count 0; the first tick fires immediately
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stopChan = make(chan struct{})
	c.doneChan = make(chan struct{})
	c.interruptChan = make(chan struct{}, 1)

	go c.run(time.Now(), c.stopChan, c.doneChan, c.interruptChan)
}

// Stop halts the clock and waits for its goroutine to exit. No tick callback
// runs after Stop returns. Must not be called from onTick.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopChan)
	done := c.doneChan
	c.mu.Unlock()

	<-done
}

// SetTempo changes the tempo from the next tick on. Ticks already emitted
// keep their interval.
func (c *Clock) SetTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	c.mu.Lock()
	c.bpm = bpm
	interrupt := c.interruptChan
	running := c.running
	c.mu.Unlock()

	if running {
		select {
		case interrupt <- struct{}{}:
		default:
		}
	}
}

// Tempo returns the current BPM
func (c *Clock) Tempo() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// Running reports whether the clock is ticking
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Clock) interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Interval(c.bpm)
}

func (c *Clock) run(start time.Time, stop <-chan struct{}, done chan<- struct{}, interrupt <-chan struct{}) {
	defer close(done)

	var (
		count    int64
		next     = start
		last     time.Time
		haveLast bool
	)

	for {
		if wait := time.Until(next); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-interrupt:
				timer.Stop()
				if haveLast {
					next = last.Add(c.interval())
				}
				continue
			case <-timer.C:
			}
		}

		select {
		case <-stop:
			return
		default:
		}

		iv := c.interval()
		c.onTick(Tick{Count: count, Time: next, Interval: iv})

		last, haveLast = next, true
		count++
		next = last.Add(iv)

		// tempo changed while onTick ran
		select {
		case <-interrupt:
			next = last.Add(c.interval())
		default:
		}
	}
}
