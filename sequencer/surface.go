package sequencer

import (
	"sync"
	"time"

	"go-acid/midi"
	"go-acid/pattern"
)

// LED refresh rate
const ledFPS = 30

// LEDState describes the state of a single LED
type LEDState struct {
	Row, Col int
	Color    [3]uint8 // RGB color - controller maps to its palette
	Channel  uint8    // 0=static, 2=pulse
}

// Grid layout on an 8x8 pad controller, row 0 at the bottom. Each lane is
// two rows: the upper row holds steps 0-7, the lower row steps 8-15.
const (
	rowSteps  = 0 // rows 0-1: step on/off
	rowAccent = 2 // rows 2-3: accent
	rowSlide  = 4 // rows 4-5: slide
	rowPitch  = 6 // rows 6-7: pitch class of the cursor step
	rowTop    = 8 // top control row
)

// Top-row buttons
const (
	topPlay      = 0
	topTempoDown = 2
	topTempoUp   = 3
	topClear     = 7
)

// Surface connects grid and keyboard controllers to the pattern. Pads edit
// steps, keyboard notes set the pitch of the cursor step, and the grid LEDs
// mirror the pattern and playhead.
type Surface struct {
	t *Transport

	mu          sync.Mutex
	controllers map[string]midi.Controller
	leds        midi.Controller // grid receiving LED output
	cursor      int
	ledDirty    bool
	prevLEDs    map[[2]int]LEDState
	stopChan    chan struct{}
	started     bool

	// Notify TUI when the cursor moves from a controller
	CursorChan chan struct{}
	// Errors from controller actions, for the TUI status line
	ErrChan chan error
}

func newSurface(t *Transport) *Surface {
	return &Surface{
		t:           t,
		controllers: make(map[string]midi.Controller),
		prevLEDs:    make(map[[2]int]LEDState),
		CursorChan:  make(chan struct{}, 1),
		ErrChan:     make(chan error, 1),
	}
}

func (s *Surface) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopChan = make(chan struct{})
	go s.ledLoop(s.stopChan)
}

func (s *Surface) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false
	close(s.stopChan)
}

// Cursor returns the step that keyboard input edits
func (s *Surface) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SetCursor moves the edit cursor (wraps around the pattern)
func (s *Surface) SetCursor(step int) {
	s.mu.Lock()
	s.cursor = ((step % pattern.NumSteps) + pattern.NumSteps) % pattern.NumSteps
	s.ledDirty = true
	s.mu.Unlock()
}

// AddController starts routing input from c. The first grid controller
// also receives LED output.
func (s *Surface) AddController(c midi.Controller) {
	if c == nil {
		return
	}

	s.mu.Lock()
	s.controllers[c.ID()] = c
	if c.Type() == midi.ControllerLaunchpad && s.leds == nil {
		s.leds = c
		s.prevLEDs = make(map[[2]int]LEDState) // reset - diff will handle clearing
		s.ledDirty = true
	}
	s.mu.Unlock()

	go func() {
		for evt := range c.PadEvents() {
			s.HandlePad(evt.Row, evt.Col)
		}
	}()
	go func() {
		for evt := range c.NoteEvents() {
			s.HandleNote(evt.Note, evt.Velocity)
		}
	}()
}

// RemoveController forgets the controller with id. The caller closes it.
func (s *Surface) RemoveController(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.controllers[id]; ok && c == s.leds {
		s.leds = nil
	}
	delete(s.controllers, id)
}

// HasGrid reports whether a grid controller is attached
func (s *Surface) HasGrid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds != nil
}

func (s *Surface) markDirty() {
	s.mu.Lock()
	s.ledDirty = true
	s.mu.Unlock()
}

func (s *Surface) notifyCursor() {
	select {
	case s.CursorChan <- struct{}{}:
	default:
	}
}

// reportErr hands err to the TUI. An unread error is kept over a newer one.
func (s *Surface) reportErr(err error) {
	select {
	case s.ErrChan <- err:
	default:
		s.t.logger.Warn("controller error dropped", "err", err)
	}
}

// laneStep maps a pad in a two-row lane to its step index
func laneStep(row, col, lane int) int {
	if row == lane+1 {
		return col
	}
	return col + 8
}

// laneRow maps a step index to its pad row in a lane
func laneRow(step, lane int) (row, col int) {
	if step < 8 {
		return lane + 1, step
	}
	return lane, step - 8
}

// HandlePad applies a pad press
func (s *Surface) HandlePad(row, col int) {
	store := s.t.store

	if row == rowTop {
		switch col {
		case topPlay:
			if err := s.t.Toggle(); err != nil {
				s.reportErr(err)
			}
		case topTempoDown:
			s.t.SetTempo(s.t.Tempo() - 1)
		case topTempoUp:
			s.t.SetTempo(s.t.Tempo() + 1)
		case topClear:
			store.Clear()
		}
		s.markDirty()
		return
	}
	if col < 0 || col > 7 {
		return
	}

	switch {
	case row >= rowPitch && row <= rowPitch+1:
		pc := col
		if row == rowPitch {
			pc = col + 8
		}
		if pc >= pattern.NumPitches {
			return
		}
		cursor := s.Cursor()
		store.Update(cursor, func(st pattern.Step) pattern.Step {
			st.PitchClass = pc
			st.Active = true
			return st
		})
	case row >= rowSlide:
		store.Update(laneStep(row, col, rowSlide), func(st pattern.Step) pattern.Step {
			st.Slide = !st.Slide
			return st
		})
	case row >= rowAccent:
		store.Update(laneStep(row, col, rowAccent), func(st pattern.Step) pattern.Step {
			st.Accent = !st.Accent
			return st
		})
	case row >= rowSteps:
		step := laneStep(row, col, rowSteps)
		store.Update(step, func(st pattern.Step) pattern.Step {
			st.Active = !st.Active
			return st
		})
		s.SetCursor(step)
		s.notifyCursor()
	}
	s.markDirty()
}

// HandleNote sets the cursor step to the note's pitch class and activates
// it, then advances the cursor.
func (s *Surface) HandleNote(note, velocity uint8) {
	if velocity == 0 {
		return
	}
	cursor := s.Cursor()
	s.t.store.Update(cursor, func(st pattern.Step) pattern.Step {
		st.Active = true
		st.PitchClass = int(note) % pattern.NumPitches
		return st
	})
	s.SetCursor(cursor + 1)
	s.notifyCursor()
}

// RenderLEDs returns the LED image of the current pattern
func (s *Surface) RenderLEDs() []LEDState {
	// Colors
	stepOn := [3]uint8{234, 73, 116}    // pink
	stepOff := [3]uint8{80, 30, 50}     // dim pink
	accentOn := [3]uint8{253, 157, 110} // orange
	slideOn := [3]uint8{0, 200, 200}    // cyan
	laneOff := [3]uint8{40, 10, 30}     // dim
	pitchOn := [3]uint8{255, 255, 255}  // white
	pitchOff := [3]uint8{148, 18, 126}  // purple
	playing := [3]uint8{0, 255, 0}      // green
	playhead := [3]uint8{255, 255, 255} // white
	cursorColor := [3]uint8{255, 200, 0}

	snap := s.t.store.Snapshot()
	current := s.t.notifier.Current()
	cursor := s.Cursor()

	leds := make([]LEDState, 0, 4*pattern.NumSteps+pattern.NumPitches+4)
	for i, st := range snap {
		row, col := laneRow(i, rowSteps)
		color, channel := stepOff, midi.ChannelStatic
		switch {
		case i == current:
			color, channel = playhead, midi.ChannelPulse
		case i == cursor:
			color = cursorColor
		case st.Active:
			color = stepOn
		}
		leds = append(leds, LEDState{Row: row, Col: col, Color: color, Channel: channel})

		row, col = laneRow(i, rowAccent)
		color = laneOff
		if st.Accent {
			color = accentOn
		}
		leds = append(leds, LEDState{Row: row, Col: col, Color: color})

		row, col = laneRow(i, rowSlide)
		color = laneOff
		if st.Slide {
			color = slideOn
		}
		leds = append(leds, LEDState{Row: row, Col: col, Color: color})
	}

	sel := snap[cursor]
	for pc := 0; pc < pattern.NumPitches; pc++ {
		row, col := rowPitch+1, pc
		if pc >= 8 {
			row, col = rowPitch, pc-8
		}
		color := pitchOff
		if sel.Active && sel.PitchClass == pc {
			color = pitchOn
		}
		leds = append(leds, LEDState{Row: row, Col: col, Color: color})
	}

	playColor := laneOff
	if s.t.Running() {
		playColor = playing
	}
	leds = append(leds,
		LEDState{Row: rowTop, Col: topPlay, Color: playColor},
		LEDState{Row: rowTop, Col: topTempoDown, Color: accentOn},
		LEDState{Row: rowTop, Col: topTempoUp, Color: accentOn},
		LEDState{Row: rowTop, Col: topClear, Color: stepOff},
	)
	return leds
}

// ledLoop runs at fixed FPS and flushes LED updates
func (s *Surface) ledLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / ledFPS)
	defer ticker.Stop()

	var rev uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			dirty := s.ledDirty
			s.ledDirty = false
			s.mu.Unlock()

			// pattern edited from the TUI or a generator
			if r := s.t.store.Revision(); r != rev {
				rev = r
				dirty = true
			}

			if dirty {
				s.flushLEDs()
			}
		}
	}
}

// flushLEDs sends only changed LEDs to the controller (diffing + batching)
func (s *Surface) flushLEDs() {
	s.mu.Lock()
	ctrl := s.leds
	s.mu.Unlock()
	if ctrl == nil {
		return
	}

	newLEDs := s.RenderLEDs()
	newMap := make(map[[2]int]LEDState, len(newLEDs))

	var updates []midi.LEDUpdate

	s.mu.Lock()
	for _, led := range newLEDs {
		key := [2]int{led.Row, led.Col}
		newMap[key] = led

		// Only send if changed
		if prev, ok := s.prevLEDs[key]; !ok || prev != led {
			updates = append(updates, midi.LEDUpdate{
				Row:     led.Row,
				Col:     led.Col,
				Color:   led.Color,
				Channel: led.Channel,
			})
		}
	}

	// Clear LEDs that are no longer present
	for key := range s.prevLEDs {
		if _, ok := newMap[key]; !ok {
			updates = append(updates, midi.LEDUpdate{Row: key[0], Col: key[1]})
		}
	}
	s.prevLEDs = newMap
	s.mu.Unlock()

	if len(updates) > 0 {
		s.t.logger.Debug("leds", "batch", len(updates))
		ctrl.SetLEDBatch(updates)
	}
}
