package midi

import (
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	charmlog "github.com/charmbracelet/log"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Launchpad X SysEx bodies (without F0/F7)
var (
	sysexProgrammerMode = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F}
	sysexLiveMode       = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x00}
	sysexMaxBrightness  = []byte{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F}
)

// launchpadPalette maps palette velocities to approximate RGB, {velocity, R, G, B}
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},         // off
	{5, 255, 0, 0},       // red
	{7, 180, 60, 60},     // dim red
	{9, 255, 100, 0},     // orange
	{11, 180, 80, 40},    // dim orange
	{13, 255, 200, 0},    // yellow
	{19, 0, 100, 0},      // dim green
	{21, 0, 255, 0},      // green
	{37, 0, 200, 200},    // cyan
	{43, 40, 60, 120},    // dim blue
	{45, 0, 100, 255},    // blue
	{49, 150, 0, 200},    // purple
	{53, 255, 80, 180},   // pink
	{55, 80, 30, 50},     // dim pink
	{59, 40, 10, 30},     // dark plum
	{81, 148, 18, 126},   // magenta
	{84, 255, 150, 50},   // bright orange
	{119, 255, 255, 255}, // white
}

// LaunchpadController drives a Novation Launchpad X in programmer mode
type LaunchpadController struct {
	id       string
	send     func(msg gomidi.Message) error
	stopFunc func()
	logger   *charmlog.Logger

	closeOnce sync.Once
	padChan   chan PadEvent
	noteChan  chan NoteEvent
}

// NewLaunchpadController opens the ports and switches the device to programmer mode
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out, logger *charmlog.Logger) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:       id,
		logger:   logger,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 32),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("open launchpad output"))
		}
		lp.send = send
		lp.send(gomidi.SysEx(sysexProgrammerMode))
		lp.send(gomidi.SysEx(sysexMaxBrightness))
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, lp.handle)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("open launchpad input"))
		}
		lp.stopFunc = stop
	}

	return lp, nil
}

// handle turns grid notes and top-row CCs into pad presses
func (lp *LaunchpadController) handle(msg gomidi.Message, timestampms int32) {
	var channel, note, velocity, cc, value uint8

	row, col := -1, -1
	switch {
	case msg.GetNoteOn(&channel, &note, &velocity) && velocity > 0:
		row, col = NoteToRowCol(note)
	case msg.GetControlChange(&channel, &cc, &value) && value > 0:
		row, col = ccToRowCol(cc)
		velocity = value
	}
	if row < 0 {
		return
	}

	select {
	case lp.padChan <- PadEvent{Row: row, Col: col, Velocity: velocity}:
	default:
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

// NoteEvents never fires; pads arrive on PadEvents
func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan
}

func (lp *LaunchpadController) SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error {
	return lp.SetLEDBatch([]LEDUpdate{{Row: row, Col: col, Color: rgb, Channel: channel}})
}

// SetLEDBatch sends one NoteOn per LED (top row uses CC)
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil || len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		color := NearestLaunchpadColor(u.Color)
		var err error
		if u.Row == 8 {
			err = lp.send(gomidi.ControlChange(u.Channel, uint8(91+u.Col), color))
		} else {
			err = lp.send(gomidi.NoteOn(u.Channel, RowColToNote(u.Row, u.Col), color))
		}
		if err != nil {
			return fault.Wrap(err, fmsg.With("launchpad led"))
		}
	}

	if lp.logger != nil {
		lp.logger.Debug("led batch", "id", lp.id, "count", len(updates))
	}
	return nil
}

// NearestLaunchpadColor finds the closest palette velocity for an RGB value
func NearestLaunchpadColor(rgb [3]uint8) uint8 {
	best := uint8(0)
	bestDist := -1

	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])
	for _, p := range launchpadPalette {
		dr, dg, db := r-int(p[1]), g-int(p[2]), b-int(p[3])
		dist := dr*dr + dg*dg + db*db
		if bestDist < 0 || dist < bestDist {
			bestDist = dist
			best = p[0]
		}
	}
	return best
}

// Close blanks the grid, returns the device to live mode and stops input
func (lp *LaunchpadController) Close() error {
	lp.closeOnce.Do(func() {
		if lp.send != nil {
			var updates []LEDUpdate
			for row := 0; row < 9; row++ {
				for col := 0; col < 9; col++ {
					if row == 8 && col == 8 {
						continue // no LED at 8,8
					}
					updates = append(updates, LEDUpdate{Row: row, Col: col})
				}
			}
			lp.SetLEDBatch(updates)
			lp.send(gomidi.SysEx(sysexLiveMode))
		}
		if lp.stopFunc != nil {
			lp.stopFunc()
		}
		close(lp.padChan)
		close(lp.noteChan)
	})
	return nil
}

// Launchpad X note mapping
// 8x8 Grid:  Row 0 (bottom) = notes 11-18, Row 7 = notes 81-88
// Side col:  Col 8 = notes 19, 29, ... 89
// Top row:   Row 8 = CC 91-98

// RowColToNote maps a grid position to its programmer-mode note
func RowColToNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

// NoteToRowCol maps a programmer-mode note to a grid position, -1,-1 if none
func NoteToRowCol(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

// ccToRowCol converts CC messages to row/col (for top row buttons)
func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}
