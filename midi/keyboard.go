package midi

import (
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController handles a standard MIDI keyboard (input only)
type KeyboardController struct {
	id       string
	channel  int // 1-16, 0 = omni
	stopFunc func()

	closeOnce sync.Once
	padChan   chan PadEvent
	noteChan  chan NoteEvent
}

// NewKeyboardController listens on inPort. channel filters input (1-16),
// 0 accepts every channel.
func NewKeyboardController(id string, inPort drivers.In, channel int) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:       id,
		channel:  channel,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent, 32),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			var ch, note, velocity uint8
			if msg.GetNoteOn(&ch, &note, &velocity) {
				kb.handleNote(ch, note, velocity)
			}
		})
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("open keyboard input"))
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

func (kb *KeyboardController) handleNote(ch, note, velocity uint8) {
	if velocity == 0 {
		return
	}
	if kb.channel > 0 && int(ch)+1 != kb.channel {
		return
	}
	select {
	case kb.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: ch}:
	default:
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

// PadEvents never fires; keyboards have no pads
func (kb *KeyboardController) PadEvents() <-chan PadEvent {
	return kb.padChan
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

// SetLEDRGB is a no-op for keyboards (no visual feedback)
func (kb *KeyboardController) SetLEDRGB(row, col int, rgb [3]uint8, channel uint8) error {
	return nil
}

// SetLEDBatch is a no-op for keyboards
func (kb *KeyboardController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (kb *KeyboardController) Close() error {
	kb.closeOnce.Do(func() {
		if kb.stopFunc != nil {
			kb.stopFunc()
		}
		close(kb.padChan)
		close(kb.noteChan)
	})
	return nil
}
