package midi

import (
	"io"
	"sync"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	charmlog "github.com/charmbracelet/log"
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Output is the external synth sink: one bound destination, one channel.
// Sends never return errors; failures are logged and reported as false.
type Output struct {
	mu       sync.Mutex
	backends []Backend
	sender   Sender
	selected string
	channel  uint8
	log      *EventLog
	logger   *charmlog.Logger
	now      func() time.Time
}

// NewOutput creates an unbound output over the given backends
func NewOutput(logger *charmlog.Logger, backends ...Backend) *Output {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &Output{
		backends: backends,
		log:      NewEventLog(),
		logger:   logger,
		now:      time.Now,
	}
}

// Devices lists destinations across all backends
func (o *Output) Devices() []Device {
	o.mu.Lock()
	backends := o.backends
	o.mu.Unlock()

	var devices []Device
	for _, b := range backends {
		devices = append(devices, b.Discover()...)
	}
	return devices
}

// SelectOutput binds the destination with id; "" unbinds. The port is opened
// without holding the lock so sends continue on the old destination meanwhile.
// A failed selection leaves the output unbound.
func (o *Output) SelectOutput(id string) error {
	o.mu.Lock()
	if id == o.selected && (id == "" || o.sender != nil) {
		o.mu.Unlock()
		return nil
	}
	backends := o.backends
	o.mu.Unlock()

	var (
		sender Sender
		err    error
	)
	if id != "" {
		sender, err = openID(backends, id)
	}

	o.mu.Lock()
	old := o.sender
	o.sender = sender
	o.selected = ""
	if sender != nil {
		o.selected = id
	}
	o.mu.Unlock()

	if old != nil {
		old.Close()
	}
	switch {
	case err != nil:
		return err
	case id == "":
		o.logger.Info("output unbound")
	default:
		o.logger.Info("output selected", "id", id)
	}
	return nil
}

func openID(backends []Backend, id string) (Sender, error) {
	prefix, name, ok := splitID(id)
	if !ok {
		return nil, fault.Wrap(ErrUnknownDevice, fmsg.With("select "+id))
	}
	for _, b := range backends {
		if b.Prefix() != prefix {
			continue
		}
		sender, err := b.Open(name)
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With("select "+id))
		}
		return sender, nil
	}
	return nil, fault.Wrap(ErrUnknownDevice, fmsg.With("select "+id))
}

// Selected returns the bound destination id, "" when unbound
func (o *Output) Selected() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

// SetChannel sets the 0-based channel, clamped to 0..15
func (o *Output) SetChannel(ch int) {
	if ch < 0 {
		ch = 0
	}
	if ch > 15 {
		ch = 15
	}
	o.mu.Lock()
	o.channel = uint8(ch)
	o.mu.Unlock()
}

// Channel returns the 0-based channel
func (o *Output) Channel() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return int(o.channel)
}

// Log returns the sent-message log
func (o *Output) Log() *EventLog {
	return o.log
}

// SendNoteOn sends a Note On on the current channel
func (o *Output) SendNoteOn(note, velocity uint8) (LogEntry, bool) {
	return o.send(func(ch uint8) gomidi.Message { return gomidi.NoteOn(ch, note&0x7F, velocity&0x7F) })
}

// SendNoteOff sends a Note Off (velocity 0) on the current channel
func (o *Output) SendNoteOff(note uint8) (LogEntry, bool) {
	return o.send(func(ch uint8) gomidi.Message { return gomidi.NoteOff(ch, note&0x7F) })
}

// Panic sends All Notes Off on the current channel
func (o *Output) Panic() {
	o.send(func(ch uint8) gomidi.Message { return gomidi.ControlChange(ch, CCAllNotesOff, 0) })
}

func (o *Output) send(build func(ch uint8) gomidi.Message) (LogEntry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sender == nil {
		return LogEntry{}, false
	}

	msg := build(o.channel)
	raw := []byte(msg)
	if err := o.sender.Send(raw); err != nil {
		o.logger.Error("send failed", "dest", o.selected, "msg", Describe(raw), "err", err)
		return LogEntry{}, false
	}

	entry := LogEntry{Time: o.now(), Raw: raw, Description: Describe(raw)}
	o.log.Append(entry)
	o.logger.Debug(entry.Description)
	return entry, true
}

// Close unbinds the output
func (o *Output) Close() error {
	return o.SelectOutput("")
}
