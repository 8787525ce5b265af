package midi

import (
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// portScanTimeout bounds port enumeration (CoreMIDI can hang)
const portScanTimeout = 3 * time.Second

// RtMidiBackend exposes host MIDI output ports through the rtmidi driver
type RtMidiBackend struct{}

func (RtMidiBackend) Prefix() string { return "port" }

// Discover lists output ports, or nil if enumeration hangs or fails
func (b RtMidiBackend) Discover() []Device {
	outs, ok := scanOutPorts()
	if !ok {
		return nil
	}
	devices := make([]Device, 0, len(outs))
	for _, p := range outs {
		devices = append(devices, Device{ID: b.Prefix() + ":" + p.String(), Name: p.String()})
	}
	return devices
}

// Open opens the output port called name
func (RtMidiBackend) Open(name string) (Sender, error) {
	out, err := gomidi.FindOutPort(name)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("find port", "MIDI port "+name+" not found"))
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("open port", "Could not open MIDI port "+name))
	}
	return &portSender{out: out, send: send}, nil
}

type portSender struct {
	out  drivers.Out
	send func(gomidi.Message) error
}

func (p *portSender) Send(msg []byte) error {
	return p.send(gomidi.Message(msg))
}

func (p *portSender) Close() error {
	return p.out.Close()
}

// scanOutPorts enumerates output ports with a timeout
func scanOutPorts() ([]drivers.Out, bool) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		defer func() {
			// no driver on this platform
			if recover() != nil {
				ch <- nil
			}
		}()
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case outs := <-ch:
		return outs, outs != nil
	case <-time.After(portScanTimeout):
		return nil, false
	}
}

// scanPorts enumerates input and output ports with a timeout
func scanPorts() (ins []drivers.In, outs []drivers.Out, ok bool) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		defer func() {
			if recover() != nil {
				ch <- portsResult{}
			}
		}()
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, true
	case <-time.After(portScanTimeout):
		// CoreMIDI is hung - skip this scan
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, nil, false
	}
}
