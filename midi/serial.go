package midi

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"go.bug.st/serial"
)

// DINBaudRate is the MIDI 1.0 DIN serial rate
const DINBaudRate = 31250

// SerialBackend sends raw MIDI bytes down a serial line (a USB-serial
// adapter wired to a DIN socket, or a microcontroller bridge)
type SerialBackend struct {
	BaudRate int // 0 means DINBaudRate
}

func (SerialBackend) Prefix() string { return "serial" }

// Discover lists serial ports
func (b SerialBackend) Discover() []Device {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil
	}
	devices := make([]Device, 0, len(ports))
	for _, p := range ports {
		devices = append(devices, Device{ID: b.Prefix() + ":" + p, Name: p + " (DIN)"})
	}
	return devices
}

// Open opens the serial port at path
func (b SerialBackend) Open(path string) (Sender, error) {
	baud := b.BaudRate
	if baud <= 0 {
		baud = DINBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("open serial", "Could not open serial port "+path))
	}
	return &serialSender{port: port}, nil
}

type serialSender struct {
	port serial.Port
}

func (s *serialSender) Send(msg []byte) error {
	_, err := s.port.Write(msg)
	return err
}

func (s *serialSender) Close() error {
	return s.port.Close()
}
