package midi

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSender struct {
	mu     sync.Mutex
	msgs   [][]byte
	err    error
	closed bool
}

func (s *fakeSender) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, append([]byte(nil), msg...))
	return nil
}

func (s *fakeSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeBackend struct {
	prefix  string
	names   []string
	senders map[string]*fakeSender
	openErr error
	opening chan struct{} // signalled when Open starts, if set
	gate    chan struct{} // Open waits on it, if set
}

func newFakeBackend(prefix string, names ...string) *fakeBackend {
	return &fakeBackend{prefix: prefix, names: names, senders: make(map[string]*fakeSender)}
}

func (b *fakeBackend) Prefix() string { return b.prefix }

func (b *fakeBackend) Discover() []Device {
	var out []Device
	for _, n := range b.names {
		out = append(out, Device{ID: b.prefix + ":" + n, Name: n})
	}
	return out
}

func (b *fakeBackend) Open(name string) (Sender, error) {
	if b.opening != nil {
		b.opening <- struct{}{}
	}
	if b.gate != nil {
		<-b.gate
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeSender{}
	b.senders[name] = s
	return s, nil
}

func TestOutputUnboundIsNoop(t *testing.T) {
	o := NewOutput(nil, newFakeBackend("port", "synth"))
	if e, ok := o.SendNoteOn(36, 90); ok || e.Raw != nil {
		t.Errorf("unbound SendNoteOn = %+v, %v", e, ok)
	}
	if _, ok := o.SendNoteOff(36); ok {
		t.Error("unbound SendNoteOff reported success")
	}
	o.Panic()
	if len(o.Log().Entries()) != 0 {
		t.Error("unbound sends were logged")
	}
}

func TestOutputDevicesAcrossBackends(t *testing.T) {
	o := NewOutput(nil, newFakeBackend("port", "IAC Bus 1", "TB-3"), newFakeBackend("serial", "/dev/ttyUSB0"))
	devs := o.Devices()
	want := []string{"port:IAC Bus 1", "port:TB-3", "serial:/dev/ttyUSB0"}
	if len(devs) != len(want) {
		t.Fatalf("got %d devices, want %d", len(devs), len(want))
	}
	for i, id := range want {
		if devs[i].ID != id {
			t.Errorf("device %d = %q, want %q", i, devs[i].ID, id)
		}
	}
}

func TestOutputSendBytesAndLog(t *testing.T) {
	b := newFakeBackend("port", "synth")
	o := NewOutput(nil, b)
	o.now = func() time.Time { return time.Unix(100, 0) }
	if err := o.SelectOutput("port:synth"); err != nil {
		t.Fatalf("SelectOutput: %v", err)
	}
	o.SetChannel(2)

	on, ok := o.SendNoteOn(36, 90)
	if !ok {
		t.Fatal("SendNoteOn failed")
	}
	if !bytes.Equal(on.Raw, []byte{0x92, 36, 90}) {
		t.Errorf("note on bytes = % X", on.Raw)
	}
	if on.Description != "Note On  | Ch: 3 | Note: 36 | Vel: 90" {
		t.Errorf("description = %q", on.Description)
	}

	off, ok := o.SendNoteOff(36)
	if !ok || !bytes.Equal(off.Raw, []byte{0x82, 36, 0}) {
		t.Errorf("note off = % X, %v", off.Raw, ok)
	}
	if off.Description != "Note Off | Ch: 3 | Note: 36" {
		t.Errorf("description = %q", off.Description)
	}

	o.Panic()
	sent := b.senders["synth"].msgs
	if len(sent) != 3 || !bytes.Equal(sent[2], []byte{0xB2, 123, 0}) {
		t.Errorf("panic bytes = % X", sent)
	}
	if n := len(o.Log().Entries()); n != 3 {
		t.Errorf("log has %d entries, want 3", n)
	}
}

func TestOutputSetChannelClamps(t *testing.T) {
	o := NewOutput(nil)
	for _, tt := range []struct{ in, want int }{{-3, 0}, {0, 0}, {9, 9}, {15, 15}, {16, 15}, {200, 15}} {
		o.SetChannel(tt.in)
		if o.Channel() != tt.want {
			t.Errorf("SetChannel(%d) -> %d, want %d", tt.in, o.Channel(), tt.want)
		}
	}
}

func TestOutputSendFailureNotRaised(t *testing.T) {
	b := newFakeBackend("port", "synth")
	o := NewOutput(nil, b)
	o.SelectOutput("port:synth")
	b.senders["synth"].err = errors.New("device unplugged")

	if _, ok := o.SendNoteOn(40, 127); ok {
		t.Error("failed send reported success")
	}
	if len(o.Log().Entries()) != 0 {
		t.Error("failed send was logged as sent")
	}
}

func TestOutputSelectOutput(t *testing.T) {
	b := newFakeBackend("port", "a", "b")
	o := NewOutput(nil, b)

	if err := o.SelectOutput("port:a"); err != nil {
		t.Fatal(err)
	}
	if err := o.SelectOutput("port:b"); err != nil {
		t.Fatal(err)
	}
	if !b.senders["a"].closed {
		t.Error("previous destination not closed")
	}
	if o.Selected() != "port:b" {
		t.Errorf("Selected() = %q", o.Selected())
	}

	if err := o.SelectOutput("usb:x"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("unknown prefix error = %v", err)
	}
	if err := o.SelectOutput("nocolon"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("malformed id error = %v", err)
	}
	if o.Selected() != "" {
		t.Error("failed selection should leave the output unbound")
	}

	b.openErr = errors.New("busy")
	if err := o.SelectOutput("port:a"); err == nil {
		t.Error("open failure not returned")
	}
	if err := o.SelectOutput(""); err != nil {
		t.Errorf("unbind: %v", err)
	}
}

func TestOutputSendsWhileOpening(t *testing.T) {
	b := newFakeBackend("port", "a", "b")
	o := NewOutput(nil, b)
	if err := o.SelectOutput("port:a"); err != nil {
		t.Fatal(err)
	}
	old := b.senders["a"]

	b.opening = make(chan struct{}, 1)
	b.gate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- o.SelectOutput("port:b") }()
	<-b.opening

	sent := make(chan bool, 1)
	go func() {
		_, ok := o.SendNoteOn(36, 100)
		sent <- ok
	}()
	select {
	case ok := <-sent:
		if !ok {
			t.Error("send during open failed")
		}
	case <-time.After(time.Second):
		t.Fatal("send blocked while the port was opening")
	}

	close(b.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if o.Selected() != "port:b" {
		t.Errorf("Selected() = %q", o.Selected())
	}
	if len(old.msgs) != 1 || !old.closed {
		t.Errorf("old destination got %d messages, closed=%v", len(old.msgs), old.closed)
	}
}

func TestEventLogBounded(t *testing.T) {
	l := NewEventLog()
	for i := 0; i < LogSize+25; i++ {
		l.Append(LogEntry{Description: fmt.Sprint(i)})
	}
	entries := l.Entries()
	if len(entries) != LogSize {
		t.Fatalf("len = %d, want %d", len(entries), LogSize)
	}
	if entries[0].Description != "25" || entries[LogSize-1].Description != fmt.Sprint(LogSize+24) {
		t.Errorf("kept %s..%s, want the newest", entries[0].Description, entries[LogSize-1].Description)
	}
	if l.Total() != LogSize+25 {
		t.Errorf("Total() = %d", l.Total())
	}

	entries[0].Description = "mutated"
	if l.Entries()[0].Description == "mutated" {
		t.Error("Entries() exposed internal storage")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		raw  []byte
		want string
	}{
		{[]byte{0x90, 36, 127}, "Note On  | Ch: 1 | Note: 36 | Vel: 127"},
		{[]byte{0x8F, 47, 0}, "Note Off | Ch: 16 | Note: 47"},
		{[]byte{0xB0, 123, 0}, "Panic    | Ch: 1 | All Notes Off"},
		{[]byte{0xB1, 74, 64}, "CC       | Ch: 2 | CC: 74 | Val: 64"},
		{[]byte{0xF8}, "Raw      | F8"},
	}
	for _, tt := range tests {
		if got := Describe(tt.raw); got != tt.want {
			t.Errorf("Describe(% X) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
