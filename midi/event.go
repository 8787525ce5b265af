package midi

import (
	"fmt"
	"sync"
	"time"
)

// MIDI status bytes (high nibble)
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
	CC      uint8 = 0xB0
)

// CCAllNotesOff is the channel mode controller silencing every note
const CCAllNotesOff uint8 = 123

// LogSize is how many sent messages the EventLog keeps
const LogSize = 50

// LogEntry records one message that reached the output
type LogEntry struct {
	Time        time.Time
	Raw         []byte
	Description string
}

// Describe renders a 3-byte channel voice message for the monitor.
// Channels are shown 1-based.
func Describe(raw []byte) string {
	if len(raw) < 3 {
		return fmt.Sprintf("Raw      | % X", raw)
	}
	status, ch := raw[0]&0xF0, raw[0]&0x0F
	switch status {
	case NoteOn:
		return fmt.Sprintf("Note On  | Ch: %d | Note: %d | Vel: %d", ch+1, raw[1], raw[2])
	case NoteOff:
		return fmt.Sprintf("Note Off | Ch: %d | Note: %d", ch+1, raw[1])
	case CC:
		if raw[1] == CCAllNotesOff {
			return fmt.Sprintf("Panic    | Ch: %d | All Notes Off", ch+1)
		}
		return fmt.Sprintf("CC       | Ch: %d | CC: %d | Val: %d", ch+1, raw[1], raw[2])
	}
	return fmt.Sprintf("Raw      | % X", raw)
}

// EventLog keeps the most recent LogSize entries
type EventLog struct {
	mu      sync.Mutex
	entries []LogEntry
	total   uint64

	// Notify UI of new entries
	UpdateChan chan struct{}
}

func NewEventLog() *EventLog {
	return &EventLog{
		entries:    make([]LogEntry, 0, LogSize),
		UpdateChan: make(chan struct{}, 1),
	}
}

// Append adds an entry, dropping the oldest beyond LogSize
func (l *EventLog) Append(e LogEntry) {
	l.mu.Lock()
	if len(l.entries) == LogSize {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:LogSize-1]
	}
	l.entries = append(l.entries, e)
	l.total++
	l.mu.Unlock()

	select {
	case l.UpdateChan <- struct{}{}:
	default:
	}
}

// Entries returns a copy, oldest first
func (l *EventLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Total returns the number of entries ever appended
func (l *EventLog) Total() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// Clear empties the log
func (l *EventLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
