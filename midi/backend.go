package midi

import (
	"errors"
	"strings"
)

// ErrUnknownDevice is returned for ids no backend recognizes
var ErrUnknownDevice = errors.New("unknown midi device")

// Device is a selectable MIDI destination
type Device struct {
	ID   string // backend prefix + name, e.g. "port:IAC Driver Bus 1"
	Name string
}

// Sender writes raw MIDI bytes to an opened destination
type Sender interface {
	Send(msg []byte) error
	Close() error
}

// Backend discovers and opens destinations of one kind
type Backend interface {
	// Prefix is the id prefix this backend owns, e.g. "port"
	Prefix() string
	// Discover lists destinations; unsupported platforms return nil
	Discover() []Device
	// Open opens the destination with the given name (id without prefix)
	Open(name string) (Sender, error)
}

// splitID splits "prefix:name" ids
func splitID(id string) (prefix, name string, ok bool) {
	prefix, name, ok = strings.Cut(id, ":")
	if !ok || prefix == "" || name == "" {
		return "", "", false
	}
	return prefix, name, true
}
