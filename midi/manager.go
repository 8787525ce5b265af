package midi

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// KeyboardSpec names an input port to attach as a step-entry keyboard
type KeyboardSpec struct {
	PortName string // case-insensitive substring of the port name
	Channel  int    // 1-16, 0 = any
}

// DeviceManager handles hot-plug detection of MIDI controllers
type DeviceManager struct {
	controllers map[string]Controller
	keyboards   []KeyboardSpec
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	logger      *charmlog.Logger
}

// NewDeviceManager creates a device manager. Launchpads are detected by
// name; keyboards only when listed in keyboards.
func NewDeviceManager(logger *charmlog.Logger, keyboards ...KeyboardSpec) *DeviceManager {
	if logger == nil {
		logger = charmlog.New(io.Discard)
	}
	return &DeviceManager{
		controllers: make(map[string]Controller),
		keyboards:   keyboards,
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		logger:      logger,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	snapshot := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		snapshot[k] = v
	}
	return snapshot
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

func (dm *DeviceManager) scan() {
	inPorts, outPorts, ok := scanPorts()
	if !ok {
		dm.logger.Warn("port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)

	for i, inPort := range inPorts {
		id := inPort.String()
		kind, kbd := dm.classify(id)
		if kind == ControllerUnknown {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var (
			ctrl Controller
			err  error
		)
		switch kind {
		case ControllerLaunchpad:
			ctrl, err = NewLaunchpadController(id, inPorts[i], matchingOut(id, outPorts), dm.logger)
		case ControllerKeyboard:
			ctrl, err = NewKeyboardController(id, inPorts[i], kbd.Channel)
		}
		if err != nil {
			dm.logger.Warn("controller open failed", "id", id, "err", err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = ctrl
		dm.mu.Unlock()

		dm.logger.Info("controller connected", "id", id, "type", kind)
		dm.events <- DeviceEvent{Type: DeviceConnected, Controller: ctrl, ID: id}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		dm.logger.Info("controller disconnected", "id", id)
		dm.events <- DeviceEvent{Type: DeviceDisconnected, ID: id}
	}
	dm.mu.Unlock()
}

// classify decides what kind of controller an input port is
func (dm *DeviceManager) classify(name string) (ControllerType, KeyboardSpec) {
	if isLaunchpad(name) {
		return ControllerLaunchpad, KeyboardSpec{}
	}
	lower := strings.ToLower(name)
	for _, k := range dm.keyboards {
		if k.PortName != "" && strings.Contains(lower, strings.ToLower(k.PortName)) {
			return ControllerKeyboard, k
		}
	}
	return ControllerUnknown, KeyboardSpec{}
}

func matchingOut(name string, outs []drivers.Out) drivers.Out {
	name = strings.ToLower(name)
	for _, op := range outs {
		if strings.ToLower(op.String()) == name {
			return op
		}
	}
	return nil
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}
