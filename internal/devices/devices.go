// Package devices handles MIDI input discovery and listening, handing raw
// byte deliveries to the event pipeline with a stable source identity.
package devices

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
	"go.uber.org/zap"
)

// RawHandler receives one raw message from a source. Called on the driver's
// delivery goroutine; implementations hand off to their own context.
type RawHandler func(sourceID int, sourceName string, data []byte)

type source struct {
	id   int
	name string
	stop func()
}

// Manager handles MIDI device discovery and listening
type Manager struct {
	log          *zap.Logger
	handler      RawHandler
	onDisconnect func(sourceID int)

	mu      sync.RWMutex
	nextID  int
	sources map[string]*source
}

// NewManager creates a manager. onDisconnect fires when a source stops
// listening, so dependents can invalidate per-source state; it may be nil.
func NewManager(handler RawHandler, onDisconnect func(sourceID int), log *zap.Logger) *Manager {
	return &Manager{
		log:          log,
		handler:      handler,
		onDisconnect: onDisconnect,
		nextID:       1,
		sources:      make(map[string]*source),
	}
}

// Close stops all listeners and cleans up the MIDI driver
func (m *Manager) Close() {
	m.mu.Lock()
	for name, src := range m.sources {
		src.stop()
		delete(m.sources, name)
	}
	m.mu.Unlock()
	midi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// getInPort returns an input port by name
func (m *Manager) getInPort(name string) drivers.In {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in
		}
	}
	return nil
}

// Listen begins listening for raw MIDI input on the named port, assigning a
// numeric source identity that stays stable for the life of the listener
func (m *Manager) Listen(portName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sources[portName]; ok {
		return existing.id, nil
	}

	inPort := m.getInPort(portName)
	if inPort == nil {
		return 0, fmt.Errorf("input port not found: %s", portName)
	}

	id := m.nextID
	m.nextID++

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		// midi.Message is the raw byte slice; the parser owns interpretation
		m.handler(id, portName, []byte(msg))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to start listening: %w", err)
	}

	m.sources[portName] = &source{id: id, name: portName, stop: stop}
	m.log.Info("listening on MIDI input", zap.String("port", portName), zap.Int("source_id", id))
	return id, nil
}

// ListenAll starts listening on every available input port
func (m *Manager) ListenAll() {
	for _, name := range m.ListInPorts() {
		if _, err := m.Listen(name); err != nil {
			m.log.Warn("skipping MIDI input", zap.String("port", name), zap.Error(err))
		}
	}
}

// Stop stops listening on the named port and invalidates its source
func (m *Manager) Stop(portName string) {
	m.mu.Lock()
	src, ok := m.sources[portName]
	if ok {
		delete(m.sources, portName)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	src.stop()
	m.log.Info("stopped MIDI input", zap.String("port", portName), zap.Int("source_id", src.id))
	if m.onDisconnect != nil {
		m.onDisconnect(src.id)
	}
}

// SourceID returns the numeric identity for a listening port
func (m *Manager) SourceID(portName string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[portName]
	if !ok {
		return 0, false
	}
	return src.id, true
}
