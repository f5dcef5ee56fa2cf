// Package engine owns the event-ingestion pipeline: parse, classify, cell
// match, learn capture, debounce, plugin dispatch. MIDI delivery callbacks
// hand raw packets to a single run goroutine in arrival order, so no two
// pipeline stages ever touch the shared state concurrently.
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/padbridge/padctl/internal/classify"
	"github.com/padbridge/padctl/internal/deck"
	"github.com/padbridge/padctl/internal/gateway"
	"github.com/padbridge/padctl/internal/midimsg"
	"github.com/padbridge/padctl/internal/obs"
	"github.com/padbridge/padctl/internal/plugin"
)

// remoteSourceID marks events synthesized from companion commands
const remoteSourceID = -1

type rawPacket struct {
	sourceID   int
	sourceName string
	data       []byte
}

// Engine is the pipeline owner. Snapshot reads from other goroutines share
// the mutex with event processing; both hold it only briefly.
type Engine struct {
	log *zap.Logger

	// mu guards deck, classifier and debouncer state. The pipeline
	// goroutine and gateway handlers both take it for short sections.
	mu         sync.Mutex
	deck       *deck.Deck
	classifier *classify.Classifier
	debouncer  *deck.Debouncer
	registry   *plugin.Registry
	obs        *obs.Client

	packets chan rawPacket
	done    chan struct{}
}

// New wires the pipeline components together
func New(d *deck.Deck, cls *classify.Classifier, deb *deck.Debouncer, reg *plugin.Registry, obsClient *obs.Client, log *zap.Logger) *Engine {
	return &Engine{
		log:        log,
		deck:       d,
		classifier: cls,
		debouncer:  deb,
		registry:   reg,
		obs:        obsClient,
		packets:    make(chan rawPacket, 256),
		done:       make(chan struct{}),
	}
}

// Deliver hands a raw packet from a device callback to the pipeline,
// preserving arrival order. Non-blocking: a full queue drops the packet
// rather than stalling the MIDI delivery thread.
func (e *Engine) Deliver(sourceID int, sourceName string, data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case e.packets <- rawPacket{sourceID: sourceID, sourceName: sourceName, data: buf}:
	default:
		e.log.Warn("pipeline queue full, dropping packet", zap.String("source", sourceName))
	}
}

// Run processes packets until the context is cancelled
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case pkt := <-e.packets:
			for _, ev := range midimsg.Parse(pkt.data, pkt.sourceName, pkt.sourceID) {
				e.handleEvent(ev)
			}
		}
	}
}

// Wait blocks until Run has returned
func (e *Engine) Wait() {
	<-e.done
}

func (e *Engine) handleEvent(ev midimsg.Event) {
	if ev.Trigger.Kind == midimsg.TriggerUnknown {
		return
	}

	mapping, mode, ok := e.ingest(ev)
	if !ok {
		return
	}
	if err := e.registry.Dispatch(mapping.PluginID, mapping.TargetID, ev, mode); err != nil {
		e.log.Warn("dispatch failed",
			zap.String("plugin", mapping.PluginID),
			zap.String("target", mapping.TargetID),
			zap.Error(err))
	}
}

// ingest runs the stateful pipeline stages under the lock and reports
// whether the event should dispatch, and with what mapping and mode. The
// dispatch itself happens outside the critical section: plugin calls may
// touch the network.
func (e *Engine) ingest(ev midimsg.Event) (deck.ControlMapping, classify.Mode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	learnTarget, learning := e.deck.Learning()
	if learning {
		if idx, ok := e.deck.Capture(ev); ok {
			e.log.Info("trigger learned",
				zap.Int("cell", idx),
				zap.String("trigger", ev.Trigger.Label()),
				zap.String("source", ev.SourceName))
		}
	}

	idx, ok := e.deck.Match(ev)
	if !ok {
		return deck.ControlMapping{}, classify.ModeUnknown, false
	}
	cell, err := e.deck.Cell(idx)
	if err != nil {
		return deck.ControlMapping{}, classify.ModeUnknown, false
	}

	// preview and presentation state update regardless of learn mode, so the
	// user gets live feedback during capture
	evCopy := ev
	cell.LastEvent = &evCopy
	cell.LastActive = ev.Time
	cell.Nonce++

	mode := e.classifyEvent(ev, cell)

	if learning && idx == learnTarget {
		// no side effects while capturing
		return deck.ControlMapping{}, mode, false
	}
	if cell.Mapping == nil {
		return deck.ControlMapping{}, mode, false
	}
	if !e.debouncer.ShouldDispatch(ev, idx) {
		return deck.ControlMapping{}, mode, false
	}
	return *cell.Mapping, mode, true
}

// classifyEvent resolves the control mode for continuous encoder data and
// advances the cell's presentation state. The animation path always uses the
// signed-bit delta decoding; the volume path picks its own per family.
func (e *Engine) classifyEvent(ev midimsg.Event, cell *deck.Cell) classify.Mode {
	kind := ev.Trigger.Kind
	if kind != midimsg.TriggerControlChange && kind != midimsg.TriggerMackieVPot {
		// faders and pitch bend are always absolute positions
		if ev.Trigger.Continuous() {
			cell.Mode = classify.ModeAbsolute
			cell.Fill = ev.Normalized()
		}
		return classify.ModeAbsolute
	}

	key := classify.Key{SourceID: ev.SourceID, Channel: ev.Trigger.Channel, Controller: ev.Trigger.Number}
	if ev.Trigger.Kind == midimsg.TriggerMackieVPot {
		key.Controller = ev.Trigger.Index
	}
	mode := e.classifier.Observe(key, uint8(ev.Value))
	cell.Mode = mode

	if mode == classify.ModeRelative {
		delta := classify.SignedBitDelta(uint8(ev.Value))
		step := classify.PhaseStep(delta)
		cell.Phase += step
		switch {
		case delta > 0:
			cell.Direction = 1
		case delta < 0:
			cell.Direction = -1
		}
	} else {
		cell.Fill = ev.Normalized()
	}
	return mode
}

// SetLearn toggles learn mode and selects the capture target
func (e *Engine) SetLearn(active bool, target int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deck.SetLearn(active, target)
}

// ResetClassifier clears all mode evidence, used when the control plane
// disconnects or settings change
func (e *Engine) ResetClassifier() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classifier.Reset()
}

// ResetSource clears mode evidence for one device, used on disconnect
func (e *Engine) ResetSource(sourceID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classifier.ResetSource(sourceID)
}

// Bindings exports the persistent grid state
func (e *Engine) Bindings() []deck.CellBinding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deck.Bindings()
}

// triggerStyle maps a trigger to the companion UI style hint
func triggerStyle(t *midimsg.Trigger, mode classify.Mode) string {
	if t == nil {
		return "button"
	}
	if !t.Continuous() {
		return "button"
	}
	if mode == classify.ModeRelative {
		return "encoder"
	}
	return "slider"
}

// Snapshot builds the full remote-control view. Safe to call concurrently
// with event processing; it is a point-in-time read.
func (e *Engine) Snapshot() gateway.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := gateway.Snapshot{Pads: make([]gateway.Pad, 0, deck.NumCells)}

	scenes := e.obs.Scenes()
	current := e.obs.CurrentScene()
	snap.SceneName = current.Name
	snap.RecordingActive = e.obs.Recording()
	// -1 until the current scene is found in the list, so a mid-refresh
	// mismatch never reads as "first scene live"
	snap.CurrentSceneIndex = -1
	for i, s := range scenes {
		snap.Scenes = append(snap.Scenes, s.Name)
		if s.UUID == current.UUID {
			snap.CurrentSceneIndex = i
		}
	}

	for i := 0; i < deck.NumCells; i++ {
		cell, _ := e.deck.Cell(i)
		pad := gateway.Pad{
			ID:    i,
			Title: fmt.Sprintf("Pad %d", i+1),
		}
		if cell.Trigger != nil {
			pad.TriggerLabel = cell.Trigger.Label()
		}
		pad.TriggerStyle = triggerStyle(cell.Trigger, cell.Mode)
		if cell.Mapping != nil {
			pad.HasMapping = true
			pad.TargetTitle = e.registry.TargetTitle(cell.Mapping.PluginID, cell.Mapping.TargetID)
			if p, ok := e.registry.Get(cell.Mapping.PluginID); ok {
				if sr, ok := p.(plugin.StatusReporter); ok {
					pad.StatusText = sr.StatusFor(cell.Mapping.TargetID)
				}
				if vr, ok := p.(plugin.ValueReporter); ok {
					if v, reported := vr.ValueFor(cell.Mapping.TargetID); reported {
						value := v
						pad.NormalizedValue = &value
					}
				}
			}
		}
		snap.Pads = append(snap.Pads, pad)
	}
	return snap
}

// Tap dispatches a synthesized discrete event for a pad, on behalf of the
// companion remote
func (e *Engine) Tap(pad int) error {
	e.mu.Lock()
	cell, err := e.deck.Cell(pad)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if cell.Mapping == nil {
		e.mu.Unlock()
		return fmt.Errorf("pad %d has no mapping", pad)
	}
	mapping := *cell.Mapping
	ev := remoteEvent(cell, 127)
	e.mu.Unlock()
	return e.registry.Dispatch(mapping.PluginID, mapping.TargetID, ev, classify.ModeAbsolute)
}

// SetValue dispatches a synthesized absolute value for a pad. The gateway
// clamps before calling; the value is trusted to be in [0,1].
func (e *Engine) SetValue(pad int, normalized float64) error {
	e.mu.Lock()
	cell, err := e.deck.Cell(pad)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if cell.Mapping == nil {
		e.mu.Unlock()
		return fmt.Errorf("pad %d has no mapping", pad)
	}
	cell.Fill = normalized
	mapping := *cell.Mapping
	// match the value scale the cell's trigger family normalizes by
	scale := 127.0
	if cell.Trigger != nil {
		switch cell.Trigger.Kind {
		case midimsg.TriggerPitchBend, midimsg.TriggerMackieFader:
			scale = 16383.0
		}
	}
	ev := remoteEvent(cell, int(normalized*scale))
	e.mu.Unlock()
	return e.registry.Dispatch(mapping.PluginID, mapping.TargetID, ev, classify.ModeAbsolute)
}

// System runs a gateway system command
func (e *Engine) System(action string) error {
	switch action {
	case gateway.ActionPreviousScene:
		return e.obs.StepScene(-1)
	case gateway.ActionNextScene:
		return e.obs.StepScene(1)
	case gateway.ActionToggleRecording:
		return e.obs.ToggleRecording()
	case gateway.ActionRefresh:
		return e.obs.RefreshCatalog()
	}
	return fmt.Errorf("unknown system action %q", action)
}

// remoteEvent synthesizes an event for a companion command, reusing the
// cell's trigger identity when it has one
func remoteEvent(cell *deck.Cell, value int) midimsg.Event {
	trig := midimsg.Trigger{Kind: midimsg.TriggerNote}
	if cell.Trigger != nil {
		trig = *cell.Trigger
	}
	return midimsg.Event{
		SourceName: "remote",
		SourceID:   remoteSourceID,
		Protocol:   midimsg.ProtocolRaw,
		Trigger:    trig,
		Value:      value,
	}
}
