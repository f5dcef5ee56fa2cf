package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Client-side tunables; all configurable, these are the defaults
const (
	DefaultValueThrottle   = 80 * time.Millisecond
	DefaultEmptyRetries    = 3
	DefaultEmptyRetryDelay = 250 * time.Millisecond
	DefaultProbeTimeout    = 2 * time.Second
)

// ClientConfig carries the client tunables
type ClientConfig struct {
	ValueThrottle   time.Duration
	EmptyRetries    int
	EmptyRetryDelay time.Duration
	ProbeTimeout    time.Duration
}

func (c *ClientConfig) fillDefaults() {
	if c.ValueThrottle <= 0 {
		c.ValueThrottle = DefaultValueThrottle
	}
	if c.EmptyRetries <= 0 {
		c.EmptyRetries = DefaultEmptyRetries
	}
	if c.EmptyRetryDelay <= 0 {
		c.EmptyRetryDelay = DefaultEmptyRetryDelay
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
}

// View is the client's local model of the server state, updated
// optimistically on mutating commands and reconciled by snapshots
type View struct {
	Endpoint          string
	AppName           string
	SceneName         string
	Scenes            []string
	CurrentSceneIndex int
	RecordingActive   bool
	Pads              []Pad
}

// Client discovers gateway servers, races candidates, and keeps a live view.
// Safe for concurrent use.
type Client struct {
	log      *zap.Logger
	cfg      ClientConfig
	onChange func(View)

	probeToken atomic.Uint64

	// reqMu serializes the persistent session: one request/response pair on
	// the wire at a time, and at most one dial
	reqMu sync.Mutex

	mu         sync.Mutex
	candidates map[string]struct{}
	endpoint   string
	conn       net.Conn
	view       View
	sceneCache map[string][]Pad

	refreshing     bool
	refreshPending bool

	pendingValues  map[int]float64
	throttleActive map[int]bool
}

// NewClient creates a client. onChange fires with a copy of the view after
// every change; it may be nil.
func NewClient(cfg ClientConfig, onChange func(View), log *zap.Logger) *Client {
	cfg.fillDefaults()
	return &Client{
		log:            log,
		cfg:            cfg,
		onChange:       onChange,
		candidates:     make(map[string]struct{}),
		sceneCache:     make(map[string][]Pad),
		pendingValues:  make(map[int]float64),
		throttleActive: make(map[int]bool),
	}
}

// View returns a copy of the current view
func (c *Client) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewCopyLocked()
}

func (c *Client) viewCopyLocked() View {
	out := c.view
	out.Scenes = append([]string(nil), c.view.Scenes...)
	out.Pads = append([]Pad(nil), c.view.Pads...)
	return out
}

func (c *Client) notifyLocked() {
	if c.onChange != nil {
		view := c.viewCopyLocked()
		go c.onChange(view)
	}
}

// Discover browses for gateway services until the context is done. Every
// discovery event triggers a fresh race across all known candidates.
func (c *Client) Discover(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("gateway: resolver: %w", err)
	}
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if len(entry.AddrIPv4) == 0 {
				continue
			}
			addr := net.JoinHostPort(entry.AddrIPv4[0].String(), strconv.Itoa(entry.Port))
			c.mu.Lock()
			c.candidates[addr] = struct{}{}
			all := make([]string, 0, len(c.candidates))
			for ep := range c.candidates {
				all = append(all, ep)
			}
			c.mu.Unlock()
			c.Probe(all)
		}
	}()
	return resolver.Browse(ctx, ServiceType, "local.", entries)
}

// Probe races a snapshot request against all candidates and adopts the
// winner: greatest (serverStartedAt, generatedAt), preferring the longest
// running server instance and breaking ties by snapshot freshness. A newer
// probe's token makes a stale race's completion a no-op.
func (c *Client) Probe(candidates []string) {
	if len(candidates) == 0 {
		return
	}
	token := c.probeToken.Add(1)

	go func() {
		type result struct {
			endpoint string
			snap     *Snapshot
		}
		results := make(chan result, len(candidates))
		for _, ep := range candidates {
			go func(ep string) {
				snap, err := c.fetchSnapshot(ep)
				if err != nil {
					c.log.Debug("probe failed", zap.String("endpoint", ep), zap.Error(err))
					results <- result{endpoint: ep}
					return
				}
				results <- result{endpoint: ep, snap: snap}
			}(ep)
		}

		var best result
		for range candidates {
			r := <-results
			if r.snap == nil {
				continue
			}
			if best.snap == nil || snapshotNewer(r.snap, best.snap) {
				best = r
			}
		}
		if best.snap == nil {
			return
		}
		if c.probeToken.Load() != token {
			// a later discovery event superseded this race
			return
		}
		c.adopt(best.endpoint, *best.snap)
	}()
}

// snapshotNewer orders snapshots by (serverStartedAt, generatedAt)
// lexicographically
func snapshotNewer(a, b *Snapshot) bool {
	if !a.ServerStartedAt.Equal(b.ServerStartedAt) {
		return a.ServerStartedAt.After(b.ServerStartedAt)
	}
	return a.GeneratedAt.After(b.GeneratedAt)
}

// fetchSnapshot issues a one-shot snapshot request, separate from the
// persistent session, with a deadline
func (c *Client) fetchSnapshot(endpoint string) (*Snapshot, error) {
	conn, err := net.DialTimeout("tcp", endpoint, c.cfg.ProbeTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.cfg.ProbeTimeout))

	if err := WriteFrame(conn, Request{Type: ReqSnapshot}); err != nil {
		return nil, err
	}
	body, err := ReadFrame(conn)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Type != RespSnapshot || resp.Snapshot == nil {
		return nil, fmt.Errorf("gateway: unexpected response %q", resp.Type)
	}
	return resp.Snapshot, nil
}

func (c *Client) adopt(endpoint string, snap Snapshot) {
	c.mu.Lock()
	if c.endpoint != endpoint {
		c.log.Info("gateway endpoint selected", zap.String("endpoint", endpoint))
		c.endpoint = endpoint
		if c.conn != nil {
			_ = c.conn.Close()
			c.conn = nil
		}
	}
	c.applySnapshotLocked(snap)
	c.mu.Unlock()
}

// applySnapshotLocked replaces the view from a snapshot and remembers
// non-empty pad lists per scene for the empty-snapshot fallback
func (c *Client) applySnapshotLocked(snap Snapshot) {
	c.view.Endpoint = c.endpoint
	c.view.AppName = snap.AppName
	c.view.SceneName = snap.SceneName
	c.view.Scenes = snap.Scenes
	c.view.CurrentSceneIndex = snap.CurrentSceneIndex
	c.view.RecordingActive = snap.RecordingActive
	c.view.Pads = snap.Pads
	if len(snap.Pads) > 0 {
		c.sceneCache[snap.SceneName] = snap.Pads
	}
	c.notifyLocked()
}

// request runs one command over the persistent session, dialing on demand.
// A transport error drops the connection; the next request redials.
func (c *Client) request(req Request) (Response, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	endpoint := c.endpoint
	conn := c.conn
	c.mu.Unlock()

	if endpoint == "" {
		return Response{}, fmt.Errorf("gateway: no endpoint selected")
	}
	if conn == nil {
		var err error
		conn, err = net.DialTimeout("tcp", endpoint, c.cfg.ProbeTimeout)
		if err != nil {
			return Response{}, err
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
	}

	fail := func(err error) (Response, error) {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()
		return Response{}, err
	}

	if err := WriteFrame(conn, req); err != nil {
		return fail(err)
	}
	body, err := ReadFrame(conn)
	if err != nil {
		return fail(err)
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return fail(err)
	}
	return resp, nil
}

// Refresh requests a fresh snapshot. Concurrent calls coalesce: one refresh
// in flight, at most one queued behind it.
func (c *Client) Refresh() {
	c.mu.Lock()
	if c.refreshing {
		c.refreshPending = true
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	c.mu.Unlock()
	go c.refreshLoop()
}

func (c *Client) refreshLoop() {
	for attempt := 0; ; attempt++ {
		resp, err := c.request(Request{Type: ReqSnapshot})
		settled := false
		if err == nil && resp.Type == RespSnapshot && resp.Snapshot != nil {
			settled = c.applyRefresh(*resp.Snapshot)
		}
		if settled || attempt+1 >= c.cfg.EmptyRetries {
			break
		}
		time.Sleep(c.cfg.EmptyRetryDelay)
	}

	c.mu.Lock()
	c.refreshing = false
	pending := c.refreshPending
	c.refreshPending = false
	c.mu.Unlock()
	if pending {
		c.Refresh()
	}
}

// applyRefresh applies one refresh result. Empty pad lists fall back, in
// order, to the cached pads for the same scene, then the currently displayed
// pads when the scene is unchanged; a scene change clears the display and
// retries.
func (c *Client) applyRefresh(snap Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(snap.Pads) > 0 {
		c.applySnapshotLocked(snap)
		return true
	}

	if cached, ok := c.sceneCache[snap.SceneName]; ok && len(cached) > 0 {
		snap.Pads = cached
		c.applySnapshotLocked(snap)
		return true
	}
	if snap.SceneName == c.view.SceneName && len(c.view.Pads) > 0 {
		snap.Pads = c.view.Pads
		c.applySnapshotLocked(snap)
		return true
	}

	// scene changed with nothing cached: show empty and keep retrying
	c.applySnapshotLocked(snap)
	return false
}

// Tap sends a discrete pad command, flipping toggle-style statuses locally
// until the next snapshot reconciles
func (c *Client) Tap(pad int) {
	c.mu.Lock()
	for i := range c.view.Pads {
		if c.view.Pads[i].ID != pad {
			continue
		}
		switch c.view.Pads[i].StatusText {
		case "muted", "recording", "live":
			c.view.Pads[i].StatusText = ""
		}
	}
	c.notifyLocked()
	c.mu.Unlock()

	go func() {
		if _, err := c.request(Request{Type: ReqTap, Pad: pad}); err != nil {
			c.log.Warn("tap send failed", zap.Int("pad", pad), zap.Error(err))
		}
	}()
}

// SetValue records a value change, updating the local view immediately and
// pushing over the wire at most once per throttle window, latest value wins.
// Dragging to zero also sends an immediate discrete push alongside the
// throttled stream.
func (c *Client) SetValue(pad int, normalized float64) {
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	c.mu.Lock()
	for i := range c.view.Pads {
		if c.view.Pads[i].ID == pad {
			v := normalized
			c.view.Pads[i].NormalizedValue = &v
		}
	}
	c.notifyLocked()

	c.pendingValues[pad] = normalized
	armed := c.throttleActive[pad]
	if !armed {
		c.throttleActive[pad] = true
		time.AfterFunc(c.cfg.ValueThrottle, func() { c.flushValue(pad) })
	}
	c.mu.Unlock()

	if normalized == 0 {
		go c.sendValue(pad, 0)
	}
}

func (c *Client) flushValue(pad int) {
	c.mu.Lock()
	value, ok := c.pendingValues[pad]
	delete(c.pendingValues, pad)
	c.throttleActive[pad] = false
	c.mu.Unlock()
	if ok {
		c.sendValue(pad, value)
	}
}

func (c *Client) sendValue(pad int, value float64) {
	if _, err := c.request(Request{Type: ReqSetValue, Pad: pad, Normalized: value}); err != nil {
		c.log.Warn("value push failed", zap.Int("pad", pad), zap.Error(err))
	}
}

// System sends a system command with the matching optimistic view update
func (c *Client) System(action string) {
	c.mu.Lock()
	switch action {
	case ActionPreviousScene, ActionNextScene:
		offset := 1
		if action == ActionPreviousScene {
			offset = -1
		}
		next := c.view.CurrentSceneIndex + offset
		if next >= 0 && next < len(c.view.Scenes) {
			c.view.CurrentSceneIndex = next
			c.view.SceneName = c.view.Scenes[next]
		}
	case ActionToggleRecording:
		c.view.RecordingActive = !c.view.RecordingActive
	}
	c.notifyLocked()
	c.mu.Unlock()

	if action == ActionRefresh {
		c.Refresh()
		return
	}
	go func() {
		if _, err := c.request(Request{Type: ReqSystem, Action: action}); err != nil {
			c.log.Warn("system command send failed", zap.String("action", action), zap.Error(err))
		}
	}()
}

// Close drops the persistent connection. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}
