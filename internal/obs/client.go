package obs

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the bridge session state
type State int

const (
	Disconnected State = iota
	Connecting
	HelloReceived
	Identified
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case HelloReceived:
		return "hello_received"
	case Identified:
		return "identified"
	}
	return "disconnected"
}

// ErrPasswordRequired is returned when the server demands authentication and
// no password is configured
var ErrPasswordRequired = errors.New("obs: authentication required but no password configured")

// Config is the connection settings record
type Config struct {
	Host     string
	Port     int
	Password string
}

// Scene is one remote scene, addressed by UUID
type Scene struct {
	Name string
	UUID string
}

// Input is one remote audio input
type Input struct {
	Name string
	UUID string
}

// Callbacks fire one at a time, in emit order, on a single delivery
// goroutine; keep them short. OnRecording and OnMute fire only when the
// value actually changes.
type Callbacks struct {
	OnRecording      func(active bool)
	OnMute           func(input string, muted bool)
	OnCatalogChanged func()
	OnDisconnected   func()
}

// notifier delivers observer callbacks in emit order on one goroutine, so
// rapid state flips cannot arrive reordered. Enqueueing never blocks: the
// queue is unbounded and guarded by its own small mutex, safe to use while
// holding the client mutex.
type notifier struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

func newNotifier() *notifier {
	n := &notifier{wake: make(chan struct{}, 1)}
	go n.run()
	return n
}

func (n *notifier) emit(fn func()) {
	n.mu.Lock()
	n.queue = append(n.queue, fn)
	n.mu.Unlock()
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	for range n.wake {
		for {
			n.mu.Lock()
			if len(n.queue) == 0 {
				n.mu.Unlock()
				break
			}
			fn := n.queue[0]
			n.queue = n.queue[1:]
			n.mu.Unlock()
			fn()
		}
	}
}

type pendingRequest struct {
	requestType string
	quiet       bool
	handle      func(resp responseEnvelope)
}

type queuedRequest struct {
	env    requestEnvelope
	params pendingRequest
}

// Client is the control-plane bridge. All socket I/O, request bookkeeping
// and cache mutation happen under one mutex with short critical sections;
// submission calls are safe from any goroutine and reconnect lazily on the
// next outbound demand.
type Client struct {
	log    *zap.Logger
	cb     Callbacks
	notify *notifier

	mu    sync.Mutex
	cfg   Config
	state State
	conn  *websocket.Conn
	gen   int // connection generation; a stale read pump's teardown is a no-op

	pending map[string]pendingRequest
	queue   []queuedRequest // held until Identified, flushed FIFO

	warnedNoPassword bool

	scenes       []Scene
	currentScene Scene
	inputs       []Input
	volumeMul    map[string]float64
	muted        map[string]bool
	recording    bool
}

// New creates a disconnected client. No connection is attempted until the
// first outbound request.
func New(cfg Config, cb Callbacks, log *zap.Logger) *Client {
	return &Client{
		log:       log,
		cb:        cb,
		notify:    newNotifier(),
		cfg:       cfg,
		pending:   make(map[string]pendingRequest),
		volumeMul: make(map[string]float64),
		muted:     make(map[string]bool),
	}
}

// State returns the current session state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconfigure replaces the connection settings and tears down any live
// session; the next outbound request dials with the new settings.
func (c *Client) Reconfigure(cfg Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.warnedNoPassword = false
	c.mu.Unlock()
	c.Disconnect()
}

// Disconnect tears the session down and clears all cached catalog state so
// dependents invalidate instead of showing stale data. Safe to call
// repeatedly and from any goroutine.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.teardownLocked(c.gen)
	c.mu.Unlock()
}

// teardownLocked closes the connection of the given generation and clears
// the cache. A stale generation is a no-op, which makes teardown idempotent
// across racing read pumps.
func (c *Client) teardownLocked(gen int) {
	if gen != c.gen {
		return
	}
	c.gen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	hadState := c.state != Disconnected || len(c.scenes) > 0 || len(c.inputs) > 0
	c.state = Disconnected
	c.pending = make(map[string]pendingRequest)
	c.scenes = nil
	c.currentScene = Scene{}
	c.inputs = nil
	c.volumeMul = make(map[string]float64)
	c.muted = make(map[string]bool)
	c.recording = false

	if hadState {
		if c.cb.OnDisconnected != nil {
			c.notify.emit(c.cb.OnDisconnected)
		}
		if c.cb.OnCatalogChanged != nil {
			c.notify.emit(c.cb.OnCatalogChanged)
		}
	}
}

// connectLocked transitions to Connecting and hands the dial to its own
// goroutine. The handshake can stall for seconds against an unreachable
// host; it must never run under the mutex the cache reads take. Requests
// submitted meanwhile queue until Identified.
func (c *Client) connectLocked() {
	if c.state != Disconnected {
		return
	}
	c.state = Connecting
	go c.dial(c.cfg, c.gen)
}

// dial performs the blocking websocket handshake off the lock and installs
// the connection under a generation check. A teardown or reconfigure that
// raced the dial wins: the late connection is closed and discarded.
func (c *Client) dial(cfg Config, gen int) {
	addr := fmt.Sprintf("ws://%s:%d", cfg.Host, cfg.Port)
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != Connecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn("obs connect failed", zap.String("addr", addr), zap.Error(err))
		c.state = Disconnected
		c.queue = nil
		return
	}
	c.conn = conn
	go c.readPump(conn, gen)
}

func (c *Client) readPump(conn *websocket.Conn, gen int) {
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.mu.Lock()
			if gen == c.gen {
				c.log.Warn("obs connection lost", zap.Error(err))
			}
			c.teardownLocked(gen)
			c.mu.Unlock()
			return
		}
		c.handle(env, gen)
	}
}

func (c *Client) handle(env envelope, gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}

	switch env.Op {
	case opHello:
		c.handleHelloLocked(env.D, gen)
	case opIdentified:
		c.handleIdentifiedLocked()
	case opEvent:
		c.handleEventLocked(env.D)
	case opRequestResponse:
		c.handleResponseLocked(env.D)
	}
}

func (c *Client) handleHelloLocked(data json.RawMessage, gen int) {
	var hello helloData
	if err := json.Unmarshal(data, &hello); err != nil {
		c.log.Warn("obs: malformed hello", zap.Error(err))
		c.teardownLocked(gen)
		return
	}
	c.state = HelloReceived

	identify := identifyData{
		RPCVersion:         rpcVersion,
		EventSubscriptions: eventSubscriptions,
	}
	if hello.Authentication != nil {
		if c.cfg.Password == "" {
			if !c.warnedNoPassword {
				c.warnedNoPassword = true
				c.log.Warn("obs requires a password but none is configured")
			}
			c.teardownLocked(gen)
			return
		}
		identify.Authentication = authResponse(c.cfg.Password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := c.writeLocked(outEnvelope{Op: opIdentify, D: identify}); err != nil {
		c.teardownLocked(gen)
	}
}

func (c *Client) handleIdentifiedLocked() {
	c.state = Identified
	c.log.Info("obs session identified",
		zap.String("host", c.cfg.Host), zap.Int("port", c.cfg.Port))

	queued := c.queue
	c.queue = nil
	for _, q := range queued {
		c.sendRequestLocked(q.env, q.params)
	}
	c.refreshCatalogLocked()
}

// refreshCatalogLocked requests the remote catalog: scenes, inputs and the
// recording flag. Responses seed the cache via one-shot handlers.
func (c *Client) refreshCatalogLocked() {
	c.requestLocked("GetSceneList", nil, pendingRequest{quiet: true, handle: c.seedScenes})
	c.requestLocked("GetInputList", nil, pendingRequest{quiet: true, handle: c.seedInputs})
	c.requestLocked("GetRecordStatus", nil, pendingRequest{quiet: true, handle: c.seedRecordStatus})
}

func (c *Client) handleResponseLocked(data json.RawMessage) {
	var resp responseEnvelope
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.Warn("obs: malformed request response", zap.Error(err))
		return
	}
	req, ok := c.pending[resp.RequestID]
	if !ok {
		return
	}
	delete(c.pending, resp.RequestID)

	if !req.quiet {
		if resp.RequestStatus.Result {
			c.log.Debug("obs request ok", zap.String("type", resp.RequestType))
		} else {
			c.log.Warn("obs request failed",
				zap.String("type", resp.RequestType),
				zap.String("comment", resp.RequestStatus.Comment))
		}
	}
	if req.handle != nil && resp.RequestStatus.Result {
		req.handle(resp)
	}
}

func (c *Client) writeLocked(msg any) error {
	if c.conn == nil {
		return errors.New("obs: not connected")
	}
	return c.conn.WriteJSON(msg)
}

// requestLocked correlates and sends (or queues) one request
func (c *Client) requestLocked(requestType string, data any, params pendingRequest) {
	params.requestType = requestType
	env := requestEnvelope{
		RequestType: requestType,
		RequestID:   uuid.New().String(),
		RequestData: data,
	}
	if c.state != Identified {
		c.queue = append(c.queue, queuedRequest{env: env, params: params})
		return
	}
	c.sendRequestLocked(env, params)
}

func (c *Client) sendRequestLocked(env requestEnvelope, params pendingRequest) {
	c.pending[env.RequestID] = params
	if err := c.writeLocked(outEnvelope{Op: opRequest, D: env}); err != nil {
		delete(c.pending, env.RequestID)
		c.log.Warn("obs send failed", zap.String("type", env.RequestType), zap.Error(err))
		c.teardownLocked(c.gen)
	}
}

// submit is the public request path: lazily reconnects on demand, then
// queues or sends
func (c *Client) submit(requestType string, data any, params pendingRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disconnected {
		c.connectLocked()
	}
	c.requestLocked(requestType, data, params)
	return nil
}
