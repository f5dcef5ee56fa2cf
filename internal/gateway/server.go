package gateway

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

// Handler is the application side of the gateway. Snapshot must be safe to
// call concurrently with event processing; it is a point-in-time read.
type Handler interface {
	Snapshot() Snapshot
	Tap(pad int) error
	SetValue(pad int, normalized float64) error
	System(action string) error
}

// Server accepts companion connections and serves a persistent
// request/response session per connection.
type Server struct {
	log     *zap.Logger
	handler Handler
	appName string

	instanceID string
	startedAt  time.Time

	mu     sync.Mutex
	ln     net.Listener
	mdns   *zeroconf.Server
	closed bool
}

// NewServer creates a gateway server for the given application handler
func NewServer(appName string, handler Handler, log *zap.Logger) *Server {
	return &Server{
		log:        log,
		handler:    handler,
		appName:    appName,
		instanceID: uuid.New().String(),
		startedAt:  time.Now(),
	}
}

// Start binds the preferred port, falling back to an OS-assigned port
// exactly once if it is taken, announces the service for discovery and
// begins accepting connections. A second bind failure is terminal.
func (s *Server) Start(preferredPort int) error {
	if preferredPort <= 0 {
		preferredPort = PreferredPort
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", preferredPort))
	if err != nil {
		s.log.Warn("preferred gateway port unavailable, falling back to dynamic port",
			zap.Int("port", preferredPort), zap.Error(err))
		ln, err = net.Listen("tcp", ":0")
		if err != nil {
			return fmt.Errorf("gateway: listen failed on fallback port: %w", err)
		}
	}

	port := ln.Addr().(*net.TCPAddr).Port
	mdns, err := zeroconf.Register(s.instanceID, ServiceType, "local.", port, []string{"app=" + s.appName}, nil)
	if err != nil {
		// discovery is best effort; direct connections still work
		s.log.Warn("gateway service announce failed", zap.Error(err))
	}

	s.mu.Lock()
	s.ln = ln
	s.mdns = mdns
	s.mu.Unlock()

	s.log.Info("gateway listening", zap.Int("port", port), zap.String("instance", s.instanceID))
	go s.acceptLoop(ln)
	return nil
}

// Port returns the bound port, or 0 before Start
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return 0
	}
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Close stops announcing and accepting. Idempotent.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.mdns != nil {
		s.mdns.Shutdown()
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.log.Warn("gateway accept failed", zap.Error(err))
			}
			return
		}
		go s.ServeConn(conn)
	}
}

// ServeConn runs one persistent request/response session: read a command,
// respond exactly once, repeat. Any transport error tears the connection
// down; the client owns reconnection.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()
	for {
		body, err := ReadFrame(conn)
		if err != nil {
			return
		}

		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			if werr := WriteFrame(conn, Response{Type: RespError, Message: "invalid_request"}); werr != nil {
				return
			}
			continue
		}

		if err := WriteFrame(conn, s.respond(req)); err != nil {
			return
		}
	}
}

// respond processes one command and builds its single response
func (s *Server) respond(req Request) Response {
	switch req.Type {
	case ReqSnapshot:
		return s.snapshotResponse()

	case ReqTap:
		if err := s.handler.Tap(req.Pad); err != nil {
			s.log.Warn("tap failed", zap.Int("pad", req.Pad), zap.Error(err))
			return Response{Type: RespError, Message: "tap_failed"}
		}
		return Response{Type: RespAck}

	case ReqSetValue:
		// callers past this point never see out-of-range values
		normalized := req.Normalized
		if normalized < 0 {
			normalized = 0
		}
		if normalized > 1 {
			normalized = 1
		}
		if err := s.handler.SetValue(req.Pad, normalized); err != nil {
			s.log.Warn("set value failed", zap.Int("pad", req.Pad), zap.Error(err))
			return Response{Type: RespError, Message: "set_value_failed"}
		}
		return Response{Type: RespAck}

	case ReqSystem:
		switch req.Action {
		case ActionPreviousScene, ActionNextScene, ActionToggleRecording, ActionRefresh:
			if err := s.handler.System(req.Action); err != nil {
				s.log.Warn("system command failed", zap.String("action", req.Action), zap.Error(err))
				return Response{Type: RespError, Message: "system_failed"}
			}
			return Response{Type: RespAck}
		}
		return Response{Type: RespError, Message: "invalid_request"}
	}
	return Response{Type: RespError, Message: "invalid_request"}
}

func (s *Server) snapshotResponse() Response {
	snap := s.handler.Snapshot()
	snap.AppName = s.appName
	snap.GeneratedAt = time.Now()
	snap.ServerInstanceID = s.instanceID
	snap.ServerStartedAt = s.startedAt
	return Response{Type: RespSnapshot, Snapshot: &snap}
}
