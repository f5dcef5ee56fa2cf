// Package gateway implements the companion remote-control protocol: a
// length-framed JSON request/response stream over TCP, announced over mDNS.
// The server side exposes snapshots of current state and accepts tap,
// set-value and system commands; the client side handles discovery, endpoint
// racing, coalesced refresh and throttled value pushes.
package gateway

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

const (
	// PreferredPort is the well-known listen port, with exactly one
	// dynamic-port fallback when it is already bound
	PreferredPort = 9916

	// ServiceType is the mDNS service identifier for discovery
	ServiceType = "_padctl._tcp"

	// MaxFrame bounds a single message
	MaxFrame = 64 << 10
)

// Request type tags
const (
	ReqSnapshot = "snapshot"
	ReqTap      = "tap"
	ReqSetValue = "setValue"
	ReqSystem   = "system"
)

// System command actions
const (
	ActionPreviousScene   = "previousScene"
	ActionNextScene       = "nextScene"
	ActionToggleRecording = "toggleRecording"
	ActionRefresh         = "refresh"
)

// Response type tags
const (
	RespSnapshot = "snapshot"
	RespAck      = "ack"
	RespError    = "error"
)

// Request is one client command. The type tag discriminates which payload
// fields are meaningful.
type Request struct {
	Type       string  `json:"type"`
	Pad        int     `json:"pad,omitempty"`
	Normalized float64 `json:"normalized,omitempty"`
	Action     string  `json:"action,omitempty"`
}

// Pad is one grid cell in a snapshot
type Pad struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	TriggerLabel    string   `json:"triggerLabel"`
	TriggerStyle    string   `json:"triggerStyle"`
	TargetTitle     string   `json:"targetTitle"`
	HasMapping      bool     `json:"hasMapping"`
	StatusText      string   `json:"statusText"`
	NormalizedValue *float64 `json:"normalizedValue,omitempty"`
}

// Snapshot is a full point-in-time serialization of remote-controllable
// state. Always rebuilt whole, never partially mutated.
type Snapshot struct {
	AppName           string    `json:"appName"`
	GeneratedAt       time.Time `json:"generatedAt"`
	ServerInstanceID  string    `json:"serverInstanceId,omitempty"`
	ServerStartedAt   time.Time `json:"serverStartedAt,omitzero"`
	SceneName         string    `json:"sceneName,omitempty"`
	Scenes            []string  `json:"scenes,omitempty"`
	CurrentSceneIndex int       `json:"currentSceneIndex"` // -1 when no listed scene is current
	RecordingActive   bool      `json:"recordingActive"`
	Pads              []Pad     `json:"pads"`
}

// Response is one server reply, tagged snapshot, ack or error. Snapshot
// fields inline when present.
type Response struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	*Snapshot
}

// WriteFrame sends one message: a 4-byte big-endian length then the JSON body
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("gateway: encode frame: %w", err)
	}
	if len(body) > MaxFrame {
		return fmt.Errorf("gateway: frame too large: %d bytes", len(body))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadFrame reads one whole message body, enforcing the frame bound
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 || n > MaxFrame {
		return nil, fmt.Errorf("gateway: invalid frame length %d", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}
