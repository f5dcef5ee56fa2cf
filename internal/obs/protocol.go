// Package obs maintains a stateful session to an OBS WebSocket v5 control
// plane: handshake and authentication, request/response correlation, an
// event-driven cache of remote state, and the translation of classified
// control events into remote commands.
package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// OBS WebSocket v5 opcodes
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

// rpcVersion is the protocol revision we identify with
const rpcVersion = 1

// eventSubscriptions requests General, Scenes, Inputs and Outputs events
const eventSubscriptions = 1 | 4 | 8 | 64

// envelope is the outer message shape: an opcode and an opcode-specific
// payload
type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type outEnvelope struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type helloAuth struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

type helloData struct {
	ObsWebSocketVersion string     `json:"obsWebSocketVersion"`
	RPCVersion          int        `json:"rpcVersion"`
	Authentication      *helloAuth `json:"authentication,omitempty"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	EventSubscriptions int    `json:"eventSubscriptions"`
	Authentication     string `json:"authentication,omitempty"`
}

type requestEnvelope struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type responseEnvelope struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

type eventEnvelope struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData,omitempty"`
}

// authResponse computes the v5 challenge response: two chained salted hash
// rounds, base64(sha256(password+salt)) then base64(sha256(secret+challenge))
func authResponse(password, salt, challenge string) string {
	first := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(first[:])
	second := sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(second[:])
}
