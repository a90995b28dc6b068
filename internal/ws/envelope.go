// Package ws implements pool-based realtime messaging over websockets.
//
// A Manager keeps a registry of pools, each holding the live connections
// joined to it and a FIFO ticket queue that serializes action handlers per
// pool.  A Protocol runs the per-connection receive loop: it decodes inbound
// envelopes, resolves the action to a handler and runs the handler through
// the pool's queue.  Admission is decided by permission sets evaluated before
// the websocket handshake completes.
package ws

// Action is the envelope discriminant.
type Action string

// Base protocol actions.  Extended protocols add their own values and keep
// the envelope shape.
const (
	ActionConnectionCode Action = "CONNECTION_CODE"
	ActionPoolMessage    Action = "POOL_MESSAGE"
	ActionGlobalMessage  Action = "GLOBAL_MESSAGE"
)

// BaseActions is the discriminant set of the base protocol.
var BaseActions = []Action{ActionConnectionCode, ActionPoolMessage, ActionGlobalMessage}

// Envelope is the wire-level message unit in both directions:
//
//	{"action": "<discriminant>", "payload": {...} | null}
type Envelope struct {
	Action  Action         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// NewEnvelope builds an outbound envelope.
func NewEnvelope(action Action, payload map[string]any) Envelope {
	return Envelope{Action: action, Payload: payload}
}

// String returns the payload value at key when it is a string.
func (e Envelope) String(key string) string {
	if e.Payload == nil {
		return ""
	}
	s, _ := e.Payload[key].(string)
	return s
}

// Message is shorthand for String("message").
func (e Envelope) Message() string { return e.String("message") }
