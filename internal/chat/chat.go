// Package chat extends the base websocket protocol with named messages.
package chat

import (
	"context"

	"github.com/iliyamo/mealmatch/internal/ws"
)

// ActionPoolUserMessage relays a message tagged with the sender's username.
const ActionPoolUserMessage ws.Action = "POOL_USER_MESSAGE"

// Actions is the discriminant set of the chat protocol.
var Actions = append(append([]ws.Action{}, ws.BaseActions...), ActionPoolUserMessage)

// Handlers returns the chat handler map.
func Handlers() map[ws.Action]ws.HandlerFunc {
	h := ws.BaseHandlers()
	h[ActionPoolUserMessage] = HandlePoolUserMessage
	return h
}

// NewProtocol builds the open chat protocol.  Connections are identified by
// the username path parameter and need no credentials.
func NewProtocol(m *ws.Manager, opts ...ws.ProtocolOption) *ws.Protocol {
	opts = append([]ws.ProtocolOption{
		ws.WithActions(Actions, Handlers()),
		ws.WithPermissions([]ws.Permission{ws.AllowAll()}),
	}, opts...)
	return ws.NewProtocol("chat", m, opts...)
}

// HandlePoolUserMessage broadcasts {username, message} to the sender's pool.
func HandlePoolUserMessage(_ context.Context, m *ws.Manager, req *ws.Request) error {
	msg := req.Envelope.Message()
	if msg == "" {
		return ws.ErrNoMessage
	}
	m.BroadcastPool(req.PoolID, ws.NewEnvelope(ActionPoolUserMessage, map[string]any{
		"username": req.Params["username"],
		"message":  msg,
	}))
	return nil
}
