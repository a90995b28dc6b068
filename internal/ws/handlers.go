package ws

import "context"

// BaseHandlers maps the base actions to their handlers.  CONNECTION_CODE is
// server to client only and has no handler.
func BaseHandlers() map[Action]HandlerFunc {
	return map[Action]HandlerFunc{
		ActionPoolMessage:   HandlePoolMessage,
		ActionGlobalMessage: HandleGlobalMessage,
	}
}

// HandlePoolMessage relays payload.message to every member of the sender's pool.
func HandlePoolMessage(_ context.Context, m *Manager, req *Request) error {
	msg := req.Envelope.Message()
	if msg == "" {
		return ErrNoMessage
	}
	m.BroadcastPool(req.PoolID, NewEnvelope(ActionPoolMessage, map[string]any{"message": msg}))
	return nil
}

// HandleGlobalMessage relays payload.message to every live connection.
func HandleGlobalMessage(_ context.Context, m *Manager, req *Request) error {
	msg := req.Envelope.Message()
	if msg == "" {
		return ErrNoMessage
	}
	m.BroadcastAll(NewEnvelope(ActionGlobalMessage, map[string]any{"message": msg}))
	return nil
}

// HandleNotImplemented answers actions that are valid but have no handler.
func HandleNotImplemented(context.Context, *Manager, *Request) error {
	return ErrActionNotImplemented
}
