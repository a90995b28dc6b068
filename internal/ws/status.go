package ws

import "fmt"

// Status is a CONNECTION_CODE payload.  It doubles as an error so that
// permission predicates and handlers can return it directly; anything that
// reaches a client as a status is a *Status.
type Status struct {
	Code      int
	ErrorCode string
	Message   string
}

func (s *Status) Error() string {
	if s.ErrorCode == "" {
		return fmt.Sprintf("%d %s", s.Code, s.Message)
	}
	return fmt.Sprintf("%d %s: %s", s.Code, s.ErrorCode, s.Message)
}

// Envelope renders the status as a CONNECTION_CODE envelope.
func (s *Status) Envelope() Envelope {
	return NewEnvelope(ActionConnectionCode, map[string]any{
		"status_code": s.Code,
		"message":     s.Message,
	})
}

// Informational statuses.
var (
	StatusConnected = &Status{Code: 202, Message: "you have connected"}
	StatusClosing   = &Status{Code: 200, Message: "you have been forcefully disconnected"}
)

// Error statuses.
var (
	ErrInactiveSession      = &Status{Code: 400, ErrorCode: "WEBSOCKET__INACTIVE_SESSION", Message: "you cannot connect to an inactive session"}
	ErrNoMessage            = &Status{Code: 400, ErrorCode: "WEBSOCKET__NO_MESSAGE", Message: "no message provided"}
	ErrJSONUnserializable   = &Status{Code: 400, ErrorCode: "WEBSOCKET__JSON_UNSERIALIZABLE", Message: "data is not JSON serializable"}
	ErrInvalidID            = &Status{Code: 400, ErrorCode: "WEBSOCKET__INVALID_ID", Message: "either session or user id is invalid"}
	ErrUnauthorized         = &Status{Code: 401, ErrorCode: "WEBSOCKET__UNAUTHORIZED", Message: "unauthorized"}
	ErrAccessDenied         = &Status{Code: 403, ErrorCode: "WEBSOCKET__ACCESS_DENIED", Message: "access denied"}
	ErrActionNotFound       = &Status{Code: 404, ErrorCode: "WEBSOCKET__ACTION_NOT_FOUND", Message: "action does not exist"}
	ErrActionNotImplemented = &Status{Code: 501, ErrorCode: "WEBSOCKET__ACTION_NOT_IMPLEMENTED", Message: "action is not implemented or not available"}
)

// internalError is the generic status broadcast to a pool when a handler
// fails.  incident is logged next to the failure so operators can find it.
func internalError(incident string) *Status {
	return &Status{
		Code:      500,
		ErrorCode: "WEBSOCKET__INTERNAL_ERROR",
		Message:   fmt.Sprintf("an error happened, check the log for incident %s", incident),
	}
}
