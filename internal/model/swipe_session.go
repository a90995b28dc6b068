package model

import "time"

// Swipe session statuses.  Only IN_PROGRESS sessions accept websocket
// participants.
const (
    SessionConfiguration = "CONFIGURATION"
    SessionInProgress    = "IN_PROGRESS"
    SessionCompleted     = "COMPLETED"
    SessionCancelled     = "CANCELLED"
)

// SwipeSession is a row of the `swipe_sessions` table.  A session belongs to
// a group; the members of that group are the only users allowed to join the
// session's websocket pool.
type SwipeSession struct {
    ID        uint64    `json:"id"`         // swipe_sessions.id
    GroupID   uint64    `json:"group_id"`   // swipe_sessions.group_id
    Status    string    `json:"status"`     // swipe_sessions.status
    CreatedAt time.Time `json:"created_at"` // swipe_sessions.created_at
}

// IsActive reports whether participants may currently connect.
func (s SwipeSession) IsActive() bool { return s.Status == SessionInProgress }
