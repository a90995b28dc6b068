package handler

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mealmatch/internal/ws"
)

// RealtimeHandler serves the websocket endpoints.  The HTTP request is
// upgraded in place; the handler returns once the connection is closed.
type RealtimeHandler struct {
    Chat     *ws.Protocol
    Sessions *ws.Protocol
}

func NewRealtimeHandler(chat, sessions *ws.Protocol) *RealtimeHandler {
    return &RealtimeHandler{Chat: chat, Sessions: sessions}
}

// ChatSocket serves GET /v1/chat/:pool_id/:username.
func (h *RealtimeHandler) ChatSocket(c echo.Context) error {
    params := map[string]string{"username": c.Param("username")}
    return h.Chat.Handle(c.Response(), c.Request(), c.Param("pool_id"), params)
}

// SessionSocket serves GET /v1/sessions/:session_id/ws.  The session id is
// the pool id.
func (h *RealtimeHandler) SessionSocket(c echo.Context) error {
    id := c.Param("session_id")
    return h.Sessions.Handle(c.Response(), c.Request(), id, map[string]string{"session_id": id})
}
