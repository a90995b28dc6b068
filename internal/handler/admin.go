package handler

import (
    "net/http"
    "sort"
    "strings"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/mealmatch/internal/ws"
)

// AdminHandler exposes the connection registries to administrators.  Each
// registry is addressed by the name of the protocol it serves.
type AdminHandler struct {
    Registries map[string]*ws.Manager
    Log        *zap.Logger
}

// NewAdminHandler indexes managers by ws.Manager.Name, so each one must
// already be bound to its protocol.
func NewAdminHandler(log *zap.Logger, managers ...*ws.Manager) *AdminHandler {
    if log == nil {
        log = zap.NewNop()
    }
    regs := make(map[string]*ws.Manager, len(managers))
    for _, m := range managers {
        regs[m.Name()] = m
    }
    return &AdminHandler{Registries: regs, Log: log.Named("admin")}
}

func (h *AdminHandler) names() []string {
    out := make([]string, 0, len(h.Registries))
    for name := range h.Registries {
        out = append(out, name)
    }
    sort.Strings(out)
    return out
}

// ListPools returns every live pool of every registry with its connection
// and queue sizes.
func (h *AdminHandler) ListPools(c echo.Context) error {
    pools := []ws.PoolInfo{}
    total := 0
    for _, name := range h.names() {
        m := h.Registries[name]
        pools = append(pools, m.Pools()...)
        total += m.TotalConnections()
    }
    return c.JSON(http.StatusOK, echo.Map{"pools": pools, "connections": total})
}

// GetPool serves GET /v1/admin/pools/:registry/:pool_id.
func (h *AdminHandler) GetPool(c echo.Context) error {
    m, ok := h.Registries[c.Param("registry")]
    if !ok {
        return apiError(c, http.StatusNotFound, "REGISTRY_NOT_FOUND", "registry not found")
    }
    info, ok := m.Pool(c.Param("pool_id"))
    if !ok {
        return apiError(c, http.StatusNotFound, "POOL_NOT_FOUND", "pool not found")
    }
    return c.JSON(http.StatusOK, info)
}

// ClosePool notifies every member of the pool and disconnects them.
func (h *AdminHandler) ClosePool(c echo.Context) error {
    name, id := c.Param("registry"), c.Param("pool_id")
    m, ok := h.Registries[name]
    if !ok {
        return apiError(c, http.StatusNotFound, "REGISTRY_NOT_FOUND", "registry not found")
    }
    if _, ok := m.Pool(id); !ok {
        return apiError(c, http.StatusNotFound, "POOL_NOT_FOUND", "pool not found")
    }
    n := m.DisconnectPool(id, ws.StatusClosing.Envelope())
    h.Log.Info("pool closed by admin", zap.String("registry", name), zap.String("pool_id", id), zap.Int("connections", n))
    return c.JSON(http.StatusOK, echo.Map{"registry": name, "pool_id": id, "disconnected": n})
}

type broadcastReq struct {
    Message string `json:"message"`
}

// Broadcast sends a GLOBAL_MESSAGE to every live connection of every registry.
func (h *AdminHandler) Broadcast(c echo.Context) error {
    var req broadcastReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Message) == "" {
        return apiError(c, http.StatusBadRequest, "INVALID_BODY", "message required")
    }
    env := ws.NewEnvelope(ws.ActionGlobalMessage, map[string]any{"message": req.Message})
    for _, m := range h.Registries {
        m.BroadcastAll(env)
    }
    return c.NoContent(http.StatusAccepted)
}
