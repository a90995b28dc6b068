package handler

import (
    "context"
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mealmatch/internal/middleware"
    "github.com/iliyamo/mealmatch/internal/model"
    "github.com/iliyamo/mealmatch/internal/repository"
)

// UserLookup loads a user by id.
type UserLookup interface {
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

type MeHandler struct{ Users UserLookup }

func NewMeHandler(users UserLookup) *MeHandler { return &MeHandler{Users: users} }

type meResp struct {
    ID          uint64    `json:"id"`
    Username    string    `json:"username"`
    DisplayName string    `json:"display_name"`
    IsAdmin     bool      `json:"is_admin"`
    CreatedAt   time.Time `json:"created_at"`
}

// Me returns the authenticated user's account.  Requires JWTAuth.
func (h *MeHandler) Me(c echo.Context) error {
    uid, ok := middleware.UserID(c)
    if !ok {
        return apiError(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
    }
    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if errors.Is(err, repository.ErrNotFound) {
        return apiError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
    }
    if err != nil {
        return apiError(c, http.StatusInternalServerError, "INTERNAL", "query failed")
    }
    return c.JSON(http.StatusOK, meResp{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, IsAdmin: u.IsAdmin, CreatedAt: u.CreatedAt})
}
