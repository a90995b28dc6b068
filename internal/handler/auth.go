package handler

import (
    "context"  // request-scoped deadlines for repository calls
    "errors"   // matching service sentinel errors
    "net/http" // HTTP status codes and cookies
    "strings"  // input trimming
    "time"     // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"             // structured logging

    "github.com/iliyamo/mealmatch/internal/service" // login and token rotation
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Auth         *service.AuthService
    Tokens       *service.TokenService
    SecureCookie bool // mark the access_token cookie Secure (production)
    Log          *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, tokens *service.TokenService, secure bool, log *zap.Logger) *AuthHandler {
    if log == nil {
        log = zap.NewNop()
    }
    return &AuthHandler{Auth: auth, Tokens: tokens, SecureCookie: secure, Log: log.Named("auth")}
}

// ----- DTOs -----

type loginReq struct {
    Username string `json:"username"`
    Password string `json:"password"`
}
type refreshReq struct {
    RefreshToken string `json:"refresh_token"`
}
type verifyReq struct {
    Token string `json:"token"`
}

// Login verifies the credentials and returns a fresh token pair.  The access
// token is also set as an HttpOnly cookie for browser websocket clients.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return apiError(c, http.StatusBadRequest, "INVALID_BODY", "invalid body")
    }
    req.Username = strings.TrimSpace(req.Username)
    if req.Username == "" || req.Password == "" {
        return apiError(c, http.StatusBadRequest, "INVALID_BODY", "username/password required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    pair, err := h.Auth.Login(ctx, req.Username, req.Password)
    if err != nil {
        return h.tokenError(c, err)
    }
    c.SetCookie(&http.Cookie{
        Name:     "access_token",
        Value:    pair.AccessToken,
        Path:     "/",
        HttpOnly: true,
        Secure:   h.SecureCookie,
        SameSite: http.SameSiteLaxMode,
    })
    return c.JSON(http.StatusOK, pair)
}

// Refresh redeems a refresh token for a new pair.  Each refresh token works
// once; replaying one revokes its whole lineage.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
        return apiError(c, http.StatusBadRequest, "INVALID_BODY", "refresh_token required")
    }
    pair, err := h.Tokens.Refresh(strings.TrimSpace(req.RefreshToken))
    if err != nil {
        return h.tokenError(c, err)
    }
    return c.JSON(http.StatusOK, pair)
}

// Verify checks signature and expiry of any token issued by this service.
func (h *AuthHandler) Verify(c echo.Context) error {
    var req verifyReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
        return apiError(c, http.StatusBadRequest, "INVALID_BODY", "token required")
    }
    if err := h.Tokens.Verify(strings.TrimSpace(req.Token)); err != nil {
        return h.tokenError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"valid": true})
}

// tokenError maps service errors onto HTTP statuses.
func (h *AuthHandler) tokenError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrUserNotFound):
        return apiError(c, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
    case errors.Is(err, service.ErrIncorrectPassword):
        return apiError(c, http.StatusForbidden, "INCORRECT_PASSWORD", "incorrect password")
    case errors.Is(err, service.ErrExpiredToken):
        return apiError(c, http.StatusBadRequest, "EXPIRED_TOKEN", "token expired")
    case errors.Is(err, service.ErrDecodeToken):
        return apiError(c, http.StatusBadRequest, "DECODE_ERROR", "token could not be decoded")
    case errors.Is(err, service.ErrUnauthorized):
        return apiError(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
    }
    h.Log.Error("auth request failed", zap.String("path", c.Path()), zap.Error(err))
    return apiError(c, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func apiError(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, echo.Map{"error_code": code, "message": msg})
}
