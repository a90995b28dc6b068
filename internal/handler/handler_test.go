package handler_test

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mealmatch/internal/config"
    "github.com/iliyamo/mealmatch/internal/handler"
    "github.com/iliyamo/mealmatch/internal/model"
    "github.com/iliyamo/mealmatch/internal/repository"
    "github.com/iliyamo/mealmatch/internal/service"
    "github.com/iliyamo/mealmatch/internal/tokenchain"
    "github.com/iliyamo/mealmatch/internal/utils"
    "github.com/iliyamo/mealmatch/internal/ws"
)

type users map[string]model.User

func (u users) GetByUsername(_ context.Context, name string) (model.User, error) {
    if v, ok := u[name]; ok {
        return v, nil
    }
    return model.User{}, repository.ErrNotFound
}

func newAuthServer(t *testing.T) *echo.Echo {
    t.Helper()
    hash, err := utils.HashPassword("normal_user", 4)
    require.NoError(t, err)
    cfg := config.Config{JWTSecret: "secret", AccessTTL: time.Hour, RefreshTTL: time.Hour, SeedRefreshChain: true}
    tokens := service.NewTokenService(cfg, tokenchain.New(), nil)
    auth := service.NewAuthService(users{"normal_user": {ID: 1, Username: "normal_user", PasswordHash: hash}}, tokens)
    h := handler.NewAuthHandler(auth, tokens, false, nil)

    e := echo.New()
    e.POST("/v1/auth/login", h.Login)
    e.POST("/v1/auth/refresh", h.Refresh)
    e.POST("/v1/auth/verify", h.Verify)
    return e
}

func post(e *echo.Echo, path string, body any) *httptest.ResponseRecorder {
    bs, _ := json.Marshal(body)
    req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(bs)))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
    t.Helper()
    var out map[string]any
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
    return out
}

func TestLoginEndpoint(t *testing.T) {
    e := newAuthServer(t)

    rec := post(e, "/v1/auth/login", map[string]string{"username": "normal_user", "password": "normal_user"})
    require.Equal(t, http.StatusOK, rec.Code)
    body := decode(t, rec)
    require.NotEmpty(t, body["access_token"])
    require.NotEmpty(t, body["refresh_token"])
    require.Contains(t, rec.Header().Get("Set-Cookie"), "access_token=")

    rec = post(e, "/v1/auth/login", map[string]string{"username": "no_user", "password": "no_user"})
    require.Equal(t, http.StatusNotFound, rec.Code)
    require.Equal(t, "USER_NOT_FOUND", decode(t, rec)["error_code"])

    rec = post(e, "/v1/auth/login", map[string]string{"username": "normal_user", "password": "incorrect_password"})
    require.Equal(t, http.StatusForbidden, rec.Code)

    rec = post(e, "/v1/auth/login", map[string]string{"username": "normal_user"})
    require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpointRotatesOnce(t *testing.T) {
    e := newAuthServer(t)
    login := decode(t, post(e, "/v1/auth/login", map[string]string{"username": "normal_user", "password": "normal_user"}))
    first := login["refresh_token"]

    rec := post(e, "/v1/auth/refresh", map[string]any{"refresh_token": first})
    require.Equal(t, http.StatusOK, rec.Code)
    second := decode(t, rec)["refresh_token"]
    require.NotEqual(t, first, second)

    // replay poisons the lineage, including the token just issued
    rec = post(e, "/v1/auth/refresh", map[string]any{"refresh_token": first})
    require.Equal(t, http.StatusUnauthorized, rec.Code)
    rec = post(e, "/v1/auth/refresh", map[string]any{"refresh_token": second})
    require.Equal(t, http.StatusUnauthorized, rec.Code)

    rec = post(e, "/v1/auth/refresh", map[string]any{"refresh_token": "VeryFakeToken!"})
    require.Equal(t, http.StatusBadRequest, rec.Code)
    require.Equal(t, "DECODE_ERROR", decode(t, rec)["error_code"])

    rec = post(e, "/v1/auth/refresh", map[string]any{"refresh_token": login["access_token"]})
    require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpoint(t *testing.T) {
    e := newAuthServer(t)
    login := decode(t, post(e, "/v1/auth/login", map[string]string{"username": "normal_user", "password": "normal_user"}))

    rec := post(e, "/v1/auth/verify", map[string]any{"token": login["access_token"]})
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, true, decode(t, rec)["valid"])

    rec = post(e, "/v1/auth/verify", map[string]any{"token": "VeryFakeToken!"})
    require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminEndpoints(t *testing.T) {
    session, chat := ws.NewManager(), ws.NewManager()
    ws.NewProtocol("session", session)
    ws.NewProtocol("chat", chat)
    h := handler.NewAdminHandler(nil, session, chat)
    e := echo.New()
    e.GET("/pools", h.ListPools)
    e.GET("/pools/:registry/:pool_id", h.GetPool)
    e.DELETE("/pools/:registry/:pool_id", h.ClosePool)
    e.POST("/broadcast", h.Broadcast)
    e.GET("/healthz", handler.Health(session, chat))

    require.ElementsMatch(t, []string{"session", "chat"}, keys(h.Registries))

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pools", nil))
    require.Equal(t, http.StatusOK, rec.Code)
    require.EqualValues(t, 0, decode(t, rec)["connections"])

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pools/session/1", nil))
    require.Equal(t, http.StatusNotFound, rec.Code)
    require.Contains(t, rec.Body.String(), "POOL_NOT_FOUND")

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pools/lobby/1", nil))
    require.Equal(t, http.StatusNotFound, rec.Code)
    require.Contains(t, rec.Body.String(), "REGISTRY_NOT_FOUND")

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/pools/chat/1", nil))
    require.Equal(t, http.StatusNotFound, rec.Code)

    require.Equal(t, http.StatusBadRequest, post(e, "/broadcast", map[string]string{}).Code)
    require.Equal(t, http.StatusAccepted, post(e, "/broadcast", map[string]string{"message": "maintenance"}).Code)

    rec = httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "ok", decode(t, rec)["status"])
}

func keys(m map[string]*ws.Manager) []string {
    out := make([]string, 0, len(m))
    for k := range m {
        out = append(out, k)
    }
    return out
}

type usersByID map[uint64]model.User

func (u usersByID) GetByID(_ context.Context, id uint64) (model.User, error) {
    if v, ok := u[id]; ok {
        return v, nil
    }
    return model.User{}, repository.ErrNotFound
}

func TestMeEndpoint(t *testing.T) {
    h := handler.NewMeHandler(usersByID{1: {ID: 1, Username: "normal_user", DisplayName: "Normal"}})
    e := echo.New()
    e.GET("/v1/me", h.Me)

    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/me", nil))
    require.Equal(t, http.StatusUnauthorized, rec.Code)

    req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
    rec = httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.Set("user_id", uint64(1))
    require.NoError(t, h.Me(c))
    require.Equal(t, http.StatusOK, rec.Code)
    require.Equal(t, "normal_user", decode(t, rec)["username"])
}
