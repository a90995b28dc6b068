package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // HTTP status codes for responses
    "strings"  // prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
)

// AccessDecoder resolves an access token to the user it was issued for.
// service.TokenService satisfies it.
type AccessDecoder interface {
    AccessUserID(token string) (uint64, error)
}

// JWTAuth returns an Echo middleware that requires a valid access token.  The
// token is taken from a `Bearer` Authorization header or, failing that, from
// the `access_token` cookie.  On success the user id (uint64) is stored
// under "user_id" for downstream handlers.
func JWTAuth(tokens AccessDecoder) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := bearerToken(c)
            if raw == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error_code": "UNAUTHORIZED", "message": "missing access token"})
            }
            // refresh tokens are rejected here as well
            uid, err := tokens.AccessUserID(raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error_code": "UNAUTHORIZED", "message": "invalid token"})
            }
            c.Set(userIDKey, uid)
            return next(c)
        }
    }
}

func bearerToken(c echo.Context) string {
    if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie("access_token"); err == nil {
        return ck.Value
    }
    return ""
}
