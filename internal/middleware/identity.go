package middleware

// identity.go holds the helpers that read the authenticated user back out of
// the Echo context once JWTAuth has run.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

const userIDKey = "user_id"

// UserID returns the id stored by JWTAuth.  ok is false for anonymous requests.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(userIDKey).(uint64)
    return id, ok && id != 0
}

// userKey renders the caller for rate limit keys; anonymous callers share "anon".
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
