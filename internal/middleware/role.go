package middleware // middleware provides shared request processing for handlers

import (
    "context"
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// AdminChecker reports whether a user holds the admin flag.
type AdminChecker interface {
    IsAdmin(ctx context.Context, userID uint64) (bool, error)
}

// RequireAdmin rejects requests whose authenticated user is not an admin.
// It must run after JWTAuth.  Lookup failures are answered with 500 so a
// database outage never grants access.
func RequireAdmin(users AdminChecker) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            uid, ok := UserID(c)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error_code": "UNAUTHORIZED", "message": "unauthorized"})
            }
            admin, err := users.IsAdmin(c.Request().Context(), uid)
            if err != nil {
                return c.JSON(http.StatusInternalServerError, echo.Map{"error_code": "INTERNAL", "message": "could not verify role"})
            }
            if !admin {
                return c.JSON(http.StatusForbidden, echo.Map{"error_code": "FORBIDDEN", "message": "forbidden"})
            }
            return next(c)
        }
    }
}
