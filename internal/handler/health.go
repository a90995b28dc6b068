package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/iliyamo/mealmatch/internal/ws"
)

// Health is a health-check endpoint used by load balancers and monitoring
// systems.  Besides "ok" it reports how many websocket connections are live
// across the given registries.
func Health(managers ...*ws.Manager) echo.HandlerFunc {
    return func(c echo.Context) error {
        n := 0
        for _, m := range managers {
            n += m.TotalConnections()
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ok", "connections": n})
    }
}
