package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthController struct {
	db Pinger
}

func NewHealthController(db Pinger) *HealthController {
	return &HealthController{db: db}
}

func (c *HealthController) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]bool{"ok": true})
}

// Ready answers 503 while the database does not answer a ping.
func (c *HealthController) Ready(ctx echo.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()

	if err := c.db.PingContext(pingCtx); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"error": "db not ready"})
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"ready": true})
}
