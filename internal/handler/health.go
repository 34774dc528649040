package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports whether the process and its backing stores respond.
// Redis is optional; its absence is reported but does not fail the check.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	body := echo.Map{"status": "ok", "database": "ok", "redis": "disabled"}
	status := http.StatusOK
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	if h.Redis != nil {
		body["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		}
	}
	return c.JSON(status, body)
}
