package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// MonitoringHandler serves the unauthenticated liveness and readiness
// probes.
type MonitoringHandler struct {
	DB      *sql.DB
	Timeout time.Duration
	logger  *slog.Logger
}

func NewMonitoringHandler(db *sql.DB, logger *slog.Logger) *MonitoringHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MonitoringHandler{DB: db, Timeout: 2 * time.Second, logger: logger}
}

// Ping handles GET /monitoring/ping.
func (h *MonitoringHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"ping": "pong"})
}

// Healthz handles GET /monitoring/healthz.  It reports "error" when the
// store cannot be reached at all and "unhealthy" when it answers but a
// probe query fails.
func (h *MonitoringHandler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.Timeout)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		h.logger.Warn("healthz: database unreachable", "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "error"})
	}
	var one int
	if err := h.DB.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil || one != 1 {
		h.logger.Warn("healthz: probe query failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "healthy"})
}
