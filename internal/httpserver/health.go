package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/internal/cache"
)

type Pinger func(ctx context.Context) error

type HealthHTTP struct {
	DB    Pinger
	Cache *cache.Cache
}

func (h *HealthHTTP) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// Ready fails only on the database. A broken cache degrades reads but the service still answers.
func (h *HealthHTTP) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := echo.Map{"db": "ok", "cache": "ok"}
	code := http.StatusOK

	if h.DB != nil {
		if err := h.DB(ctx); err != nil {
			status["db"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	if err := h.Cache.Ping(ctx); err != nil {
		status["cache"] = err.Error()
	}
	return c.JSON(code, status)
}

func (h *HealthHTTP) CacheStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Cache.Stats())
}
