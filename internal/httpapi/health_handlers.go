package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobmail-engine/internal/store"
)

type HealthHandler struct {
	DB *store.DB
}

func (h HealthHandler) Health(c echo.Context) error {
	out := map[string]any{
		"ok":   true,
		"time": time.Now().Format(time.RFC3339),
		"db":   "disabled",
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.X.PingContext(ctx); err != nil {
			out["ok"] = false
			out["db"] = err.Error()
			return c.JSON(http.StatusServiceUnavailable, out)
		}
		out["db"] = "ok"
	}
	return c.JSON(http.StatusOK, out)
}
