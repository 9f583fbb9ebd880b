package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one backing service (database, redis).
type Check func(ctx context.Context) error

type Handler struct{ checks map[string]Check }

func NewHandler(checks map[string]Check) *Handler { return &Handler{checks: checks} }

func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	var down []string
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			down = append(down, name)
		}
	}
	sort.Strings(down)

	code, status := http.StatusOK, "ok"
	if len(down) > 0 {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	body := map[string]any{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	if len(down) > 0 {
		body["down"] = down
	}
	return c.JSON(code, body)
}
