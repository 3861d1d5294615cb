package handlers

import (
	"context"
	"time"

	"github.com/fasthttp/router"
	xhttp "github.com/ledgerkraft/bookkeeping/pkg/http"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks  map[string]HealthChecker
	timeout time.Duration
}

func RegisterHealthRoutes(e *router.Group, h *HealthHandler) {
	e.GET("/health", h.GetHealth)
}

// NewHealthHandler pings every named dependency on each request.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		timeout: 2 * time.Second,
	}
}

func (h *HealthHandler) GetHealth(ctx *xhttp.RequestCtx) {
	pingCtx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check.Ping(pingCtx); err != nil {
			logger.Warn("health check failed", "dependency", name, "error", err)
			writeError(ctx, xhttp.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	ctx.Response.SetBodyString("success")
}
