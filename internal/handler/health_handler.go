package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness endpoints.
type HealthHandler struct {
	env    string
	checks map[string]Pinger
	now    func() time.Time
}

// NewHealthHandler creates a health handler. checks are consulted by Ready.
func NewHealthHandler(env string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{env: env, checks: checks, now: time.Now}
}

// HealthResponse represents a health report.
type HealthResponse struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	Environment string            `json:"environment"`
	Timestamp   string            `json:"timestamp"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// Root answers on "/".
func (h *HealthHandler) Root(c echo.Context) error {
	return c.String(http.StatusOK, "PDF Q&A API is running")
}

// Live answers /healthz.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Health godoc
// @Summary Health check
// @Description Reports reachability of the database and Redis.
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Success:     true,
		Message:     "Server is healthy",
		Environment: h.env,
		Timestamp:   h.now().UTC().Format(time.RFC3339Nano),
	}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = "down"
			resp.Success = false
			resp.Message = "Server is degraded"
			continue
		}
		resp.Checks[name] = "up"
	}

	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
