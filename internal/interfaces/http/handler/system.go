package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/clinicerp/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// healthCheckTimeout bounds each dependency check
const healthCheckTimeout = 2 * time.Second

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Ping() error
}

// SystemHandler handles health and system information endpoints
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	checks    map[string]HealthChecker
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. checks are keyed by the
// dependency name reported in the health response.
func NewSystemHandler(name, version string, checks map[string]HealthChecker, logger *zap.Logger) *SystemHandler {
	if checks == nil {
		checks = map[string]HealthChecker{}
	}
	return &SystemHandler{
		BaseHandler: BaseHandler{logger: logger},
		name:        name,
		version:     version,
		checks:      checks,
		startTime:   time.Now(),
	}
}

// HealthResponse is the health endpoint payload
type HealthResponse struct {
	Status    string            `json:"status" example:"healthy"`
	Name      string            `json:"name" example:"clinic-invoicing"`
	Version   string            `json:"version" example:"1.0.0"`
	GoVersion string            `json:"go_version" example:"go1.25.5"`
	Uptime    string            `json:"uptime" example:"1h30m45s"`
	Checks    map[string]string `json:"checks"`
}

// Health pings every dependency. Any failure answers 503.
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}

	for name, checker := range h.checks {
		if err := pingWithTimeout(c.Request.Context(), checker); err != nil {
			resp.Status = "unhealthy"
			resp.Checks[name] = err.Error()
			if h.logger != nil {
				h.logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			}
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}

func pingWithTimeout(ctx context.Context, checker HealthChecker) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- checker.Ping() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
