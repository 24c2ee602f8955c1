package health

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
)

// Checker handles health check endpoints
type Checker struct {
	db        *sqlx.DB
	version   string
	startTime time.Time
	ready     atomic.Bool
}

// NewChecker creates a new health checker
func NewChecker(db *sqlx.DB, version string) *Checker {
	return &Checker{
		db:        db,
		version:   version,
		startTime: time.Now(),
	}
}

// SetReady sets the readiness state
func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

// RegisterRoutes registers health check endpoints
func (c *Checker) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/v1/health", c.Health)
	e.GET("/api/v1/health/live", c.Live)
	e.GET("/api/v1/health/ready", c.Ready)
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string                  `json:"status"`
	Version    string                  `json:"version"`
	Uptime     string                  `json:"uptime"`
	Checks     map[string]*CheckResult `json:"checks"`
	ReportedAt time.Time               `json:"reported_at"`
}

// CheckResult represents an individual check result
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// Health returns the overall health status
func (c *Checker) Health(ctx echo.Context) error {
	status := &HealthStatus{
		Status:     "healthy",
		Version:    c.version,
		Uptime:     time.Since(c.startTime).Round(time.Second).String(),
		Checks:     map[string]*CheckResult{},
		ReportedAt: time.Now().UTC(),
	}

	status.Checks["database"] = c.checkDatabase(ctx.Request().Context())
	for _, check := range status.Checks {
		if check.Status != "healthy" {
			status.Status = "unhealthy"
		}
	}

	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, status)
}

// Live reports process liveness
func (c *Checker) Live(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

// Ready reports whether the service can take traffic
func (c *Checker) Ready(ctx echo.Context) error {
	if !c.ready.Load() {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "starting"})
	}
	if check := c.checkDatabase(ctx.Request().Context()); check.Status != "healthy" {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unready", "reason": check.Message})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (c *Checker) checkDatabase(ctx context.Context) *CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	if err := c.db.PingContext(ctx); err != nil {
		return &CheckResult{
			Status:  "unhealthy",
			Message: fmt.Sprintf("ping failed: %v", err),
			Latency: time.Since(start).String(),
		}
	}
	return &CheckResult{Status: "healthy", Latency: time.Since(start).String()}
}
