package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/abnerjacobsen/das-sankhya/internal/logger"
	"github.com/abnerjacobsen/das-sankhya/internal/metrics"
	"github.com/abnerjacobsen/das-sankhya/internal/middleware"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check represents a health check result
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Response represents the health check response
type Response struct {
	Status    Status           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
}

// Checker is a function that performs a health check
type Checker func(ctx context.Context) Check

// Pinger is implemented by dependencies that answer a ping, such as the Redis client
type Pinger interface {
	Ping(ctx context.Context) error
}

// Getter is implemented by the upstream client
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Manager manages health checks
type Manager struct {
	checks map[string]Checker
	mu     sync.RWMutex
}

// NewManager creates a new health check manager
func NewManager() *Manager {
	return &Manager{
		checks: make(map[string]Checker),
	}
}

// Register registers a health check
func (m *Manager) Register(name string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = checker
}

// Unregister removes a health check
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.checks, name)
}

// Check runs all health checks
func (m *Manager) Check(ctx context.Context) Response {
	m.mu.RLock()
	checkers := make(map[string]Checker, len(m.checks))
	for name, checker := range m.checks {
		checkers[name] = checker
	}
	m.mu.RUnlock()

	checks := make(map[string]Check, len(checkers))
	overallStatus := StatusHealthy

	for name, checker := range checkers {
		start := time.Now()
		check := checker(ctx)
		checks[name] = check

		result := "ok"
		if check.Status != StatusHealthy {
			result = "fail"
		}
		metrics.RecordDependencyCheck(name, result, time.Since(start))

		// Update overall status
		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
		} else if check.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return Response{
		Status:    overallStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
}

// LivenessHandler returns a handler for liveness probes
// Liveness indicates if the application is running
func (m *Manager) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := Response{
			Status:    StatusHealthy,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		m.write(w, r, http.StatusOK, response)
	}
}

// ReadinessHandler returns a handler for readiness probes
// Readiness indicates if the application is ready to serve traffic
func (m *Manager) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := m.Check(r.Context())

		status := http.StatusOK
		if response.Status != StatusHealthy {
			status = http.StatusServiceUnavailable
		}
		m.write(w, r, status, response)
	}
}

// HealthHandler returns a general health check handler
func (m *Manager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.write(w, r, http.StatusOK, m.Check(r.Context()))
	}
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, status int, response Response) {
	if err := middleware.WriteJSON(w, status, response); err != nil {
		logger.FromContext(r.Context(), "health").Error("failed to encode health response", logger.Fields{
			"error": err.Error(),
		})
	}
}

// Predefined health checkers

// ConfigChecker checks if configuration is valid
func ConfigChecker(isValid func() bool) Checker {
	return func(ctx context.Context) Check {
		if isValid() {
			return Check{
				Name:   "config",
				Status: StatusHealthy,
			}
		}
		return Check{
			Name:   "config",
			Status: StatusUnhealthy,
			Error:  "configuration is invalid",
		}
	}
}

// RedisChecker checks Redis connectivity
func RedisChecker(p Pinger) Checker {
	return func(ctx context.Context) Check {
		if err := p.Ping(ctx); err != nil {
			return Check{
				Name:   "redis",
				Status: StatusUnhealthy,
				Error:  err.Error(),
			}
		}
		return Check{
			Name:   "redis",
			Status: StatusHealthy,
		}
	}
}

// UpstreamChecker checks that the host behind url answers at all.
// Any HTTP response, whatever its status, counts as healthy.
func UpstreamChecker(name string, g Getter, url string) Checker {
	return func(ctx context.Context) Check {
		resp, err := g.Get(ctx, url)
		if err != nil {
			return Check{
				Name:   name,
				Status: StatusUnhealthy,
				Error:  err.Error(),
			}
		}
		resp.Body.Close()

		return Check{
			Name:   name,
			Status: StatusHealthy,
		}
	}
}
