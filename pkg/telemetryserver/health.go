package telemetryserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/JailtonJunior94/tracekit-go/pkg/observability"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthCheckFunc reports an unhealthy dependency with a non-nil error.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one health check.
type CheckResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// runChecks runs every check in parallel under a shared timeout.
func runChecks(ctx context.Context, checks map[string]HealthCheckFunc, timeout time.Duration) (map[string]CheckResult, bool) {
	if len(checks) == 0 {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(map[string]CheckResult, len(checks))
	failed := false
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result := CheckResult{Status: statusHealthy}
			if err := check(ctx); err != nil {
				result = CheckResult{Status: statusUnhealthy, Error: err.Error()}
			}

			mu.Lock()
			defer mu.Unlock()
			results[name] = result
			if result.Status == statusUnhealthy {
				failed = true
			}
		}()
	}
	wg.Wait()

	return results, failed
}

func healthHandler(config Config, checks map[string]HealthCheckFunc, logger observability.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const healthCheckTimeout = 5 * time.Second

		results, failed := runChecks(r.Context(), checks, healthCheckTimeout)

		status := statusHealthy
		statusCode := http.StatusOK
		if failed {
			status = statusUnhealthy
			statusCode = http.StatusServiceUnavailable
			for name, result := range results {
				if result.Status == statusUnhealthy {
					logger.Warn(r.Context(), "health check failed",
						observability.String("check", name),
						observability.String("error", result.Error),
					)
				}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_ = json.NewEncoder(w).Encode(HealthStatus{
			Status:    status,
			Service:   config.ServiceName,
			Version:   config.ServiceVersion,
			Timestamp: time.Now(),
			Checks:    results,
		})
	}
}

func liveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func traceDumpHandler(src TraceSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(src.ActiveTraces())
	}
}
