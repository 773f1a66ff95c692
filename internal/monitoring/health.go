package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker tracks the liveness of the risk engine: when it last
// evaluated anything and what operating state the circuit breaker is in.
type HealthChecker struct {
	mu             sync.RWMutex
	lastEvaluation time.Time
	breakerState   string
	errors         []string
}

// HealthStatus is the JSON payload served by the health endpoint
type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastEvaluation time.Time `json:"last_evaluation"`
	BreakerState   string    `json:"breaker_state"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker with no recorded activity
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		breakerState: "NORMAL",
		errors:       make([]string, 0),
	}
}

// RecordEvaluation notes that a risk evaluation completed
func (h *HealthChecker) RecordEvaluation(breakerState string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvaluation = time.Now()
	h.breakerState = breakerState
}

// RecordError appends an error to the health report
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[1:]
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if h.breakerState == "EMERGENCY" || h.breakerState == "HALTED" {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:         status,
		Timestamp:      time.Now(),
		LastEvaluation: h.lastEvaluation,
		BreakerState:   h.breakerState,
		Uptime:         time.Since(startTime).String(),
		Errors:         h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
