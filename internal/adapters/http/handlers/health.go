package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/voicedesk/voicedesk/internal/adapters/circuitbreaker"
)

// HealthCheckConfig holds configuration for health checks
type HealthCheckConfig struct {
	Timeout time.Duration // per dependency check
}

func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		Timeout: 5 * time.Second,
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes the circuit breaker guarding an upstream API.
type BreakerReporter interface {
	BreakerState() circuitbreaker.State
}

type HealthHandler struct {
	config        HealthCheckConfig
	version       string
	db            Pinger
	vendor        BreakerReporter
	reportLLM     bool
	llmConfigured bool
}

func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{
		config:  DefaultHealthCheckConfig(),
		version: version,
	}
}

// NewHealthHandlerWithDeps checks the database and reports the vendor
// breaker. The LLM is only reported as configured: probing it costs credits.
func NewHealthHandlerWithDeps(version string, db Pinger, vendor BreakerReporter, llmConfigured bool) *HealthHandler {
	h := NewHealthHandler(version)
	h.db = db
	h.vendor = vendor
	h.reportLLM = true
	h.llmConfigured = llmConfigured
	return h
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type DetailedHealthResponse struct {
	Status   string                   `json:"status"`
	Version  string                   `json:"version"`
	Services map[string]ServiceHealth `json:"services"`
}

type ServiceHealth struct {
	Status    string  `json:"status"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// Handle provides a basic liveness endpoint
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", Version: h.version}, http.StatusOK)
}

// HandleDetailed checks every configured dependency
func (h *HealthHandler) HandleDetailed(w http.ResponseWriter, r *http.Request) {
	response := DetailedHealthResponse{
		Version:  h.version,
		Services: make(map[string]ServiceHealth),
	}

	if h.db != nil {
		response.Services["database"] = h.checkDatabase(r.Context())
	}
	if h.vendor != nil {
		response.Services["vendor"] = h.checkVendor()
	}
	switch {
	case !h.reportLLM:
	case h.llmConfigured:
		response.Services["llm"] = ServiceHealth{Status: "healthy"}
	default:
		response.Services["llm"] = ServiceHealth{Status: "degraded", Error: strPtr("no LLM API key configured")}
	}

	response.Status = calculateOverallStatus(response.Services)

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	respondJSON(w, response, statusCode)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) ServiceHealth {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	err := h.db.Ping(checkCtx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return ServiceHealth{
			Status:    "unhealthy",
			LatencyMs: &latency,
			Error:     strPtr(err.Error()),
		}
	}
	return ServiceHealth{Status: "healthy", LatencyMs: &latency}
}

// checkVendor never calls the vendor; an open breaker already means its
// recent calls failed.
func (h *HealthHandler) checkVendor() ServiceHealth {
	switch state := h.vendor.BreakerState(); state {
	case circuitbreaker.StateClosed:
		return ServiceHealth{Status: "healthy"}
	default:
		return ServiceHealth{Status: "degraded", Error: strPtr("circuit breaker " + state.String())}
	}
}

// calculateOverallStatus is unhealthy when the database is down and
// degraded when any other service is.
func calculateOverallStatus(services map[string]ServiceHealth) string {
	degraded := false
	for name, service := range services {
		switch service.Status {
		case "unhealthy":
			if name == "database" {
				return "unhealthy"
			}
			degraded = true
		case "degraded":
			degraded = true
		}
	}
	if degraded {
		return "degraded"
	}
	return "healthy"
}

func strPtr(s string) *string { return &s }
