package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicedesk_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_llm_requests_total",
		Help: "Total LLM requests",
	}, []string{"provider", "model", "status"})

	LLMRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicedesk_llm_request_duration_seconds",
		Help:    "LLM request duration",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider", "model"})

	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_llm_tokens_total",
		Help: "LLM tokens consumed",
	}, []string{"provider", "direction"})

	BatchAnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_batch_analyses_total",
		Help: "Batch call analyses by outcome",
	}, []string{"outcome"})

	PromptVersionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_prompt_versions_created_total",
		Help: "Prompt versions created by generation method",
	}, []string{"method"})

	VendorSyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_vendor_sync_attempts_total",
		Help: "Vendor prompt delivery attempts by outcome",
	}, []string{"outcome"})

	VendorSyncPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicedesk_vendor_sync_pending",
		Help: "Vendor prompt deliveries waiting in the outbox",
	})

	ABTestsExpired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicedesk_ab_tests_expired",
		Help: "Running A/B tests past their scheduled end",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicedesk_webhook_events_total",
		Help: "Vendor webhook events received",
	}, []string{"event"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicedesk_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"name"})
)
