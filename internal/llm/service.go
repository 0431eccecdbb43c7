package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/internal/adapters/circuitbreaker"
	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/adapters/tracing"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds a single completion
	DefaultTimeout = 2 * time.Minute
)

// Options select and tune the configured provider
type Options struct {
	Provider          string
	APIKey            string
	BaseURL           string
	Model             string
	MaxTokens         int
	RequestsPerMinute int
	Timeout           time.Duration
}

// Service wraps a provider with admission control, a circuit breaker,
// a per-request timeout, metrics and tracing.
type Service struct {
	provider ports.LLMProvider
	limiter  *rate.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	timeout  time.Duration
}

// New builds the provider named in opts and wraps it.
func New(opts Options) (*Service, error) {
	var provider ports.LLMProvider
	switch strings.ToLower(opts.Provider) {
	case "anthropic", "":
		provider = NewAnthropicProvider(opts.APIKey, opts.BaseURL, opts.Model, opts.MaxTokens)
	case "openai":
		provider = NewOpenAIProvider(opts.APIKey, opts.BaseURL, opts.Model, opts.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	return NewService(provider, opts.RequestsPerMinute, opts.Timeout), nil
}

// NewService wraps provider. requestsPerMinute <= 0 disables rate limiting.
func NewService(provider ports.LLMProvider, requestsPerMinute int, timeout time.Duration) *Service {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	name := provider.Name()
	breaker := circuitbreaker.New(5, 30*time.Second).OnStateChange(func(s circuitbreaker.State) {
		metrics.CircuitBreakerState.WithLabelValues("llm_" + name).Set(float64(s))
	})
	return &Service{
		provider: provider,
		limiter:  rate.NewLimiter(limit, 1),
		breaker:  breaker,
		timeout:  timeout,
	}
}

func (s *Service) Name() string         { return s.provider.Name() }
func (s *Service) DefaultModel() string { return s.provider.DefaultModel() }

// Complete waits for an admission slot and sends the request.
func (s *Service) Complete(ctx context.Context, req ports.LLMRequest) (resp *ports.LLMResponse, err error) {
	model := req.Model
	if model == "" {
		model = s.provider.DefaultModel()
	}
	ctx, span := tracing.Start(ctx, "llm.complete",
		attribute.String("llm.provider", s.provider.Name()),
		attribute.String("llm.model", model),
	)
	defer func() { tracing.End(span, err) }()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for llm rate limit: %w", err)
	}

	start := time.Now()
	err = s.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		var callErr error
		resp, callErr = s.provider.Complete(callCtx, req)
		return callErr
	})
	metrics.LLMRequestDuration.WithLabelValues(s.provider.Name(), model).Observe(time.Since(start).Seconds())
	metrics.LLMRequestsTotal.WithLabelValues(s.provider.Name(), model, statusLabel(err)).Inc()

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", domain.ErrLLMRequestFailed, err)
		}
		return nil, err
	}

	metrics.LLMTokensTotal.WithLabelValues(s.provider.Name(), "input").Add(float64(resp.InputTokens))
	metrics.LLMTokensTotal.WithLabelValues(s.provider.Name(), "output").Add(float64(resp.OutputTokens))
	span.SetAttributes(
		attribute.Int64("llm.input_tokens", resp.InputTokens),
		attribute.Int64("llm.output_tokens", resp.OutputTokens),
	)
	return resp, nil
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrCreditsExhausted):
		return "credits_exhausted"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "circuit_open"
	}
	return "error"
}
