package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/internal/adapters/circuitbreaker"
	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/adapters/retry"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

const (
	DefaultBaseURL = "https://api.retellai.com"
	DefaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

// Client talks to the Retell agent configuration and call APIs
type Client struct {
	baseURL     string
	apiKey      string
	webhookURL  string
	httpClient  *http.Client
	retryConfig retry.BackoffConfig
	breaker     *circuitbreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, webhookURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		webhookURL:  webhookURL,
		httpClient:  &http.Client{Timeout: timeout},
		retryConfig: retry.VendorConfig(),
		breaker: circuitbreaker.New(5, time.Minute).OnStateChange(func(s circuitbreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues("retell").Set(float64(s))
		}),
	}
}

type updateLLMRequest struct {
	GeneralPrompt string `json:"general_prompt"`
}

type updateAgentRequest struct {
	WebhookURL string `json:"webhook_url"`
}

// UpdatePrompt loads the compiled prompt into the agent's Retell LLM and
// then points the agent's webhook at this service.
func (c *Client) UpdatePrompt(ctx context.Context, agent *models.Agent, compiledPrompt string) error {
	if !agent.HasVendorConfig() {
		return domain.NewDomainError(domain.ErrInvalidInput, "agent is not linked to a vendor agent")
	}

	if err := c.do(ctx, http.MethodPatch, "/update-retell-llm/"+agent.VendorLLMID, updateLLMRequest{GeneralPrompt: compiledPrompt}, nil); err != nil {
		return fmt.Errorf("updating vendor llm %s: %w", agent.VendorLLMID, err)
	}
	if c.webhookURL == "" {
		return nil
	}
	if err := c.do(ctx, http.MethodPatch, "/update-agent/"+agent.VendorAgentID, updateAgentRequest{WebhookURL: c.webhookURL}, nil); err != nil {
		return fmt.Errorf("updating vendor agent %s: %w", agent.VendorAgentID, err)
	}
	return nil
}

type listCallsRequest struct {
	FilterCriteria listCallsFilter `json:"filter_criteria"`
	Limit          int             `json:"limit"`
	SortOrder      string          `json:"sort_order"`
}

type listCallsFilter struct {
	AgentID []string `json:"agent_id"`
}

// ListCalls returns the agent's most recent calls, newest first.
func (c *Client) ListCalls(ctx context.Context, vendorAgentID string, limit int) ([]models.VendorCall, error) {
	req := listCallsRequest{
		FilterCriteria: listCallsFilter{AgentID: []string{vendorAgentID}},
		Limit:          limit,
		SortOrder:      "descending",
	}
	var calls []models.VendorCall
	if err := c.do(ctx, http.MethodPost, "/v2/list-calls", req, &calls); err != nil {
		return nil, fmt.Errorf("listing vendor calls: %w", err)
	}
	return calls, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	var respBody []byte
	err = c.breaker.Execute(func() error {
		return retry.WithBackoffHTTP(ctx, c.retryConfig, func() (int, error) {
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
			if err != nil {
				return 0, fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.apiKey)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return 0, err
			}
			defer resp.Body.Close()

			respBody, err = io.ReadAll(resp.Body)
			if err != nil {
				return resp.StatusCode, fmt.Errorf("failed to read body: %w", err)
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return 0, &retry.StatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody))}
			}
			return resp.StatusCode, nil
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %v", domain.ErrUpstreamUnavailable, method, path, err)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decoding %s response: %v", domain.ErrUpstreamUnavailable, path, err)
		}
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

// BreakerState reports whether calls to the vendor are currently short-circuited.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}
