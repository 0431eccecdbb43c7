package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

type CallsHandler struct {
	agents        ports.AgentService
	calls         ports.CallService
	webhookSecret string
}

// NewCallsHandler builds the call handlers. An empty webhookSecret accepts
// unauthenticated webhooks.
func NewCallsHandler(agents ports.AgentService, calls ports.CallService, webhookSecret string) *CallsHandler {
	return &CallsHandler{
		agents:        agents,
		calls:         calls,
		webhookSecret: webhookSecret,
	}
}

func (h *CallsHandler) List(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	calls, err := h.calls.ListRecent(r.Context(), agent.ID, parseIntQuery(r, "limit", 50))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.CallListResponse{Success: true, Calls: calls}, http.StatusOK)
}

// Sync backfills calls from the vendor's call list.
func (h *CallsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	n, err := h.calls.SyncFromVendor(r.Context(), agent.ID, parseIntQuery(r, "limit", 100))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.SyncCallsResponse{Success: true, Synced: n}, http.StatusOK)
}

// Webhook records a vendor call event. Unknown event types are acknowledged
// so the vendor does not retry them.
func (h *CallsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookSecret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
			respondError(w, "unauthorized", "invalid webhook secret", http.StatusUnauthorized)
			return
		}
	}

	event, ok := decodeJSON[models.WebhookEvent](r, w)
	if !ok {
		return
	}

	call, err := h.calls.HandleWebhook(r.Context(), event)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if call == nil {
		respondJSON(w, &dto.WebhookResponse{Success: true, Ignored: true}, http.StatusOK)
		return
	}
	respondJSON(w, &dto.WebhookResponse{Success: true, CallID: call.ID}, http.StatusOK)
}
