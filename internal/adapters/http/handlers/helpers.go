package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/adapters/http/middleware"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

const maxRequestBody = 1024 * 1024

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, code string, message string, status int) {
	respondJSON(w, dto.NewErrorResponse(code, message), status)
}

// respondDomainError maps err onto an HTTP status and error code.
// Unclassified errors are logged and reported without their message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	var de *domain.DomainError
	if errors.As(err, &de) && de.Code != "" {
		code = de.Code
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
		message = "internal server error"
	}
	respondError(w, code, message, status)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrCreditsExhausted):
		return http.StatusPaymentRequired, "credits_exhausted"
	case domain.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNoFixableIssues):
		return http.StatusBadRequest, "no_fixable_issues"
	case errors.Is(err, domain.ErrNoCompletedCalls):
		return http.StatusBadRequest, "no_completed_calls"
	case errors.Is(err, domain.ErrKnowledgeItemInvalid):
		return http.StatusBadRequest, "invalid_knowledge_item"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrABTestAlreadyRunning):
		return http.StatusConflict, "ab_test_running"
	case errors.Is(err, domain.ErrInvalidStatusTransition):
		return http.StatusConflict, "invalid_status_transition"
	case errors.Is(err, domain.ErrConcurrentUpdate):
		return http.StatusConflict, "concurrent_update"
	case errors.Is(err, domain.ErrEmptyRewrite),
		errors.Is(err, domain.ErrAnalysisMalformed),
		errors.Is(err, domain.ErrLLMRequestFailed):
		return http.StatusBadGateway, "llm_failed"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "vendor_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// parseIntQuery parses an integer query parameter with a default value
func parseIntQuery(r *http.Request, name string, defaultValue int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// validateURLParam validates and returns a URL parameter
func validateURLParam(r *http.Request, w http.ResponseWriter, paramName, errorField string) (string, bool) {
	value := chi.URLParam(r, paramName)
	if value == "" {
		respondError(w, "invalid_request", errorField+" is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// decodeJSON decodes JSON request body with error handling
func decodeJSON[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}

// requireAgent loads the {id} agent owned by the authenticated user.
// Agents owned by someone else are reported as not found.
func requireAgent(w http.ResponseWriter, r *http.Request, agents ports.AgentService) (*models.Agent, bool) {
	agentID, ok := validateURLParam(r, w, "id", "agent id")
	if !ok {
		return nil, false
	}
	return requireOwnedAgent(w, r, agents, agentID)
}

func requireOwnedAgent(w http.ResponseWriter, r *http.Request, agents ports.AgentService, agentID string) (*models.Agent, bool) {
	agent, err := agents.Get(r.Context(), middleware.GetUserID(r.Context()), agentID)
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	return agent, true
}
