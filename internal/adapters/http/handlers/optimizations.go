package handlers

import (
	"net/http"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// OptimizationsHandler reviews rewrite suggestions and closes the A/B
// tests started by accepting them.
type OptimizationsHandler struct {
	agents        ports.AgentService
	optimizations ports.OptimizationService
	abTests       ports.ABTestService
	review        ports.ReviewOptimizationUseCase
}

func NewOptimizationsHandler(
	agents ports.AgentService,
	optimizations ports.OptimizationService,
	abTests ports.ABTestService,
	review ports.ReviewOptimizationUseCase,
) *OptimizationsHandler {
	return &OptimizationsHandler{
		agents:        agents,
		optimizations: optimizations,
		abTests:       abTests,
		review:        review,
	}
}

func (h *OptimizationsHandler) List(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	opts, err := h.optimizations.ListByAgent(r.Context(), agent.ID, parseIntQuery(r, "limit", 20))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.OptimizationListResponse{Success: true, Optimizations: opts}, http.StatusOK)
}

func (h *OptimizationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	opt, ok := h.loadOptimization(w, r)
	if !ok {
		return
	}
	respondJSON(w, &dto.OptimizationResponse{Success: true, Optimization: opt}, http.StatusOK)
}

// Accept starts an A/B test of the proposed version against the current one.
func (h *OptimizationsHandler) Accept(w http.ResponseWriter, r *http.Request) {
	opt, ok := h.loadOptimization(w, r)
	if !ok {
		return
	}

	opt, test, err := h.review.Accept(r.Context(), opt.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.OptimizationResponse{Success: true, Optimization: opt, ABTest: test}, http.StatusOK)
}

func (h *OptimizationsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	opt, ok := h.loadOptimization(w, r)
	if !ok {
		return
	}
	req := &dto.RejectOptimizationRequest{}
	if r.ContentLength != 0 {
		if req, ok = decodeJSON[dto.RejectOptimizationRequest](r, w); !ok {
			return
		}
	}

	opt, err := h.review.Reject(r.Context(), opt.ID, req.Feedback)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.OptimizationResponse{Success: true, Optimization: opt}, http.StatusOK)
}

func (h *OptimizationsHandler) GetABTest(w http.ResponseWriter, r *http.Request) {
	id, ok := validateURLParam(r, w, "id", "a/b test id")
	if !ok {
		return
	}

	test, arms, err := h.abTests.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if _, ok := requireOwnedAgent(w, r, h.agents, test.AgentID); !ok {
		return
	}
	respondJSON(w, &dto.ABTestResponse{Success: true, ABTest: test, Attribution: arms, AttributionOnly: true}, http.StatusOK)
}

// CompleteABTest closes a running test with the caller's chosen winner.
func (h *OptimizationsHandler) CompleteABTest(w http.ResponseWriter, r *http.Request) {
	id, ok := validateURLParam(r, w, "id", "a/b test id")
	if !ok {
		return
	}
	req, ok := decodeJSON[dto.CompleteABTestRequest](r, w)
	if !ok {
		return
	}
	if !req.Winner.IsValid() {
		respondError(w, "invalid_request", `winner must be "control" or "test"`, http.StatusBadRequest)
		return
	}

	test, _, err := h.abTests.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if _, ok := requireOwnedAgent(w, r, h.agents, test.AgentID); !ok {
		return
	}

	test, opt, err := h.review.CompleteABTest(r.Context(), test.ID, req.Winner)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.ABTestResponse{Success: true, ABTest: test, Optimization: opt}, http.StatusOK)
}

func (h *OptimizationsHandler) loadOptimization(w http.ResponseWriter, r *http.Request) (*models.Optimization, bool) {
	id, ok := validateURLParam(r, w, "id", "optimization id")
	if !ok {
		return nil, false
	}

	opt, err := h.optimizations.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	if _, ok := requireOwnedAgent(w, r, h.agents, opt.AgentID); !ok {
		return nil, false
	}
	return opt, true
}
