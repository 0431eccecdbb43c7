package handlers

import (
	"net/http"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// AnalysisHandler runs batch analyses and turns their issues into
// prompt rewrite suggestions.
type AnalysisHandler struct {
	agents   ports.AgentService
	analyses ports.AnalysisService
	analyze  ports.RunBatchAnalysisUseCase
	rewrite  ports.GenerateRewriteUseCase
}

func NewAnalysisHandler(
	agents ports.AgentService,
	analyses ports.AnalysisService,
	analyze ports.RunBatchAnalysisUseCase,
	rewrite ports.GenerateRewriteUseCase,
) *AnalysisHandler {
	return &AnalysisHandler{
		agents:   agents,
		analyses: analyses,
		analyze:  analyze,
		rewrite:  rewrite,
	}
}

// Analyze runs a batch analysis synchronously. Zero counts select the
// configured defaults.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	req := &dto.AnalyzeRequest{}
	if r.ContentLength != 0 {
		if req, ok = decodeJSON[dto.AnalyzeRequest](r, w); !ok {
			return
		}
	}

	analysis, err := h.analyze.Execute(r.Context(), &ports.RunBatchAnalysisInput{
		AgentID:   agent.ID,
		CallCount: req.CallCount,
		DaysSince: req.DaysSince,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.AnalysisResponse{Success: true, Analysis: analysis}, http.StatusCreated)
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	analyses, err := h.analyses.ListByAgent(r.Context(), agent.ID, parseIntQuery(r, "limit", 20))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.AnalysisListResponse{Success: true, Analyses: analyses}, http.StatusOK)
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := validateURLParam(r, w, "id", "analysis id")
	if !ok {
		return
	}

	analysis, err := h.analyses.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if _, ok := requireOwnedAgent(w, r, h.agents, analysis.AgentID); !ok {
		return
	}
	respondJSON(w, &dto.AnalysisResponse{Success: true, Analysis: analysis}, http.StatusOK)
}

// GenerateFix proposes a rewrite addressing the selected issues. The
// agent's current prompt is not changed until the suggestion is accepted.
func (h *AnalysisHandler) GenerateFix(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	req, ok := decodeJSON[dto.GenerateFixRequest](r, w)
	if !ok {
		return
	}

	out, err := h.rewrite.Execute(r.Context(), &ports.GenerateRewriteInput{
		AgentID:    agent.ID,
		AnalysisID: req.AnalysisID,
		Issues:     req.Issues,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.GenerateFixResponse{
		Success:         true,
		SuggestionID:    out.Optimization.ID,
		Optimization:    out.Optimization,
		ProposedVersion: out.ProposedVersion,
		SkippedIssues:   out.Skipped,
	}, http.StatusCreated)
}
