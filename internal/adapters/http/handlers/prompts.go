package handlers

import (
	"net/http"
	"strings"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// PromptsHandler serves an agent's compiled prompt, its version history
// and knowledge base merges.
type PromptsHandler struct {
	agents        ports.AgentService
	prompts       ports.PromptService
	knowledgeBase ports.KnowledgeBaseService
}

func NewPromptsHandler(agents ports.AgentService, prompts ports.PromptService, knowledgeBase ports.KnowledgeBaseService) *PromptsHandler {
	return &PromptsHandler{
		agents:        agents,
		prompts:       prompts,
		knowledgeBase: knowledgeBase,
	}
}

func (h *PromptsHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	version, err := h.prompts.Current(r.Context(), agent.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, dto.NewPromptResponse(version), http.StatusOK)
}

// Save stores a user edit as a new version and activates it. The edit is
// rejected with a conflict if the prompt changed since BaseVersionID.
func (h *PromptsHandler) Save(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	req, ok := decodeJSON[dto.EditPromptRequest](r, w)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, "invalid_request", "prompt is required", http.StatusBadRequest)
		return
	}

	base := req.BaseVersionID
	if base == "" {
		base = agent.CurrentPromptID
	}
	summary := strings.TrimSpace(req.ChangeSummary)
	if summary == "" {
		summary = "Manual edit"
	}

	version, err := h.prompts.SaveAndActivate(r.Context(), agent.ID, base, prompt.Parse(req.Prompt), models.GenerationMethodUserEdited, summary)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, dto.NewPromptResponse(version), http.StatusCreated)
}

func (h *PromptsHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}

	versions, err := h.prompts.List(r.Context(), agent.ID, parseIntQuery(r, "limit", 50))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.PromptVersionListResponse{
		Success:          true,
		CurrentVersionID: agent.CurrentPromptID,
		Versions:         versions,
	}, http.StatusOK)
}

func (h *PromptsHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	versionID, ok := validateURLParam(r, w, "versionId", "version id")
	if !ok {
		return
	}

	version, err := h.prompts.Get(r.Context(), agent.ID, versionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, dto.NewPromptResponse(version), http.StatusOK)
}

func (h *PromptsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	req, ok := decodeJSON[dto.RestoreVersionRequest](r, w)
	if !ok {
		return
	}
	if req.VersionID == "" {
		respondError(w, "invalid_request", "version_id is required", http.StatusBadRequest)
		return
	}

	version, err := h.prompts.Restore(r.Context(), agent.ID, req.VersionID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, dto.NewPromptResponse(version), http.StatusOK)
}

func (h *PromptsHandler) AddKnowledgeItem(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	req, ok := decodeJSON[dto.AddKnowledgeItemRequest](r, w)
	if !ok {
		return
	}

	version, placement, err := h.knowledgeBase.AddItem(r.Context(), agent.ID, prompt.KnowledgeItem{
		Name:    req.Name,
		Content: req.Content,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.KnowledgeBaseResponse{Success: true, Version: version, Placement: placement}, http.StatusCreated)
}

func (h *PromptsHandler) AddKnowledgeURL(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	req, ok := decodeJSON[dto.AddKnowledgeURLRequest](r, w)
	if !ok {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		respondError(w, "invalid_request", "url is required", http.StatusBadRequest)
		return
	}

	version, placement, err := h.knowledgeBase.AddFromURL(r.Context(), agent.ID, req.URL, req.Name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, &dto.KnowledgeBaseResponse{Success: true, Version: version, Placement: placement}, http.StatusCreated)
}
