package handlers

import (
	"net/http"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/adapters/http/middleware"
	"github.com/voicedesk/voicedesk/internal/ports"
)

type AgentsHandler struct {
	agents ports.AgentService
}

func NewAgentsHandler(agents ports.AgentService) *AgentsHandler {
	return &AgentsHandler{agents: agents}
}

func (h *AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ports.CreateAgentInput](r, w)
	if !ok {
		return
	}
	req.UserID = middleware.GetUserID(r.Context())

	agent, version, err := h.agents.Create(r.Context(), req)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, &dto.AgentResponse{Success: true, Agent: agent, Prompt: version}, http.StatusCreated)
}

func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	agents, err := h.agents.List(r.Context(), middleware.GetUserID(r.Context()), limit, offset)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, &dto.AgentListResponse{Success: true, Agents: agents, Total: len(agents)}, http.StatusOK)
}

func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, ok := requireAgent(w, r, h.agents)
	if !ok {
		return
	}
	respondJSON(w, &dto.AgentResponse{Success: true, Agent: agent}, http.StatusOK)
}
