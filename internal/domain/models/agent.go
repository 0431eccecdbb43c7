package models

import (
	"time"
)

// Agent is a business's voice phone agent and the pointer to its active prompt.
type Agent struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	BusinessName    string    `json:"business_name"`
	AgentName       string    `json:"agent_name"`
	Industry        string    `json:"industry,omitempty"`
	Timezone        string    `json:"timezone,omitempty"`
	PhoneNumber     string    `json:"phone_number,omitempty"`
	VendorAgentID   string    `json:"vendor_agent_id,omitempty"`
	VendorLLMID     string    `json:"vendor_llm_id,omitempty"`
	CurrentPromptID string    `json:"current_prompt_id,omitempty"`
	AutoAnalyze     bool      `json:"auto_analyze"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewAgent(id, userID, businessName, agentName string) *Agent {
	now := time.Now()
	return &Agent{
		ID:           id,
		UserID:       userID,
		BusinessName: businessName,
		AgentName:    agentName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasVendorConfig reports whether the agent is linked to a vendor agent and LLM.
func (a *Agent) HasVendorConfig() bool {
	return a.VendorAgentID != "" && a.VendorLLMID != ""
}

// OwnedBy reports whether userID may read and modify the agent.
func (a *Agent) OwnedBy(userID string) bool {
	return a.UserID == userID
}
