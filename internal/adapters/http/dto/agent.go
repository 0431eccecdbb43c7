package dto

import (
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

type AgentResponse struct {
	Success bool                  `json:"success"`
	Agent   *models.Agent         `json:"agent"`
	Prompt  *models.PromptVersion `json:"prompt,omitempty"`
}

type AgentListResponse struct {
	Success bool            `json:"success"`
	Agents  []*models.Agent `json:"agents"`
	Total   int             `json:"total"`
}
