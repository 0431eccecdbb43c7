package dto

import (
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// SectionSummary describes one section of a compiled prompt
type SectionSummary struct {
	Kind           prompt.SectionKind `json:"kind"`
	Heading        string             `json:"heading,omitempty"`
	KnowledgeItems int                `json:"knowledge_items,omitempty"`
}

type PromptResponse struct {
	Success  bool                  `json:"success"`
	Version  *models.PromptVersion `json:"version"`
	Sections []SectionSummary      `json:"sections,omitempty"`
}

func NewPromptResponse(version *models.PromptVersion) *PromptResponse {
	resp := &PromptResponse{Success: true, Version: version}
	if version.Document != nil {
		for _, s := range version.Document.Sections {
			resp.Sections = append(resp.Sections, SectionSummary{
				Kind:           s.Kind,
				Heading:        s.Heading(),
				KnowledgeItems: len(s.Items),
			})
		}
	}
	return resp
}

type PromptVersionListResponse struct {
	Success          bool                    `json:"success"`
	CurrentVersionID string                  `json:"current_version_id,omitempty"`
	Versions         []*models.PromptVersion `json:"versions"`
}

// EditPromptRequest saves a user edit. BaseVersionID defaults to the
// agent's current version.
type EditPromptRequest struct {
	Prompt        string `json:"prompt"`
	BaseVersionID string `json:"base_version_id,omitempty"`
	ChangeSummary string `json:"change_summary,omitempty"`
}

type RestoreVersionRequest struct {
	VersionID string `json:"version_id"`
}

type AddKnowledgeItemRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type AddKnowledgeURLRequest struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

type KnowledgeBaseResponse struct {
	Success   bool                  `json:"success"`
	Version   *models.PromptVersion `json:"version"`
	Placement prompt.Placement      `json:"placement"`
}
