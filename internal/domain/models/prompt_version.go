package models

import (
	"time"

	"github.com/voicedesk/voicedesk/internal/prompt"
)

// GenerationMethod records how a prompt version was produced.
type GenerationMethod string

const (
	GenerationMethodInitial      GenerationMethod = "initial"
	GenerationMethodUserEdited   GenerationMethod = "user_edited"
	GenerationMethodAutoImproved GenerationMethod = "auto_improved"
)

func (m GenerationMethod) IsValid() bool {
	switch m {
	case GenerationMethodInitial, GenerationMethodUserEdited, GenerationMethodAutoImproved:
		return true
	}
	return false
}

// PromptVersion is an immutable compiled prompt in an agent's history.
// Document, when present, is the structured form of CompiledPrompt.
type PromptVersion struct {
	ID               string           `json:"id"`
	AgentID          string           `json:"agent_id"`
	VersionNumber    int              `json:"version_number"`
	CompiledPrompt   string           `json:"compiled_prompt"`
	Document         *prompt.Document `json:"-"`
	GenerationMethod GenerationMethod `json:"generation_method"`
	ParentVersionID  string           `json:"parent_version_id,omitempty"`
	ChangeSummary    string           `json:"change_summary,omitempty"`
	TokenCount       int              `json:"token_count"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewPromptVersion builds an unnumbered version from a document.
// The version store assigns VersionNumber when it is persisted.
func NewPromptVersion(id, agentID string, doc *prompt.Document, method GenerationMethod, parentID, summary string) *PromptVersion {
	text := doc.Render()
	return &PromptVersion{
		ID:               id,
		AgentID:          agentID,
		CompiledPrompt:   text,
		Document:         doc,
		GenerationMethod: method,
		ParentVersionID:  parentID,
		ChangeSummary:    summary,
		TokenCount:       prompt.TokenCount(text),
		CreatedAt:        time.Now(),
	}
}

// Structured returns a copy of the version's document, parsing the text
// when no structured form was stored.
func (v *PromptVersion) Structured() *prompt.Document {
	if v.Document != nil && v.Document.Render() == v.CompiledPrompt {
		return v.Document.Clone()
	}
	return prompt.Parse(v.CompiledPrompt)
}
