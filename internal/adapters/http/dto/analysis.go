package dto

import (
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

type AnalyzeRequest struct {
	CallCount int `json:"call_count,omitempty"`
	DaysSince int `json:"days_since,omitempty"`
}

type AnalysisResponse struct {
	Success  bool                  `json:"success"`
	Analysis *models.BatchAnalysis `json:"analysis"`
}

type AnalysisListResponse struct {
	Success  bool                    `json:"success"`
	Analyses []*models.BatchAnalysis `json:"analyses"`
}

type GenerateFixRequest struct {
	AnalysisID string         `json:"analysis_id,omitempty"`
	Issues     []models.Issue `json:"issues"`
}

type GenerateFixResponse struct {
	Success         bool                  `json:"success"`
	SuggestionID    string                `json:"suggestion_id"`
	Optimization    *models.Optimization  `json:"optimization"`
	ProposedVersion *models.PromptVersion `json:"proposed_version"`
	SkippedIssues   int                   `json:"skipped_issues"`
}
