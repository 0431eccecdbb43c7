package ports

import (
	"context"

	"github.com/voicedesk/voicedesk/internal/domain/models"
)

// RunBatchAnalysisInput selects the calls to analyze
type RunBatchAnalysisInput struct {
	AgentID   string `json:"agent_id"`
	CallCount int    `json:"call_count"`
	DaysSince int    `json:"days_since"`
}

// RunBatchAnalysisUseCase scores recent calls and extracts ranked issues
type RunBatchAnalysisUseCase interface {
	Execute(ctx context.Context, input *RunBatchAnalysisInput) (*models.BatchAnalysis, error)
}

// GenerateRewriteInput names the issues a rewrite should address
type GenerateRewriteInput struct {
	AgentID    string         `json:"agent_id"`
	AnalysisID string         `json:"analysis_id,omitempty"`
	Issues     []models.Issue `json:"issues"`
}

// GenerateRewriteOutput is the pending suggestion and its proposed version
type GenerateRewriteOutput struct {
	Optimization    *models.Optimization  `json:"optimization"`
	ProposedVersion *models.PromptVersion `json:"proposed_version"`
	Skipped         int                   `json:"skipped_issues"`
}

// GenerateRewriteUseCase proposes a prompt revision for selected issues
type GenerateRewriteUseCase interface {
	Execute(ctx context.Context, input *GenerateRewriteInput) (*GenerateRewriteOutput, error)
}

// ReviewOptimizationUseCase drives the optimization and A/B test state machines
type ReviewOptimizationUseCase interface {
	Accept(ctx context.Context, optimizationID string) (*models.Optimization, *models.ABTest, error)
	Reject(ctx context.Context, optimizationID, feedback string) (*models.Optimization, error)
	CompleteABTest(ctx context.Context, testID string, winner models.ABArm) (*models.ABTest, *models.Optimization, error)
}
