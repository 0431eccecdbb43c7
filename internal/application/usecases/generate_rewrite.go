package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/voicedesk/voicedesk/internal/adapters/tracing"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/llm"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// RewriteConfig selects the model used for rewrites.
type RewriteConfig struct {
	Model     string
	MaxTokens int
}

// GenerateRewrite asks the LLM to revise the current prompt for a set of
// issues. The revision is stored as a new version that is not current and
// a pending optimization that points at it.
type GenerateRewrite struct {
	prompts       ports.PromptService
	analyses      ports.AnalysisRepository
	optimizations ports.OptimizationRepository
	llm           ports.LLMProvider
	txManager     ports.TransactionManager
	idGenerator   ports.IDGenerator
	config        RewriteConfig
}

func NewGenerateRewrite(
	prompts ports.PromptService,
	analyses ports.AnalysisRepository,
	optimizations ports.OptimizationRepository,
	llmProvider ports.LLMProvider,
	txManager ports.TransactionManager,
	idGenerator ports.IDGenerator,
	config RewriteConfig,
) *GenerateRewrite {
	if config.MaxTokens <= 0 {
		config.MaxTokens = 8192
	}
	return &GenerateRewrite{
		prompts:       prompts,
		analyses:      analyses,
		optimizations: optimizations,
		llm:           llmProvider,
		txManager:     txManager,
		idGenerator:   idGenerator,
		config:        config,
	}
}

func (uc *GenerateRewrite) Execute(ctx context.Context, input *ports.GenerateRewriteInput) (out *ports.GenerateRewriteOutput, err error) {
	if input == nil || strings.TrimSpace(input.AgentID) == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "agent ID is required")
	}

	fixable := models.FixableIssues(input.Issues)
	if len(fixable) == 0 {
		return nil, domain.ErrNoFixableIssues
	}

	ctx, span := tracing.Start(ctx, "usecases.generate_rewrite",
		attribute.String("agent_id", input.AgentID),
		attribute.Int("issues", len(fixable)),
	)
	defer func() { tracing.End(span, err) }()

	if input.AnalysisID != "" {
		analysis, err := uc.analyses.GetByID(ctx, input.AnalysisID)
		if err != nil {
			return nil, err
		}
		if analysis.AgentID != input.AgentID {
			return nil, domain.ErrAnalysisNotFound
		}
	}

	current, err := uc.prompts.Current(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}

	resp, err := uc.llm.Complete(ctx, ports.LLMRequest{
		Model:     uc.config.Model,
		System:    rewriteSystemPrompt,
		Prompt:    rewritePrompt(current.CompiledPrompt, fixable),
		MaxTokens: uc.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generating rewrite: %w", err)
	}

	revised := llm.ExtractTag(resp.Content, "revised_prompt")
	if revised == "" {
		return nil, domain.ErrEmptyRewrite
	}
	summary := llm.ExtractTag(resp.Content, "change_summary")
	if summary == "" {
		summary = fmt.Sprintf("Addressed %d issue(s)", len(fixable))
	}

	out = &ports.GenerateRewriteOutput{Skipped: len(input.Issues) - len(fixable)}
	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		version, err := uc.prompts.CreateVersion(txCtx, input.AgentID, prompt.Parse(revised),
			models.GenerationMethodAutoImproved, current.ID, summary)
		if err != nil {
			return err
		}

		opt := models.NewOptimization(uc.idGenerator.GenerateOptimizationID(), input.AgentID,
			input.AnalysisID, current.ID, version.ID, fixable, summary)
		if err := uc.optimizations.Create(txCtx, opt); err != nil {
			return domain.NewDomainError(err, "failed to store optimization")
		}

		out.ProposedVersion = version
		out.Optimization = opt
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("prompt rewrite proposed",
		"agent_id", input.AgentID,
		"optimization_id", out.Optimization.ID,
		"proposed_version_id", out.ProposedVersion.ID,
		"skipped_issues", out.Skipped,
	)
	return out, nil
}

func rewritePrompt(current string, issues []models.Issue) string {
	var b strings.Builder
	b.WriteString("<current_prompt>\n")
	b.WriteString(current)
	b.WriteString("\n</current_prompt>\n\n<issues>\n")
	for i, is := range issues {
		fmt.Fprintf(&b, "%d. [%s] %s\n   section: %s\n", i+1, is.Severity, is.Issue, is.TargetSection)
		if is.FixGuidance != "" {
			fmt.Fprintf(&b, "   fix: %s\n", is.FixGuidance)
		}
		if is.Evidence != "" {
			fmt.Fprintf(&b, "   evidence: %s\n", is.Evidence)
		}
	}
	b.WriteString("</issues>\n")
	return b.String()
}

const rewriteSystemPrompt = `You revise the system prompt of an AI phone receptionist.

Change only what is needed to fix the listed issues. Keep every "## " section heading, the order of sections
and all knowledge base entries exactly as they are. Do not invent business facts.

Return the complete revised prompt between <revised_prompt> and </revised_prompt>,
then a one-line description of the change between <change_summary> and </change_summary>.`
