package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/adapters/tracing"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/llm"
	"github.com/voicedesk/voicedesk/internal/ports"
)

const (
	DefaultAnalysisCallCount = 10
	DefaultAnalysisDaysSince = 7
	MaxAnalysisCallCount     = 100

	// candidateFactor over-fetches so short calls can be filtered out.
	candidateFactor      = 5
	maxCandidates        = 500
	defaultTranscriptCap = 6000
)

// BatchAnalysisConfig tunes call selection and the analysis model.
type BatchAnalysisConfig struct {
	Model           string
	MaxTokens       int
	MinExchanges    int
	TranscriptChars int
	ExtractPatterns bool
}

func DefaultBatchAnalysisConfig() BatchAnalysisConfig {
	return BatchAnalysisConfig{
		MaxTokens:       8192,
		MinExchanges:    models.DefaultMinExchanges,
		TranscriptChars: defaultTranscriptCap,
		ExtractPatterns: true,
	}
}

// RunBatchAnalysis scores an agent's recent calls in one LLM request and
// ranks the issues found across them. A second, optional request extracts
// patterns that recur across calls.
type RunBatchAnalysis struct {
	agents      ports.AgentRepository
	calls       ports.CallRepository
	analyses    ports.AnalysisRepository
	llm         ports.LLMProvider
	txManager   ports.TransactionManager
	idGenerator ports.IDGenerator
	config      BatchAnalysisConfig
	now         func() time.Time
}

func NewRunBatchAnalysis(
	agents ports.AgentRepository,
	calls ports.CallRepository,
	analyses ports.AnalysisRepository,
	llmProvider ports.LLMProvider,
	txManager ports.TransactionManager,
	idGenerator ports.IDGenerator,
	config BatchAnalysisConfig,
) *RunBatchAnalysis {
	if config.MinExchanges <= 0 {
		config.MinExchanges = models.DefaultMinExchanges
	}
	if config.TranscriptChars <= 0 {
		config.TranscriptChars = defaultTranscriptCap
	}
	return &RunBatchAnalysis{
		agents:      agents,
		calls:       calls,
		analyses:    analyses,
		llm:         llmProvider,
		txManager:   txManager,
		idGenerator: idGenerator,
		config:      config,
		now:         time.Now,
	}
}

type callEvaluationResult struct {
	CallID  string         `json:"call_id"`
	Scores  models.Scores  `json:"scores"`
	Issues  []models.Issue `json:"issues"`
	Summary string         `json:"summary"`
}

type evaluationResponse struct {
	Evaluations []callEvaluationResult `json:"evaluations"`
	Summary     string                 `json:"summary"`
}

type patternResponse struct {
	Patterns []models.Pattern `json:"patterns"`
}

func (uc *RunBatchAnalysis) Execute(ctx context.Context, input *ports.RunBatchAnalysisInput) (analysis *models.BatchAnalysis, err error) {
	if input == nil || strings.TrimSpace(input.AgentID) == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "agent ID is required")
	}
	callCount := input.CallCount
	if callCount <= 0 {
		callCount = DefaultAnalysisCallCount
	}
	if callCount > MaxAnalysisCallCount {
		callCount = MaxAnalysisCallCount
	}
	daysSince := input.DaysSince
	if daysSince <= 0 {
		daysSince = DefaultAnalysisDaysSince
	}

	ctx, span := tracing.Start(ctx, "usecases.run_batch_analysis",
		attribute.String("agent_id", input.AgentID),
		attribute.Int("call_count", callCount),
		attribute.Int("days_since", daysSince),
	)
	defer func() {
		tracing.End(span, err)
		metrics.BatchAnalysesTotal.WithLabelValues(analysisOutcome(err)).Inc()
	}()

	agent, err := uc.agents.GetByID(ctx, input.AgentID)
	if err != nil {
		return nil, err
	}

	selected, err := uc.selectCalls(ctx, agent.ID, callCount, daysSince)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("calls_selected", len(selected)))

	resp, err := uc.llm.Complete(ctx, ports.LLMRequest{
		Model:     uc.config.Model,
		System:    evaluationSystemPrompt,
		Prompt:    uc.evaluationPrompt(agent, selected),
		MaxTokens: uc.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluating calls: %w", err)
	}

	var parsed evaluationResponse
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		return nil, err
	}

	analysisID := uc.idGenerator.GenerateAnalysisID()
	evaluations := uc.collectEvaluations(analysisID, agent.ID, selected, parsed.Evaluations)
	if len(evaluations) == 0 {
		return nil, domain.NewDomainError(domain.ErrAnalysisMalformed, "response contained no evaluations for the selected calls")
	}

	var allIssues []models.Issue
	scores := make([]models.Scores, 0, len(evaluations))
	for _, e := range evaluations {
		allIssues = append(allIssues, e.IssuesDetected...)
		scores = append(scores, e.Scores)
	}

	analysis = &models.BatchAnalysis{
		ID:            analysisID,
		AgentID:       agent.ID,
		CallCount:     len(evaluations),
		DaysSince:     daysSince,
		Model:         resp.Model,
		AverageScores: models.AverageScores(scores),
		Issues:        models.RankIssues(allIssues),
		Summary:       strings.TrimSpace(parsed.Summary),
		Evaluations:   evaluations,
		CreatedAt:     uc.now(),
	}
	if uc.config.ExtractPatterns && len(evaluations) > 1 {
		analysis.Patterns = uc.extractPatterns(ctx, evaluations)
	}

	err = uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := uc.analyses.Create(txCtx, analysis); err != nil {
			return domain.NewDomainError(err, "failed to store analysis")
		}
		for _, e := range evaluations {
			if err := uc.analyses.CreateEvaluation(txCtx, e); err != nil {
				return domain.NewDomainError(err, "failed to store call evaluation")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("batch analysis stored",
		"agent_id", agent.ID,
		"analysis_id", analysis.ID,
		"calls", analysis.CallCount,
		"issues", len(analysis.Issues),
	)
	return analysis, nil
}

// selectCalls returns up to callCount recent interactive calls, newest first.
func (uc *RunBatchAnalysis) selectCalls(ctx context.Context, agentID string, callCount, daysSince int) ([]*models.Call, error) {
	limit := callCount * candidateFactor
	if limit > maxCandidates {
		limit = maxCandidates
	}
	since := uc.now().AddDate(0, 0, -daysSince)

	candidates, err := uc.calls.ListForAnalysis(ctx, agentID, since, limit)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to load calls")
	}

	selected := make([]*models.Call, 0, callCount)
	for _, c := range candidates {
		if !c.IsInteractive(uc.config.MinExchanges) {
			continue
		}
		selected = append(selected, c)
		if len(selected) == callCount {
			break
		}
	}
	if len(selected) == 0 {
		return nil, domain.NewDomainError(domain.ErrNoCompletedCalls,
			fmt.Sprintf("no completed interactive calls in the last %d days", daysSince))
	}
	return selected, nil
}

// collectEvaluations keeps one evaluation per selected call. Results for
// calls that were not sent are dropped.
func (uc *RunBatchAnalysis) collectEvaluations(analysisID, agentID string, selected []*models.Call, results []callEvaluationResult) []*models.CallEvaluation {
	byID := make(map[string]*models.Call, len(selected))
	for _, c := range selected {
		byID[c.ID] = c
	}

	evaluations := make([]*models.CallEvaluation, 0, len(results))
	for _, r := range results {
		call, ok := byID[strings.TrimSpace(r.CallID)]
		if !ok {
			continue
		}
		delete(byID, call.ID)

		issues := make([]models.Issue, 0, len(r.Issues))
		for _, is := range r.Issues {
			is.Frequency = 1
			is.CallIDs = []string{call.ID}
			issues = append(issues, is)
		}

		evaluations = append(evaluations, &models.CallEvaluation{
			ID:             uc.idGenerator.GenerateEvaluationID(),
			AnalysisID:     analysisID,
			CallID:         call.ID,
			AgentID:        agentID,
			Scores:         r.Scores.Clamp(),
			IssuesDetected: issues,
			Summary:        strings.TrimSpace(r.Summary),
			CreatedAt:      uc.now(),
		})
	}
	return evaluations
}

// extractPatterns works from the per-call summaries and issues rather than
// the transcripts. Failures leave the analysis without patterns.
func (uc *RunBatchAnalysis) extractPatterns(ctx context.Context, evaluations []*models.CallEvaluation) []models.Pattern {
	resp, err := uc.llm.Complete(ctx, ports.LLMRequest{
		Model:     uc.config.Model,
		System:    patternSystemPrompt,
		Prompt:    patternPrompt(evaluations),
		MaxTokens: uc.config.MaxTokens,
	})
	if err != nil {
		slog.Warn("pattern extraction failed", "error", err)
		return nil
	}

	var parsed patternResponse
	if err := llm.DecodeJSON(resp.Content, &parsed); err != nil {
		slog.Warn("pattern extraction returned malformed JSON", "error", err)
		return nil
	}

	patterns := make([]models.Pattern, 0, len(parsed.Patterns))
	for _, p := range parsed.Patterns {
		if strings.TrimSpace(p.Pattern) != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

func (uc *RunBatchAnalysis) evaluationPrompt(agent *models.Agent, calls []*models.Call) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Business: %s\nAgent: %s\n", agent.BusinessName, agent.AgentName)
	if agent.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", agent.Industry)
	}
	fmt.Fprintf(&b, "\nEvaluate the following %d calls.\n", len(calls))

	for i, c := range calls {
		fmt.Fprintf(&b, "\n=== Call %d (call_id: %s, duration: %ds) ===\n", i+1, c.ID, c.DurationSeconds)
		b.WriteString(truncateRunes(strings.TrimSpace(c.Transcript), uc.config.TranscriptChars))
		b.WriteString("\n")
	}
	return b.String()
}

func patternPrompt(evaluations []*models.CallEvaluation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Per-call findings for %d calls:\n", len(evaluations))
	for i, e := range evaluations {
		fmt.Fprintf(&b, "\nCall %d: quality %.1f. %s\n", i+1, e.Scores.Quality, e.Summary)
		for _, is := range e.IssuesDetected {
			fmt.Fprintf(&b, "- [%s] %s (section: %s)\n", is.Severity, is.Issue, is.TargetSection)
		}
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "\n[transcript truncated]"
}

func analysisOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrNoCompletedCalls):
		return "no_calls"
	case errors.Is(err, domain.ErrCreditsExhausted):
		return "credits_exhausted"
	case errors.Is(err, domain.ErrAnalysisMalformed):
		return "malformed"
	}
	return "error"
}

const evaluationSystemPrompt = `You review phone calls handled by an AI receptionist and grade how well its prompt served the caller.

For every call, score these dimensions from 0 to 10: quality, empathy, professionalism, efficiency, goal_achievement.
List the problems you see. Each problem names the prompt section that should change:
identity, personality, call_flow, business_details, rules, knowledge_base, or "none" when no prompt change can fix it
(telephony faults, silence, caller hang-ups before the agent spoke).

Respond with JSON only, in this shape:
{
  "evaluations": [
    {
      "call_id": "<call_id exactly as given>",
      "scores": {"quality": 0, "empathy": 0, "professionalism": 0, "efficiency": 0, "goal_achievement": 0},
      "issues": [
        {"issue": "<short description>", "severity": "high|medium|low", "target_section": "<section>",
         "fix_guidance": "<how the prompt should change>", "evidence": "<quote from the transcript>"}
      ],
      "summary": "<one sentence>"
    }
  ],
  "summary": "<two or three sentences about the batch>"
}`

const patternSystemPrompt = `You find behaviors of an AI receptionist that recur across several calls.
Only report a pattern seen in at least two calls.

Respond with JSON only:
{"patterns": [{"pattern": "<description>", "frequency": <number of calls>, "recommendation": "<prompt change>"}]}`
