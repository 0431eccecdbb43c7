package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

const analysisColumns = `id, agent_id, call_count, days_since, model, average_scores, issues, patterns, summary, created_at`

// AnalysisRepository stores batch analyses and their per-call evaluations.
// Both are insert-only.
type AnalysisRepository struct {
	BaseRepository
}

func NewAnalysisRepository(pool *pgxpool.Pool) *AnalysisRepository {
	return &AnalysisRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *AnalysisRepository) Create(ctx context.Context, analysis *models.BatchAnalysis) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	scores, err := json.Marshal(analysis.AverageScores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	issues, err := marshalJSONSlice(analysis.Issues)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}
	patterns, err := marshalJSONSlice(analysis.Patterns)
	if err != nil {
		return fmt.Errorf("failed to marshal patterns: %w", err)
	}

	query := `
		INSERT INTO ai_batch_analyses (
			id, agent_id, call_count, days_since, model, average_scores, issues, patterns, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.conn(ctx).Exec(ctx, query,
		analysis.ID,
		analysis.AgentID,
		analysis.CallCount,
		analysis.DaysSince,
		analysis.Model,
		scores,
		issues,
		patterns,
		nullString(analysis.Summary),
		analysis.CreatedAt,
	)

	return err
}

func (r *AnalysisRepository) CreateEvaluation(ctx context.Context, evaluation *models.CallEvaluation) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	scores, err := json.Marshal(evaluation.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	issues, err := marshalJSONSlice(evaluation.IssuesDetected)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	query := `
		INSERT INTO ai_call_evaluations (
			id, analysis_id, call_id, agent_id, scores, issues_detected, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.conn(ctx).Exec(ctx, query,
		evaluation.ID,
		evaluation.AnalysisID,
		evaluation.CallID,
		evaluation.AgentID,
		scores,
		issues,
		nullString(evaluation.Summary),
		evaluation.CreatedAt,
	)

	return err
}

// GetByID returns the analysis with its evaluations.
func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*models.BatchAnalysis, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + analysisColumns + ` FROM ai_batch_analyses WHERE id = $1`

	analysis, err := scanAnalysis(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrAnalysisNotFound)
	}

	evaluations, err := r.listEvaluations(ctx, id)
	if err != nil {
		return nil, err
	}
	analysis.Evaluations = evaluations

	return analysis, nil
}

// ListByAgent returns analyses newest first, without evaluations.
func (r *AnalysisRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.BatchAnalysis, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + analysisColumns + `
		FROM ai_batch_analyses
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	analyses := make([]*models.BatchAnalysis, 0)
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}

	return analyses, rows.Err()
}

func (r *AnalysisRepository) listEvaluations(ctx context.Context, analysisID string) ([]*models.CallEvaluation, error) {
	query := `
		SELECT id, analysis_id, call_id, agent_id, scores, issues_detected, summary, created_at
		FROM ai_call_evaluations
		WHERE analysis_id = $1
		ORDER BY created_at, id`

	rows, err := r.conn(ctx).Query(ctx, query, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	evaluations := make([]*models.CallEvaluation, 0)
	for rows.Next() {
		var evaluation models.CallEvaluation
		var scores, issues []byte
		var summary sql.NullString

		if err := rows.Scan(
			&evaluation.ID,
			&evaluation.AnalysisID,
			&evaluation.CallID,
			&evaluation.AgentID,
			&scores,
			&issues,
			&summary,
			&evaluation.CreatedAt,
		); err != nil {
			return nil, err
		}

		if err := unmarshalJSONField(scores, &evaluation.Scores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
		}
		if evaluation.IssuesDetected, err = unmarshalJSONSlice[models.Issue](issues); err != nil {
			return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
		}
		evaluation.Summary = getString(summary)

		evaluations = append(evaluations, &evaluation)
	}

	return evaluations, rows.Err()
}

func scanAnalysis(row pgx.Row) (*models.BatchAnalysis, error) {
	var analysis models.BatchAnalysis
	var scores, issues, patterns []byte
	var summary sql.NullString

	err := row.Scan(
		&analysis.ID,
		&analysis.AgentID,
		&analysis.CallCount,
		&analysis.DaysSince,
		&analysis.Model,
		&scores,
		&issues,
		&patterns,
		&summary,
		&analysis.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONField(scores, &analysis.AverageScores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scores: %w", err)
	}
	if analysis.Issues, err = unmarshalJSONSlice[models.Issue](issues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
	}
	if analysis.Patterns, err = unmarshalJSONSlice[models.Pattern](patterns); err != nil {
		return nil, fmt.Errorf("failed to unmarshal patterns: %w", err)
	}
	analysis.Summary = getString(summary)

	return &analysis, nil
}
