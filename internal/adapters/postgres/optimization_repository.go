package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

const optimizationColumns = `id, agent_id, analysis_id, base_version_id, proposed_version_id, issues_addressed,
		change_summary, status, feedback, control_version_id, ab_test_id, ab_test_started_at, reviewed_at,
		created_at, updated_at`

type OptimizationRepository struct {
	BaseRepository
}

func NewOptimizationRepository(pool *pgxpool.Pool) *OptimizationRepository {
	return &OptimizationRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *OptimizationRepository) Create(ctx context.Context, opt *models.Optimization) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	issues, err := marshalJSONSlice(opt.IssuesAddressed)
	if err != nil {
		return fmt.Errorf("failed to marshal issues: %w", err)
	}

	query := `
		INSERT INTO agent_optimizations (
			id, agent_id, analysis_id, base_version_id, proposed_version_id, issues_addressed,
			change_summary, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.conn(ctx).Exec(ctx, query,
		opt.ID,
		opt.AgentID,
		nullString(opt.AnalysisID),
		opt.BaseVersionID,
		opt.ProposedVersionID,
		issues,
		nullString(opt.ChangeSummary),
		opt.Status,
		opt.CreatedAt,
		opt.UpdatedAt,
	)

	return err
}

func (r *OptimizationRepository) GetByID(ctx context.Context, id string) (*models.Optimization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + optimizationColumns + ` FROM agent_optimizations WHERE id = $1`

	return r.scanOptimization(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *OptimizationRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Optimization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + optimizationColumns + ` FROM agent_optimizations WHERE id = $1 FOR UPDATE`

	return r.scanOptimization(r.conn(ctx).QueryRow(ctx, query, id))
}

// Update persists the review state. The proposal itself is immutable.
func (r *OptimizationRepository) Update(ctx context.Context, opt *models.Optimization) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE agent_optimizations
		SET status = $2, feedback = $3, control_version_id = $4, ab_test_id = $5,
			ab_test_started_at = $6, reviewed_at = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.conn(ctx).Exec(ctx, query,
		opt.ID,
		opt.Status,
		nullString(opt.Feedback),
		nullString(opt.ControlVersionID),
		nullString(opt.ABTestID),
		nullTime(opt.ABTestStartedAt),
		nullTime(opt.ReviewedAt),
		opt.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrOptimizationNotFound
	}

	return nil
}

func (r *OptimizationRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Optimization, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + optimizationColumns + `
		FROM agent_optimizations
		WHERE agent_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opts := make([]*models.Optimization, 0)
	for rows.Next() {
		opt, err := scanOptimizationRow(rows)
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}

	return opts, rows.Err()
}

func (r *OptimizationRepository) scanOptimization(row pgx.Row) (*models.Optimization, error) {
	opt, err := scanOptimizationRow(row)
	if err != nil {
		return nil, notFound(err, domain.ErrOptimizationNotFound)
	}
	return opt, nil
}

func scanOptimizationRow(row pgx.Row) (*models.Optimization, error) {
	var opt models.Optimization
	var issues []byte
	var analysisID, summary, feedback, controlID, testID sql.NullString
	var testStartedAt, reviewedAt sql.NullTime

	err := row.Scan(
		&opt.ID,
		&opt.AgentID,
		&analysisID,
		&opt.BaseVersionID,
		&opt.ProposedVersionID,
		&issues,
		&summary,
		&opt.Status,
		&feedback,
		&controlID,
		&testID,
		&testStartedAt,
		&reviewedAt,
		&opt.CreatedAt,
		&opt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if opt.IssuesAddressed, err = unmarshalJSONSlice[models.Issue](issues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal issues: %w", err)
	}
	opt.AnalysisID = getString(analysisID)
	opt.ChangeSummary = getString(summary)
	opt.Feedback = getString(feedback)
	opt.ControlVersionID = getString(controlID)
	opt.ABTestID = getString(testID)
	opt.ABTestStartedAt = getTimePtr(testStartedAt)
	opt.ReviewedAt = getTimePtr(reviewedAt)

	return &opt, nil
}
