package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

const abTestColumns = `id, agent_id, optimization_id, control_version_id, test_version_id, control_percent,
		test_percent, status, winner, started_at, scheduled_end_at, ended_at, created_at, updated_at`

type ABTestRepository struct {
	BaseRepository
}

func NewABTestRepository(pool *pgxpool.Pool) *ABTestRepository {
	return &ABTestRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *ABTestRepository) Create(ctx context.Context, test *models.ABTest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO ab_tests (
			id, agent_id, optimization_id, control_version_id, test_version_id, control_percent,
			test_percent, status, started_at, scheduled_end_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.conn(ctx).Exec(ctx, query,
		test.ID,
		test.AgentID,
		test.OptimizationID,
		test.ControlVersionID,
		test.TestVersionID,
		test.ControlPercent,
		test.TestPercent,
		test.Status,
		test.StartedAt,
		test.ScheduledEndAt,
		test.CreatedAt,
		test.UpdatedAt,
	)

	return err
}

func (r *ABTestRepository) GetByID(ctx context.Context, id string) (*models.ABTest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + abTestColumns + ` FROM ab_tests WHERE id = $1`

	return r.scanTest(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *ABTestRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.ABTest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + abTestColumns + ` FROM ab_tests WHERE id = $1 FOR UPDATE`

	return r.scanTest(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *ABTestRepository) GetRunningByAgent(ctx context.Context, agentID string) (*models.ABTest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + abTestColumns + `
		FROM ab_tests
		WHERE agent_id = $1 AND status = $2
		LIMIT 1`

	return r.scanTest(r.conn(ctx).QueryRow(ctx, query, agentID, models.ABTestStatusRunning))
}

func (r *ABTestRepository) Update(ctx context.Context, test *models.ABTest) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE ab_tests
		SET status = $2, winner = $3, ended_at = $4, updated_at = $5
		WHERE id = $1`

	result, err := r.conn(ctx).Exec(ctx, query,
		test.ID,
		test.Status,
		nullString(string(test.Winner)),
		nullTime(test.EndedAt),
		test.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrABTestNotFound
	}

	return nil
}

func (r *ABTestRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.ABTest, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + abTestColumns + `
		FROM ab_tests
		WHERE status = $1 AND scheduled_end_at <= $2
		ORDER BY scheduled_end_at`

	rows, err := r.conn(ctx).Query(ctx, query, models.ABTestStatusRunning, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := make([]*models.ABTest, 0)
	for rows.Next() {
		test, err := scanABTestRow(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}

	return tests, rows.Err()
}

// ArmStats counts the calls planned into each arm, per served version, and
// averages the quality score of the ones that have been evaluated.
func (r *ABTestRepository) ArmStats(ctx context.Context, testID string) ([]*models.ABArmStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT c.planned_arm, c.prompt_version_id, COUNT(DISTINCT c.id), COUNT(e.id),
			AVG((e.scores->>'quality')::float8)
		FROM calls c
		LEFT JOIN ai_call_evaluations e ON e.call_id = c.id
		WHERE c.ab_test_id = $1
		GROUP BY c.planned_arm, c.prompt_version_id
		ORDER BY c.planned_arm`

	rows, err := r.conn(ctx).Query(ctx, query, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make([]*models.ABArmStats, 0)
	for rows.Next() {
		var s models.ABArmStats
		var arm, versionID sql.NullString
		var quality sql.NullFloat64

		if err := rows.Scan(&arm, &versionID, &s.CallCount, &s.EvaluatedCalls, &quality); err != nil {
			return nil, err
		}

		s.PlannedArm = models.ABArm(getString(arm))
		s.ServedVersionID = getString(versionID)
		if quality.Valid {
			s.AverageQuality = &quality.Float64
		}
		stats = append(stats, &s)
	}

	return stats, rows.Err()
}

func (r *ABTestRepository) scanTest(row pgx.Row) (*models.ABTest, error) {
	test, err := scanABTestRow(row)
	if err != nil {
		return nil, notFound(err, domain.ErrABTestNotFound)
	}
	return test, nil
}

func scanABTestRow(row pgx.Row) (*models.ABTest, error) {
	var test models.ABTest
	var winner sql.NullString
	var endedAt sql.NullTime

	err := row.Scan(
		&test.ID,
		&test.AgentID,
		&test.OptimizationID,
		&test.ControlVersionID,
		&test.TestVersionID,
		&test.ControlPercent,
		&test.TestPercent,
		&test.Status,
		&winner,
		&test.StartedAt,
		&test.ScheduledEndAt,
		&endedAt,
		&test.CreatedAt,
		&test.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	test.Winner = models.ABArm(getString(winner))
	test.EndedAt = getTimePtr(endedAt)

	return &test, nil
}
