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

const callColumns = `id, agent_id, vendor_call_id, status, direction, from_number, to_number,
		started_at, ended_at, duration_seconds, transcript, recording_url, disconnection_reason,
		prompt_version_id, ab_test_id, planned_arm, created_at, updated_at`

type CallRepository struct {
	BaseRepository
}

func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

// Upsert keeps the serving prompt version and A/B arm recorded by the
// first event for a call; later events cannot reassign them.
func (r *CallRepository) Upsert(ctx context.Context, call *models.Call) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO calls (
			id, agent_id, vendor_call_id, status, direction, from_number, to_number,
			started_at, ended_at, duration_seconds, transcript, recording_url, disconnection_reason,
			prompt_version_id, ab_test_id, planned_arm, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (vendor_call_id) DO UPDATE SET
			status = EXCLUDED.status,
			direction = COALESCE(EXCLUDED.direction, calls.direction),
			from_number = COALESCE(EXCLUDED.from_number, calls.from_number),
			to_number = COALESCE(EXCLUDED.to_number, calls.to_number),
			started_at = COALESCE(EXCLUDED.started_at, calls.started_at),
			ended_at = COALESCE(EXCLUDED.ended_at, calls.ended_at),
			duration_seconds = GREATEST(EXCLUDED.duration_seconds, calls.duration_seconds),
			transcript = COALESCE(EXCLUDED.transcript, calls.transcript),
			recording_url = COALESCE(EXCLUDED.recording_url, calls.recording_url),
			disconnection_reason = COALESCE(EXCLUDED.disconnection_reason, calls.disconnection_reason),
			prompt_version_id = COALESCE(calls.prompt_version_id, EXCLUDED.prompt_version_id),
			ab_test_id = COALESCE(calls.ab_test_id, EXCLUDED.ab_test_id),
			planned_arm = COALESCE(calls.planned_arm, EXCLUDED.planned_arm),
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	return r.conn(ctx).QueryRow(ctx, query,
		call.ID,
		call.AgentID,
		call.VendorCallID,
		call.Status,
		nullString(call.Direction),
		nullString(call.FromNumber),
		nullString(call.ToNumber),
		nullTime(call.StartedAt),
		nullTime(call.EndedAt),
		call.DurationSeconds,
		nullString(call.Transcript),
		nullString(call.RecordingURL),
		nullString(call.DisconnectionReason),
		nullString(call.PromptVersionID),
		nullString(call.ABTestID),
		nullString(string(call.PlannedArm)),
		call.CreatedAt,
		call.UpdatedAt,
	).Scan(&call.ID)
}

func (r *CallRepository) GetByVendorCallID(ctx context.Context, vendorCallID string) (*models.Call, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + callColumns + ` FROM calls WHERE vendor_call_id = $1`

	call, err := scanCall(r.conn(ctx).QueryRow(ctx, query, vendorCallID))
	if err != nil {
		return nil, notFound(err, domain.ErrCallNotFound)
	}
	return call, nil
}

func (r *CallRepository) ListRecent(ctx context.Context, agentID string, limit int) ([]*models.Call, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + callColumns + `
		FROM calls
		WHERE agent_id = $1
		ORDER BY COALESCE(started_at, created_at) DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCalls(rows)
}

func (r *CallRepository) ListForAnalysis(ctx context.Context, agentID string, since time.Time, limit int) ([]*models.Call, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + callColumns + `
		FROM calls
		WHERE agent_id = $1
			AND status = $2
			AND transcript IS NOT NULL AND transcript <> ''
			AND COALESCE(started_at, created_at) >= $3
		ORDER BY COALESCE(started_at, created_at) DESC
		LIMIT $4`

	rows, err := r.conn(ctx).Query(ctx, query, agentID, models.CallStatusCompleted, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCalls(rows)
}

func scanCalls(rows pgx.Rows) ([]*models.Call, error) {
	calls := make([]*models.Call, 0)
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

func scanCall(row pgx.Row) (*models.Call, error) {
	var call models.Call
	var direction, fromNumber, toNumber, transcript, recordingURL, reason, versionID, testID, arm sql.NullString
	var startedAt, endedAt sql.NullTime

	err := row.Scan(
		&call.ID,
		&call.AgentID,
		&call.VendorCallID,
		&call.Status,
		&direction,
		&fromNumber,
		&toNumber,
		&startedAt,
		&endedAt,
		&call.DurationSeconds,
		&transcript,
		&recordingURL,
		&reason,
		&versionID,
		&testID,
		&arm,
		&call.CreatedAt,
		&call.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	call.Direction = getString(direction)
	call.FromNumber = getString(fromNumber)
	call.ToNumber = getString(toNumber)
	call.StartedAt = getTimePtr(startedAt)
	call.EndedAt = getTimePtr(endedAt)
	call.Transcript = getString(transcript)
	call.RecordingURL = getString(recordingURL)
	call.DisconnectionReason = getString(reason)
	call.PromptVersionID = getString(versionID)
	call.ABTestID = getString(testID)
	call.PlannedArm = models.ABArm(getString(arm))

	return &call, nil
}
