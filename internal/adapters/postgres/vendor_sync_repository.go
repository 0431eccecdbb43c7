package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

// VendorSyncRepository is the outbox of prompt activations waiting to be
// delivered to the voice vendor.
type VendorSyncRepository struct {
	BaseRepository
}

func NewVendorSyncRepository(pool *pgxpool.Pool) *VendorSyncRepository {
	return &VendorSyncRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *VendorSyncRepository) Create(ctx context.Context, sync *models.VendorSync) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vendor_syncs (
			id, agent_id, prompt_version_id, status, attempts, next_attempt_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.conn(ctx).Exec(ctx, query,
		sync.ID,
		sync.AgentID,
		sync.PromptVersionID,
		sync.Status,
		sync.Attempts,
		sync.NextAttemptAt,
		sync.CreatedAt,
	)

	return err
}

// ClaimDue leases up to limit due rows by pushing next_attempt_at to
// leaseUntil, so other workers skip them while delivery runs outside any
// transaction. A worker that dies mid-delivery leaves the row due again once
// the lease ends.
func (r *VendorSyncRepository) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*models.VendorSync, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vendor_syncs
		SET next_attempt_at = $3
		WHERE id IN (
			SELECT id FROM vendor_syncs
			WHERE status = $1 AND next_attempt_at <= $2
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, agent_id, prompt_version_id, status, attempts, last_error, next_attempt_at, created_at, delivered_at`

	rows, err := r.conn(ctx).Query(ctx, query, models.VendorSyncStatusPending, now, leaseUntil, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	syncs := make([]*models.VendorSync, 0)
	for rows.Next() {
		var sync models.VendorSync
		var lastError sql.NullString
		var deliveredAt sql.NullTime

		if err := rows.Scan(
			&sync.ID,
			&sync.AgentID,
			&sync.PromptVersionID,
			&sync.Status,
			&sync.Attempts,
			&lastError,
			&sync.NextAttemptAt,
			&sync.CreatedAt,
			&deliveredAt,
		); err != nil {
			return nil, err
		}

		sync.LastError = getString(lastError)
		sync.DeliveredAt = getTimePtr(deliveredAt)
		syncs = append(syncs, &sync)
	}

	return syncs, rows.Err()
}

func (r *VendorSyncRepository) Update(ctx context.Context, sync *models.VendorSync) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vendor_syncs
		SET status = $2, attempts = $3, last_error = $4, next_attempt_at = $5, delivered_at = $6
		WHERE id = $1`

	result, err := r.conn(ctx).Exec(ctx, query,
		sync.ID,
		sync.Status,
		sync.Attempts,
		nullString(sync.LastError),
		sync.NextAttemptAt,
		nullTime(sync.DeliveredAt),
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *VendorSyncRepository) SupersedeOlder(ctx context.Context, agentID string, before time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE vendor_syncs
		SET status = $3
		WHERE agent_id = $1 AND status = $4 AND created_at < $2`

	result, err := r.conn(ctx).Exec(ctx, query,
		agentID,
		before,
		models.VendorSyncStatusSuperseded,
		models.VendorSyncStatusPending,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}

func (r *VendorSyncRepository) CountPending(ctx context.Context) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var count int
	query := `SELECT COUNT(*) FROM vendor_syncs WHERE status = $1`
	if err := r.conn(ctx).QueryRow(ctx, query, models.VendorSyncStatusPending).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
