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
	"github.com/voicedesk/voicedesk/internal/prompt"
)

const promptVersionColumns = `id, agent_id, version_number, compiled_prompt, document, generation_method,
		parent_version_id, change_summary, token_count, created_at`

type PromptVersionRepository struct {
	BaseRepository
}

func NewPromptVersionRepository(pool *pgxpool.Pool) *PromptVersionRepository {
	return &PromptVersionRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *PromptVersionRepository) Create(ctx context.Context, version *models.PromptVersion) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var document []byte
	if version.Document != nil {
		var err error
		document, err = json.Marshal(version.Document)
		if err != nil {
			return fmt.Errorf("failed to marshal prompt document: %w", err)
		}
	}

	query := `
		INSERT INTO prompt_versions (
			id, agent_id, version_number, compiled_prompt, document, generation_method,
			parent_version_id, change_summary, token_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.conn(ctx).Exec(ctx, query,
		version.ID,
		version.AgentID,
		version.VersionNumber,
		version.CompiledPrompt,
		document,
		version.GenerationMethod,
		nullString(version.ParentVersionID),
		nullString(version.ChangeSummary),
		version.TokenCount,
		version.CreatedAt,
	)

	return err
}

func (r *PromptVersionRepository) GetByID(ctx context.Context, id string) (*models.PromptVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + promptVersionColumns + ` FROM prompt_versions WHERE id = $1`

	version, err := scanPromptVersion(r.conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, domain.ErrPromptVersionNotFound)
	}
	return version, nil
}

// NextVersionNumber returns max(version_number)+1 for the agent. Callers
// hold the agent row lock so the number cannot be taken concurrently.
func (r *PromptVersionRepository) NextVersionNumber(ctx context.Context, agentID string) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var next int
	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM prompt_versions WHERE agent_id = $1`
	if err := r.conn(ctx).QueryRow(ctx, query, agentID).Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (r *PromptVersionRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + promptVersionColumns + `
		FROM prompt_versions
		WHERE agent_id = $1
		ORDER BY version_number DESC
		LIMIT $2`

	rows, err := r.conn(ctx).Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]*models.PromptVersion, 0)
	for rows.Next() {
		version, err := scanPromptVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

func scanPromptVersion(row pgx.Row) (*models.PromptVersion, error) {
	var version models.PromptVersion
	var document []byte
	var parentID, summary sql.NullString

	err := row.Scan(
		&version.ID,
		&version.AgentID,
		&version.VersionNumber,
		&version.CompiledPrompt,
		&document,
		&version.GenerationMethod,
		&parentID,
		&summary,
		&version.TokenCount,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	version.ParentVersionID = getString(parentID)
	version.ChangeSummary = getString(summary)

	if len(document) > 0 {
		var doc prompt.Document
		if err := unmarshalJSONField(document, &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prompt document: %w", err)
		}
		version.Document = &doc
	}

	return &version, nil
}
