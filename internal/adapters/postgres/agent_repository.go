package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

const agentColumns = `id, user_id, business_name, agent_name, industry, timezone, phone_number,
		vendor_agent_id, vendor_llm_id, current_prompt_id, auto_analyze, created_at, updated_at`

type AgentRepository struct {
	BaseRepository
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{
		BaseRepository: NewBaseRepository(pool),
	}
}

func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO agents (
			id, user_id, business_name, agent_name, industry, timezone, phone_number,
			vendor_agent_id, vendor_llm_id, current_prompt_id, auto_analyze, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.conn(ctx).Exec(ctx, query,
		agent.ID,
		agent.UserID,
		agent.BusinessName,
		agent.AgentName,
		nullString(agent.Industry),
		nullString(agent.Timezone),
		nullString(agent.PhoneNumber),
		nullString(agent.VendorAgentID),
		nullString(agent.VendorLLMID),
		nullString(agent.CurrentPromptID),
		agent.AutoAnalyze,
		agent.CreatedAt,
		agent.UpdatedAt,
	)

	return err
}

func (r *AgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	return r.scanAgent(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *AgentRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Agent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1 FOR UPDATE`

	return r.scanAgent(r.conn(ctx).QueryRow(ctx, query, id))
}

func (r *AgentRepository) GetByVendorAgentID(ctx context.Context, vendorAgentID string) (*models.Agent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + agentColumns + ` FROM agents WHERE vendor_agent_id = $1`

	return r.scanAgent(r.conn(ctx).QueryRow(ctx, query, vendorAgentID))
}

func (r *AgentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + agentColumns + `
		FROM agents
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.conn(ctx).Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAgents(rows)
}

func (r *AgentRepository) ListAutoAnalyze(ctx context.Context) ([]*models.Agent, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + agentColumns + `
		FROM agents
		WHERE auto_analyze = true
		ORDER BY id`

	rows, err := r.conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAgents(rows)
}

func (r *AgentRepository) CompareAndSetCurrentPrompt(ctx context.Context, agentID, expected, versionID string) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		UPDATE agents
		SET current_prompt_id = $2, updated_at = NOW()
		WHERE id = $1 AND current_prompt_id IS NOT DISTINCT FROM $3`

	result, err := r.conn(ctx).Exec(ctx, query, agentID, versionID, nullString(expected))
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}

	return nil
}

func (r *AgentRepository) scanAgent(row pgx.Row) (*models.Agent, error) {
	agent, err := scanAgentRow(row)
	if err != nil {
		return nil, notFound(err, domain.ErrAgentNotFound)
	}
	return agent, nil
}

func (r *AgentRepository) scanAgents(rows pgx.Rows) ([]*models.Agent, error) {
	agents := make([]*models.Agent, 0)

	for rows.Next() {
		agent, err := scanAgentRow(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	return agents, rows.Err()
}

func scanAgentRow(row pgx.Row) (*models.Agent, error) {
	var agent models.Agent
	var industry, timezone, phone, vendorAgentID, vendorLLMID, currentPromptID sql.NullString

	err := row.Scan(
		&agent.ID,
		&agent.UserID,
		&agent.BusinessName,
		&agent.AgentName,
		&industry,
		&timezone,
		&phone,
		&vendorAgentID,
		&vendorLLMID,
		&currentPromptID,
		&agent.AutoAnalyze,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	agent.Industry = getString(industry)
	agent.Timezone = getString(timezone)
	agent.PhoneNumber = getString(phone)
	agent.VendorAgentID = getString(vendorAgentID)
	agent.VendorLLMID = getString(vendorLLMID)
	agent.CurrentPromptID = getString(currentPromptID)

	return &agent, nil
}
