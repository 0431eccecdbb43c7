package services

import (
	"context"
	"strings"

	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// AgentService onboards agents and scopes lookups to their owner.
type AgentService struct {
	agents      ports.AgentRepository
	prompts     ports.PromptService
	activator   ports.PromptActivator
	syncs       ports.VendorSyncService
	compiler    *prompt.Compiler
	txManager   ports.TransactionManager
	idGenerator ports.IDGenerator
}

func NewAgentService(
	agents ports.AgentRepository,
	prompts ports.PromptService,
	activator ports.PromptActivator,
	syncs ports.VendorSyncService,
	compiler *prompt.Compiler,
	txManager ports.TransactionManager,
	idGenerator ports.IDGenerator,
) *AgentService {
	return &AgentService{
		agents:      agents,
		prompts:     prompts,
		activator:   activator,
		syncs:       syncs,
		compiler:    compiler,
		txManager:   txManager,
		idGenerator: idGenerator,
	}
}

// Create compiles the onboarding fields into version 1 and makes it current.
func (s *AgentService) Create(ctx context.Context, input *ports.CreateAgentInput) (*models.Agent, *models.PromptVersion, error) {
	if input == nil {
		return nil, nil, domain.NewDomainError(domain.ErrInvalidInput, "agent input is required")
	}
	if err := ValidateRequired(input.UserID, "user ID"); err != nil {
		return nil, nil, err
	}

	doc, err := s.compiler.Compile(input.Fields)
	if err != nil {
		return nil, nil, err
	}

	agent := models.NewAgent(
		s.idGenerator.GenerateAgentID(),
		input.UserID,
		strings.TrimSpace(input.Fields.BusinessName),
		strings.TrimSpace(input.Fields.AgentName),
	)
	agent.Industry = input.Fields.Industry
	agent.Timezone = input.Fields.Timezone
	agent.PhoneNumber = input.PhoneNumber
	agent.VendorAgentID = input.VendorAgentID
	agent.VendorLLMID = input.VendorLLMID
	agent.AutoAnalyze = input.AutoAnalyze

	var version *models.PromptVersion
	var sync *models.VendorSync
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.agents.Create(txCtx, agent); err != nil {
			return domain.NewDomainError(err, "failed to create agent")
		}

		version, err = s.prompts.CreateVersion(txCtx, agent.ID, doc, models.GenerationMethodInitial, "", "")
		if err != nil {
			return err
		}

		sync, err = s.activator.Activate(txCtx, agent.ID, "", version.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	agent.CurrentPromptID = version.ID
	s.syncs.DeliverBestEffort(ctx, sync)

	return agent, version, nil
}

// Get returns domain.ErrAgentNotFound for agents owned by someone else.
func (s *AgentService) Get(ctx context.Context, userID, agentID string) (*models.Agent, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !agent.OwnedBy(userID) {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

func (s *AgentService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error) {
	if err := ValidateRequired(userID, "user ID"); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}

	agents, err := s.agents.ListByUser(ctx, userID, clampLimit(limit), offset)
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to list agents")
	}
	return agents, nil
}
