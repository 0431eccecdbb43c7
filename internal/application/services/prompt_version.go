package services

import (
	"context"
	"errors"

	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// PromptVersionService is the version store. Every write locks the agent row,
// so version numbers and the current pointer have a single writer per agent.
type PromptVersionService struct {
	agents      ports.AgentRepository
	versions    ports.PromptVersionRepository
	syncs       ports.VendorSyncService
	txManager   ports.TransactionManager
	idGenerator ports.IDGenerator
}

// NewPromptVersionService creates a new prompt version service
func NewPromptVersionService(
	agents ports.AgentRepository,
	versions ports.PromptVersionRepository,
	syncs ports.VendorSyncService,
	txManager ports.TransactionManager,
	idGenerator ports.IDGenerator,
) *PromptVersionService {
	return &PromptVersionService{
		agents:      agents,
		versions:    versions,
		syncs:       syncs,
		txManager:   txManager,
		idGenerator: idGenerator,
	}
}

// CreateVersion appends a version without making it current.
func (s *PromptVersionService) CreateVersion(
	ctx context.Context,
	agentID string,
	doc *prompt.Document,
	method models.GenerationMethod,
	parentID string,
	summary string,
) (*models.PromptVersion, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}
	if doc == nil || len(doc.Sections) == 0 {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "prompt document is empty")
	}
	if !method.IsValid() {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "unknown generation method: "+string(method))
	}

	var version *models.PromptVersion
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.agents.GetByIDForUpdate(txCtx, agentID); err != nil {
			return err
		}

		number, err := s.versions.NextVersionNumber(txCtx, agentID)
		if err != nil {
			return domain.NewDomainError(err, "failed to allocate version number")
		}

		version = models.NewPromptVersion(s.idGenerator.GeneratePromptVersionID(), agentID, doc, method, parentID, summary)
		version.VersionNumber = number

		if err := s.versions.Create(txCtx, version); err != nil {
			return domain.NewDomainError(err, "failed to create prompt version")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PromptVersionsCreated.WithLabelValues(string(method)).Inc()
	return version, nil
}

// Activate implements ports.PromptActivator. It joins the caller's
// transaction when there is one.
func (s *PromptVersionService) Activate(ctx context.Context, agentID, expectedCurrentID, versionID string) (*models.VendorSync, error) {
	var sync *models.VendorSync
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		agent, err := s.agents.GetByIDForUpdate(txCtx, agentID)
		if err != nil {
			return err
		}
		if agent.CurrentPromptID != expectedCurrentID {
			return domain.NewDomainError(domain.ErrConcurrentUpdate, "current prompt is no longer "+expectedCurrentID)
		}

		if _, err := s.ownedVersion(txCtx, agentID, versionID); err != nil {
			return err
		}

		if err := s.agents.CompareAndSetCurrentPrompt(txCtx, agentID, expectedCurrentID, versionID); err != nil {
			return err
		}

		sync, err = s.syncs.Enqueue(txCtx, agentID, versionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sync, nil
}

// SetCurrent repoints the agent at an existing version. It is a no-op when
// the version is already current.
func (s *PromptVersionService) SetCurrent(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	return s.activateExisting(ctx, agentID, versionID, false)
}

// Restore is SetCurrent that always notifies the voice vendor, so it also
// repairs a vendor that missed an earlier sync.
func (s *PromptVersionService) Restore(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	return s.activateExisting(ctx, agentID, versionID, true)
}

func (s *PromptVersionService) activateExisting(ctx context.Context, agentID, versionID string, force bool) (*models.PromptVersion, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}
	if err := ValidateID(versionID, "prompt version"); err != nil {
		return nil, err
	}

	var version *models.PromptVersion
	var sync *models.VendorSync
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		agent, err := s.agents.GetByIDForUpdate(txCtx, agentID)
		if err != nil {
			return err
		}

		version, err = s.ownedVersion(txCtx, agentID, versionID)
		if err != nil {
			return err
		}

		if agent.CurrentPromptID == versionID {
			if !force {
				return nil
			}
			sync, err = s.syncs.Enqueue(txCtx, agentID, versionID)
			return err
		}

		sync, err = s.Activate(txCtx, agentID, agent.CurrentPromptID, versionID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if sync != nil {
		s.syncs.DeliverBestEffort(ctx, sync)
	}
	return version, nil
}

// SaveAndActivate stores doc as a child of baseVersionID and makes it
// current in one transaction. It fails with domain.ErrConcurrentUpdate when
// another writer moved the agent off baseVersionID first.
func (s *PromptVersionService) SaveAndActivate(
	ctx context.Context,
	agentID string,
	baseVersionID string,
	doc *prompt.Document,
	method models.GenerationMethod,
	summary string,
) (*models.PromptVersion, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}

	var version *models.PromptVersion
	var sync *models.VendorSync
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		agent, err := s.agents.GetByIDForUpdate(txCtx, agentID)
		if err != nil {
			return err
		}
		if agent.CurrentPromptID != baseVersionID {
			return domain.NewDomainError(domain.ErrConcurrentUpdate, "prompt was edited since version "+baseVersionID)
		}

		version, err = s.CreateVersion(txCtx, agentID, doc, method, baseVersionID, summary)
		if err != nil {
			return err
		}

		sync, err = s.Activate(txCtx, agentID, baseVersionID, version.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.syncs.DeliverBestEffort(ctx, sync)
	return version, nil
}

// Current returns the agent's active version, or domain.ErrPromptNotFound
// when the agent has none.
func (s *PromptVersionService) Current(ctx context.Context, agentID string) (*models.PromptVersion, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.CurrentPromptID == "" {
		return nil, domain.NewDomainError(domain.ErrPromptNotFound, agent.AgentName)
	}

	version, err := s.versions.GetByID(ctx, agent.CurrentPromptID)
	if errors.Is(err, domain.ErrPromptVersionNotFound) {
		return nil, domain.NewDomainError(domain.ErrPromptNotFound, "current version "+agent.CurrentPromptID+" is missing")
	}
	return version, err
}

// Get returns a version of the agent's history.
func (s *PromptVersionService) Get(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	if err := ValidateID(versionID, "prompt version"); err != nil {
		return nil, err
	}
	return s.ownedVersion(ctx, agentID, versionID)
}

// List returns the agent's history, newest first.
func (s *PromptVersionService) List(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}

	versions, err := s.versions.ListByAgent(ctx, agentID, clampLimit(limit))
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to list prompt versions")
	}
	return versions, nil
}

func (s *PromptVersionService) ownedVersion(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if version.AgentID != agentID {
		return nil, domain.NewDomainError(domain.ErrPromptVersionNotFound, versionID)
	}
	return version, nil
}
