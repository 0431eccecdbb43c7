package services

import (
	"context"
	"errors"
	"time"

	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// CallService records vendor calls and attributes each one to the prompt
// version that served it.
type CallService struct {
	agents      ports.AgentRepository
	calls       ports.CallRepository
	abTests     ports.ABTestRepository
	vendor      ports.VoiceVendor
	idGenerator ports.IDGenerator
}

func NewCallService(
	agents ports.AgentRepository,
	calls ports.CallRepository,
	abTests ports.ABTestRepository,
	vendor ports.VoiceVendor,
	idGenerator ports.IDGenerator,
) *CallService {
	return &CallService{
		agents:      agents,
		calls:       calls,
		abTests:     abTests,
		vendor:      vendor,
		idGenerator: idGenerator,
	}
}

// HandleWebhook upserts the call carried by a vendor event. Unknown events
// return a nil call and no error.
func (s *CallService) HandleWebhook(ctx context.Context, event *models.WebhookEvent) (*models.Call, error) {
	if event == nil || !event.IsKnown() {
		metrics.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return nil, nil
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Event).Inc()

	if err := ValidateRequired(event.Call.CallID, "call_id"); err != nil {
		return nil, err
	}
	if err := ValidateRequired(event.Call.AgentID, "agent_id"); err != nil {
		return nil, err
	}

	agent, err := s.agents.GetByVendorAgentID(ctx, event.Call.AgentID)
	if err != nil {
		return nil, err
	}

	call, err := s.merge(ctx, agent, event.Call)
	if err != nil {
		return nil, err
	}

	if call.PromptVersionID == "" {
		if err := s.attribute(ctx, agent, call); err != nil {
			return nil, err
		}
	}

	if err := s.calls.Upsert(ctx, call); err != nil {
		return nil, domain.NewDomainError(err, "failed to store call")
	}
	return call, nil
}

// attribute records the version the vendor is serving, which is always the
// agent's current one. While a test runs the call is also labelled with the
// arm it is planned into.
func (s *CallService) attribute(ctx context.Context, agent *models.Agent, call *models.Call) error {
	call.PromptVersionID = agent.CurrentPromptID

	test, err := s.abTests.GetRunningByAgent(ctx, agent.ID)
	switch {
	case err == nil:
		call.ABTestID = test.ID
		call.PlannedArm = test.Assign(call.VendorCallID)
	case errors.Is(err, domain.ErrABTestNotFound):
	default:
		return err
	}
	return nil
}

func (s *CallService) merge(ctx context.Context, agent *models.Agent, vc models.VendorCall) (*models.Call, error) {
	call, err := s.calls.GetByVendorCallID(ctx, vc.CallID)
	if errors.Is(err, domain.ErrCallNotFound) {
		now := time.Now()
		call = &models.Call{
			ID:        s.idGenerator.GenerateCallID(),
			AgentID:   agent.ID,
			CreatedAt: now,
		}
	} else if err != nil {
		return nil, err
	}

	vc.ApplyTo(call)
	return call, nil
}

func (s *CallService) ListRecent(ctx context.Context, agentID string, limit int) ([]*models.Call, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}

	calls, err := s.calls.ListRecent(ctx, agentID, clampLimit(limit))
	if err != nil {
		return nil, domain.NewDomainError(err, "failed to list calls")
	}
	return calls, nil
}

// SyncFromVendor backfills calls the webhook missed. Backfilled calls are
// not attributed to a prompt version since the serving version is unknown.
func (s *CallService) SyncFromVendor(ctx context.Context, agentID string, limit int) (int, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return 0, err
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return 0, err
	}
	if agent.VendorAgentID == "" {
		return 0, domain.NewDomainError(domain.ErrInvalidInput, "agent is not linked to a voice vendor agent")
	}

	vendorCalls, err := s.vendor.ListCalls(ctx, agent.VendorAgentID, clampLimit(limit))
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, vc := range vendorCalls {
		if vc.CallID == "" {
			continue
		}
		call, err := s.merge(ctx, agent, vc)
		if err != nil {
			return synced, err
		}
		if err := s.calls.Upsert(ctx, call); err != nil {
			return synced, domain.NewDomainError(err, "failed to store call "+vc.CallID)
		}
		synced++
	}
	return synced, nil
}
