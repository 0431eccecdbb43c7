package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/adapters/retry"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

var errAgentNotLinked = errors.New("agent is not linked to a voice vendor agent")

// VendorSyncConfig bounds outbox retries. DeliveryTimeout caps one vendor
// update including the client's own retries.
type VendorSyncConfig struct {
	MaxAttempts     int
	BatchSize       int
	DeliveryTimeout time.Duration
	Backoff         retry.BackoffConfig
}

func DefaultVendorSyncConfig() VendorSyncConfig {
	backoff := retry.OutboxConfig()
	return VendorSyncConfig{
		MaxAttempts:     backoff.MaxRetries,
		BatchSize:       25,
		DeliveryTimeout: time.Minute,
		Backoff:         backoff,
	}
}

// VendorSyncService delivers activated prompt versions to the voice vendor
// through the vendor_syncs outbox. Delivery is at least once.
type VendorSyncService struct {
	agents      ports.AgentRepository
	versions    ports.PromptVersionRepository
	syncs       ports.VendorSyncRepository
	vendor      ports.VoiceVendor
	txManager   ports.TransactionManager
	idGenerator ports.IDGenerator
	config      VendorSyncConfig
	now         func() time.Time
}

func NewVendorSyncService(
	agents ports.AgentRepository,
	versions ports.PromptVersionRepository,
	syncs ports.VendorSyncRepository,
	vendor ports.VoiceVendor,
	txManager ports.TransactionManager,
	idGenerator ports.IDGenerator,
	config VendorSyncConfig,
) *VendorSyncService {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultVendorSyncConfig().MaxAttempts
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultVendorSyncConfig().BatchSize
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = DefaultVendorSyncConfig().DeliveryTimeout
	}
	return &VendorSyncService{
		agents:      agents,
		versions:    versions,
		syncs:       syncs,
		vendor:      vendor,
		txManager:   txManager,
		idGenerator: idGenerator,
		config:      config,
		now:         time.Now,
	}
}

func (s *VendorSyncService) Enqueue(ctx context.Context, agentID, versionID string) (*models.VendorSync, error) {
	sync := models.NewVendorSync(s.idGenerator.GenerateVendorSyncID(), agentID, versionID)
	if err := s.syncs.Create(ctx, sync); err != nil {
		return nil, fmt.Errorf("failed to enqueue vendor sync: %w", err)
	}
	return sync, nil
}

// Deliver pushes the row's version to the vendor once and records the
// outcome. Rows whose version is no longer current are superseded without
// contacting the vendor. The outcome is recorded even when ctx has ended,
// so a hung vendor still consumes an attempt.
func (s *VendorSyncService) Deliver(ctx context.Context, sync *models.VendorSync) error {
	if !sync.IsPending() {
		return nil
	}
	record := context.WithoutCancel(ctx)

	agent, err := s.agents.GetByID(ctx, sync.AgentID)
	if err != nil {
		return err
	}

	if agent.CurrentPromptID != sync.PromptVersionID {
		sync.MarkSuperseded()
		metrics.VendorSyncAttempts.WithLabelValues("superseded").Inc()
		return s.syncs.Update(record, sync)
	}

	if !agent.HasVendorConfig() {
		slog.Info("vendor sync skipped", "agent_id", agent.ID, "version_id", sync.PromptVersionID, "reason", errAgentNotLinked)
		sync.MarkAttemptFailed(errAgentNotLinked, 1, 0)
		metrics.VendorSyncAttempts.WithLabelValues("unlinked").Inc()
		return s.syncs.Update(record, sync)
	}

	version, err := s.versions.GetByID(ctx, sync.PromptVersionID)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.config.DeliveryTimeout)
	deliverErr := s.vendor.UpdatePrompt(callCtx, agent, version.CompiledPrompt)
	cancel()

	if deliverErr != nil {
		sync.MarkAttemptFailed(deliverErr, s.config.MaxAttempts, s.config.Backoff.Delay(sync.Attempts+1))
		outcome := "retry"
		if sync.Status == models.VendorSyncStatusFailed {
			outcome = "failed"
		}
		metrics.VendorSyncAttempts.WithLabelValues(outcome).Inc()

		if err := s.syncs.Update(record, sync); err != nil {
			return fmt.Errorf("failed to record vendor sync failure: %w", err)
		}
		return deliverErr
	}

	sync.MarkDelivered()
	metrics.VendorSyncAttempts.WithLabelValues("delivered").Inc()
	if err := s.syncs.Update(record, sync); err != nil {
		return fmt.Errorf("failed to record vendor sync delivery: %w", err)
	}

	if _, err := s.syncs.SupersedeOlder(record, sync.AgentID, sync.CreatedAt); err != nil {
		slog.Warn("failed to supersede older vendor syncs", "agent_id", sync.AgentID, "error", err)
	}
	return nil
}

// DeliverBestEffort runs after the local change has committed. A failure
// leaves the row pending for the drain job.
func (s *VendorSyncService) DeliverBestEffort(ctx context.Context, sync *models.VendorSync) {
	if sync == nil {
		return
	}
	if err := s.Deliver(ctx, sync); err != nil {
		slog.Warn("vendor prompt sync failed",
			"agent_id", sync.AgentID,
			"version_id", sync.PromptVersionID,
			"attempts", sync.Attempts,
			"error", err,
		)
	}
}

// DrainDue leases due outbox rows in a short transaction, then delivers
// each one outside it and records every outcome on its own. Rows left
// undelivered when ctx ends become due again after the lease.
func (s *VendorSyncService) DrainDue(ctx context.Context) (int, error) {
	now := s.now()
	leaseUntil := now.Add(s.config.DeliveryTimeout*time.Duration(s.config.BatchSize) + time.Minute)

	var due []*models.VendorSync
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		due, err = s.syncs.ClaimDue(txCtx, now, leaseUntil, s.config.BatchSize)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to claim vendor syncs: %w", err)
	}

	delivered := 0
	for _, sync := range due {
		if ctx.Err() != nil {
			break
		}
		s.DeliverBestEffort(ctx, sync)
		if sync.Status == models.VendorSyncStatusDelivered {
			delivered++
		}
	}

	if pending, err := s.syncs.CountPending(ctx); err == nil {
		metrics.VendorSyncPending.Set(float64(pending))
	}
	return delivered, nil
}
