package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// ABTestConfig is the traffic split and run time of new tests.
type ABTestConfig struct {
	ControlPercent int
	TestPercent    int
	Duration       time.Duration
}

func DefaultABTestConfig() ABTestConfig {
	return ABTestConfig{
		ControlPercent: models.DefaultControlPercent,
		TestPercent:    models.DefaultTestPercent,
		Duration:       models.DefaultABTestDuration,
	}
}

// ReviewOptimization applies a reviewer's decisions to optimizations and
// the A/B tests they start.
type ReviewOptimization struct {
	agents        ports.AgentRepository
	optimizations ports.OptimizationRepository
	abTests       ports.ABTestRepository
	activator     ports.PromptActivator
	syncs         ports.VendorSyncService
	txManager     ports.TransactionManager
	idGenerator   ports.IDGenerator
	config        ABTestConfig
}

func NewReviewOptimization(
	agents ports.AgentRepository,
	optimizations ports.OptimizationRepository,
	abTests ports.ABTestRepository,
	activator ports.PromptActivator,
	syncs ports.VendorSyncService,
	txManager ports.TransactionManager,
	idGenerator ports.IDGenerator,
	config ABTestConfig,
) *ReviewOptimization {
	if config.ControlPercent <= 0 && config.TestPercent <= 0 {
		config.ControlPercent = models.DefaultControlPercent
		config.TestPercent = models.DefaultTestPercent
	}
	if config.Duration <= 0 {
		config.Duration = models.DefaultABTestDuration
	}
	return &ReviewOptimization{
		agents:        agents,
		optimizations: optimizations,
		abTests:       abTests,
		activator:     activator,
		syncs:         syncs,
		txManager:     txManager,
		idGenerator:   idGenerator,
		config:        config,
	}
}

// Accept starts an A/B test of the proposed version against the agent's
// current version. An agent runs at most one test at a time.
func (uc *ReviewOptimization) Accept(ctx context.Context, optimizationID string) (*models.Optimization, *models.ABTest, error) {
	if strings.TrimSpace(optimizationID) == "" {
		return nil, nil, domain.NewDomainError(domain.ErrInvalidInput, "optimization ID is required")
	}

	var opt *models.Optimization
	var test *models.ABTest
	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		opt, err = uc.optimizations.GetByIDForUpdate(txCtx, optimizationID)
		if err != nil {
			return err
		}

		agent, err := uc.agents.GetByIDForUpdate(txCtx, opt.AgentID)
		if err != nil {
			return err
		}
		if agent.CurrentPromptID == "" {
			return domain.ErrPromptNotFound
		}

		running, err := uc.abTests.GetRunningByAgent(txCtx, opt.AgentID)
		switch {
		case err == nil:
			return fmt.Errorf("%w (%s): %w", domain.ErrABTestAlreadyRunning, running.ID, domain.ErrInvalidStatusTransition)
		case !errors.Is(err, domain.ErrABTestNotFound):
			return err
		}

		testID := uc.idGenerator.GenerateABTestID()
		if err := opt.StartABTest(testID, agent.CurrentPromptID); err != nil {
			return err
		}
		test = models.NewABTest(testID, opt.AgentID, opt.ID, agent.CurrentPromptID, opt.ProposedVersionID,
			uc.config.ControlPercent, uc.config.TestPercent, uc.config.Duration)

		if err := uc.abTests.Create(txCtx, test); err != nil {
			return domain.NewDomainError(err, "failed to create a/b test")
		}
		return uc.optimizations.Update(txCtx, opt)
	})
	if err != nil {
		return nil, nil, err
	}

	slog.Info("optimization accepted",
		"optimization_id", opt.ID,
		"agent_id", opt.AgentID,
		"ab_test_id", test.ID,
		"scheduled_end_at", test.ScheduledEndAt,
	)
	return opt, test, nil
}

// Reject records the reviewer's feedback and nothing else.
func (uc *ReviewOptimization) Reject(ctx context.Context, optimizationID, feedback string) (*models.Optimization, error) {
	if strings.TrimSpace(optimizationID) == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "optimization ID is required")
	}

	var opt *models.Optimization
	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		opt, err = uc.optimizations.GetByIDForUpdate(txCtx, optimizationID)
		if err != nil {
			return err
		}
		if err := opt.Reject(strings.TrimSpace(feedback)); err != nil {
			return err
		}
		return uc.optimizations.Update(txCtx, opt)
	})
	if err != nil {
		return nil, err
	}
	return opt, nil
}

// CompleteABTest closes a running test. A test-arm win makes the proposed
// version current, provided the control version is still current.
func (uc *ReviewOptimization) CompleteABTest(ctx context.Context, testID string, winner models.ABArm) (*models.ABTest, *models.Optimization, error) {
	if strings.TrimSpace(testID) == "" {
		return nil, nil, domain.NewDomainError(domain.ErrInvalidInput, "a/b test ID is required")
	}
	if !winner.IsValid() {
		return nil, nil, domain.NewDomainError(domain.ErrInvalidInput, `winner must be "control" or "test"`)
	}

	var test *models.ABTest
	var opt *models.Optimization
	var sync *models.VendorSync
	err := uc.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		test, err = uc.abTests.GetByIDForUpdate(txCtx, testID)
		if err != nil {
			return err
		}
		opt, err = uc.optimizations.GetByIDForUpdate(txCtx, test.OptimizationID)
		if err != nil {
			return err
		}

		if err := test.Complete(winner); err != nil {
			return err
		}
		if winner == models.ABArmTest {
			sync, err = uc.activator.Activate(txCtx, test.AgentID, test.ControlVersionID, test.VersionFor(winner))
			if err != nil {
				return err
			}
			err = opt.Promote()
		} else {
			err = opt.Revert()
		}
		if err != nil {
			return err
		}

		if err := uc.abTests.Update(txCtx, test); err != nil {
			return err
		}
		return uc.optimizations.Update(txCtx, opt)
	})
	if err != nil {
		return nil, nil, err
	}

	uc.syncs.DeliverBestEffort(ctx, sync)

	slog.Info("a/b test completed",
		"ab_test_id", test.ID,
		"agent_id", test.AgentID,
		"winner", winner,
		"optimization_status", opt.Status,
	)
	return test, opt, nil
}
