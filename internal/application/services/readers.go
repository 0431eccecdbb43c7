package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/voicedesk/voicedesk/internal/adapters/metrics"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

// AnalysisService reads stored batch analyses.
type AnalysisService struct {
	repo ports.AnalysisRepository
}

func NewAnalysisService(repo ports.AnalysisRepository) *AnalysisService {
	return &AnalysisService{repo: repo}
}

func (s *AnalysisService) Get(ctx context.Context, id string) (*models.BatchAnalysis, error) {
	if err := ValidateID(id, "analysis"); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *AnalysisService) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.BatchAnalysis, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}
	return s.repo.ListByAgent(ctx, agentID, clampLimit(limit))
}

// OptimizationService reads stored optimizations.
type OptimizationService struct {
	repo ports.OptimizationRepository
}

func NewOptimizationService(repo ports.OptimizationRepository) *OptimizationService {
	return &OptimizationService{repo: repo}
}

func (s *OptimizationService) Get(ctx context.Context, id string) (*models.Optimization, error) {
	if err := ValidateID(id, "optimization"); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *OptimizationService) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Optimization, error) {
	if err := ValidateID(agentID, "agent"); err != nil {
		return nil, err
	}
	return s.repo.ListByAgent(ctx, agentID, clampLimit(limit))
}

// ABTestService reads A/B tests and reports the ones past their schedule.
// Closing a test is always a manual decision.
type ABTestService struct {
	repo ports.ABTestRepository
	now  func() time.Time
}

func NewABTestService(repo ports.ABTestRepository) *ABTestService {
	return &ABTestService{repo: repo, now: time.Now}
}

func (s *ABTestService) Get(ctx context.Context, id string) (*models.ABTest, []*models.ABArmStats, error) {
	if err := ValidateID(id, "A/B test"); err != nil {
		return nil, nil, err
	}

	test, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	stats, err := s.repo.ArmStats(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return test, stats, nil
}

// SweepExpired counts running tests past their scheduled end.
func (s *ABTestService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, test := range expired {
		slog.Info("A/B test past scheduled end awaiting a decision",
			"ab_test_id", test.ID,
			"agent_id", test.AgentID,
			"scheduled_end_at", test.ScheduledEndAt,
		)
	}
	metrics.ABTestsExpired.Set(float64(len(expired)))
	return len(expired), nil
}
