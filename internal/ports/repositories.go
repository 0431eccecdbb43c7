package ports

import (
	"context"
	"time"

	"github.com/voicedesk/voicedesk/internal/domain/models"
)

// AgentRepository defines operations for agent persistence
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	// GetByIDForUpdate locks the agent row for the rest of the transaction.
	// It serializes version creation and activation per agent.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Agent, error)
	GetByVendorAgentID(ctx context.Context, vendorAgentID string) (*models.Agent, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error)
	ListAutoAnalyze(ctx context.Context) ([]*models.Agent, error)
	// CompareAndSetCurrentPrompt repoints current_prompt_id only if it still
	// equals expected. It returns domain.ErrConcurrentUpdate otherwise.
	CompareAndSetCurrentPrompt(ctx context.Context, agentID, expected, versionID string) error
}

// PromptVersionRepository defines operations for the append-only version log
type PromptVersionRepository interface {
	Create(ctx context.Context, version *models.PromptVersion) error
	GetByID(ctx context.Context, id string) (*models.PromptVersion, error)
	NextVersionNumber(ctx context.Context, agentID string) (int, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error)
}

// CallRepository defines operations for call persistence
type CallRepository interface {
	// Upsert inserts a call or updates the existing row with the same vendor call id.
	Upsert(ctx context.Context, call *models.Call) error
	GetByVendorCallID(ctx context.Context, vendorCallID string) (*models.Call, error)
	ListRecent(ctx context.Context, agentID string, limit int) ([]*models.Call, error)
	// ListForAnalysis returns completed calls with a transcript started after since, newest first.
	ListForAnalysis(ctx context.Context, agentID string, since time.Time, limit int) ([]*models.Call, error)
}

// AnalysisRepository defines operations for batch analysis persistence
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.BatchAnalysis) error
	CreateEvaluation(ctx context.Context, evaluation *models.CallEvaluation) error
	GetByID(ctx context.Context, id string) (*models.BatchAnalysis, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.BatchAnalysis, error)
}

// OptimizationRepository defines operations for optimization persistence
type OptimizationRepository interface {
	Create(ctx context.Context, opt *models.Optimization) error
	GetByID(ctx context.Context, id string) (*models.Optimization, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.Optimization, error)
	Update(ctx context.Context, opt *models.Optimization) error
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Optimization, error)
}

// ABTestRepository defines operations for A/B test persistence
type ABTestRepository interface {
	Create(ctx context.Context, test *models.ABTest) error
	GetByID(ctx context.Context, id string) (*models.ABTest, error)
	GetByIDForUpdate(ctx context.Context, id string) (*models.ABTest, error)
	// GetRunningByAgent returns domain.ErrABTestNotFound when the agent has no running test.
	GetRunningByAgent(ctx context.Context, agentID string) (*models.ABTest, error)
	Update(ctx context.Context, test *models.ABTest) error
	ListExpired(ctx context.Context, now time.Time) ([]*models.ABTest, error)
	ArmStats(ctx context.Context, testID string) ([]*models.ABArmStats, error)
}

// VendorSyncRepository defines operations for the vendor sync outbox
type VendorSyncRepository interface {
	Create(ctx context.Context, sync *models.VendorSync) error
	// ClaimDue leases up to limit pending rows whose next attempt is due by
	// moving their next attempt to leaseUntil, skipping rows another worker holds.
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*models.VendorSync, error)
	Update(ctx context.Context, sync *models.VendorSync) error
	// SupersedeOlder marks pending rows for the agent created before the given row as superseded.
	SupersedeOlder(ctx context.Context, agentID string, before time.Time) (int64, error)
	CountPending(ctx context.Context) (int, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction executes a function within a database transaction
	// If the function returns an error, the transaction is rolled back
	// Otherwise, the transaction is committed
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// IDGenerator generates unique IDs for entities
type IDGenerator interface {
	// GenerateAgentID generates a new agent ID (agt_xxx)
	GenerateAgentID() string

	// GeneratePromptVersionID generates a new prompt version ID (pv_xxx)
	GeneratePromptVersionID() string

	// GenerateCallID generates a new call ID (call_xxx)
	GenerateCallID() string

	GenerateAnalysisID() string
	GenerateEvaluationID() string
	GenerateOptimizationID() string
	GenerateABTestID() string
	GenerateVendorSyncID() string
}
