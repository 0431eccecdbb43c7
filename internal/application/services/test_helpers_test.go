package services

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// Shared mock implementations for testing

type mockIDGenerator struct {
	counter int
}

func (m *mockIDGenerator) next(prefix string) string {
	m.counter++
	return fmt.Sprintf("%s_test%d", prefix, m.counter)
}

func (m *mockIDGenerator) GenerateAgentID() string         { return m.next("agt") }
func (m *mockIDGenerator) GeneratePromptVersionID() string { return m.next("pv") }
func (m *mockIDGenerator) GenerateCallID() string          { return m.next("call") }
func (m *mockIDGenerator) GenerateAnalysisID() string      { return m.next("ana") }
func (m *mockIDGenerator) GenerateEvaluationID() string    { return m.next("eval") }
func (m *mockIDGenerator) GenerateOptimizationID() string  { return m.next("opt") }
func (m *mockIDGenerator) GenerateABTestID() string        { return m.next("abt") }
func (m *mockIDGenerator) GenerateVendorSyncID() string    { return m.next("vs") }

// mockTxManager runs fn inline and counts transactions. open is true while
// fn runs.
type mockTxManager struct {
	calls int
	open  bool
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	m.open = true
	defer func() { m.open = false }()
	return fn(ctx)
}

type MockAgentRepository struct {
	mock.Mock
}

func (m *MockAgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	args := m.Called(ctx, agent)
	return args.Error(0)
}

func (m *MockAgentRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.Agent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) GetByVendorAgentID(ctx context.Context, vendorAgentID string) (*models.Agent, error) {
	args := m.Called(ctx, vendorAgentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) ListAutoAnalyze(ctx context.Context) ([]*models.Agent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Agent), args.Error(1)
}

func (m *MockAgentRepository) CompareAndSetCurrentPrompt(ctx context.Context, agentID, expected, versionID string) error {
	args := m.Called(ctx, agentID, expected, versionID)
	return args.Error(0)
}

type MockPromptVersionRepository struct {
	mock.Mock
}

func (m *MockPromptVersionRepository) Create(ctx context.Context, version *models.PromptVersion) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockPromptVersionRepository) GetByID(ctx context.Context, id string) (*models.PromptVersion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptVersionRepository) NextVersionNumber(ctx context.Context, agentID string) (int, error) {
	args := m.Called(ctx, agentID)
	return args.Int(0), args.Error(1)
}

func (m *MockPromptVersionRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PromptVersion), args.Error(1)
}

type MockVendorSyncRepository struct {
	mock.Mock
}

func (m *MockVendorSyncRepository) Create(ctx context.Context, sync *models.VendorSync) error {
	args := m.Called(ctx, sync)
	return args.Error(0)
}

func (m *MockVendorSyncRepository) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]*models.VendorSync, error) {
	args := m.Called(ctx, now, leaseUntil, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.VendorSync), args.Error(1)
}

func (m *MockVendorSyncRepository) Update(ctx context.Context, sync *models.VendorSync) error {
	args := m.Called(ctx, sync)
	return args.Error(0)
}

func (m *MockVendorSyncRepository) SupersedeOlder(ctx context.Context, agentID string, before time.Time) (int64, error) {
	args := m.Called(ctx, agentID, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockVendorSyncRepository) CountPending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockCallRepository struct {
	mock.Mock
}

func (m *MockCallRepository) Upsert(ctx context.Context, call *models.Call) error {
	args := m.Called(ctx, call)
	return args.Error(0)
}

func (m *MockCallRepository) GetByVendorCallID(ctx context.Context, vendorCallID string) (*models.Call, error) {
	args := m.Called(ctx, vendorCallID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Call), args.Error(1)
}

func (m *MockCallRepository) ListRecent(ctx context.Context, agentID string, limit int) ([]*models.Call, error) {
	args := m.Called(ctx, agentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Call), args.Error(1)
}

func (m *MockCallRepository) ListForAnalysis(ctx context.Context, agentID string, since time.Time, limit int) ([]*models.Call, error) {
	args := m.Called(ctx, agentID, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Call), args.Error(1)
}

type MockABTestRepository struct {
	mock.Mock
}

func (m *MockABTestRepository) Create(ctx context.Context, test *models.ABTest) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockABTestRepository) GetByID(ctx context.Context, id string) (*models.ABTest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ABTest), args.Error(1)
}

func (m *MockABTestRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.ABTest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ABTest), args.Error(1)
}

func (m *MockABTestRepository) GetRunningByAgent(ctx context.Context, agentID string) (*models.ABTest, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ABTest), args.Error(1)
}

func (m *MockABTestRepository) Update(ctx context.Context, test *models.ABTest) error {
	args := m.Called(ctx, test)
	return args.Error(0)
}

func (m *MockABTestRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.ABTest, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ABTest), args.Error(1)
}

func (m *MockABTestRepository) ArmStats(ctx context.Context, testID string) ([]*models.ABArmStats, error) {
	args := m.Called(ctx, testID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ABArmStats), args.Error(1)
}

type MockVoiceVendor struct {
	mock.Mock
}

func (m *MockVoiceVendor) UpdatePrompt(ctx context.Context, agent *models.Agent, compiledPrompt string) error {
	args := m.Called(ctx, agent, compiledPrompt)
	return args.Error(0)
}

func (m *MockVoiceVendor) ListCalls(ctx context.Context, vendorAgentID string, limit int) ([]models.VendorCall, error) {
	args := m.Called(ctx, vendorAgentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.VendorCall), args.Error(1)
}

type MockVendorSyncService struct {
	mock.Mock
}

func (m *MockVendorSyncService) Enqueue(ctx context.Context, agentID, versionID string) (*models.VendorSync, error) {
	args := m.Called(ctx, agentID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VendorSync), args.Error(1)
}

func (m *MockVendorSyncService) DeliverBestEffort(ctx context.Context, sync *models.VendorSync) {
	m.Called(ctx, sync)
}

func (m *MockVendorSyncService) Deliver(ctx context.Context, sync *models.VendorSync) error {
	args := m.Called(ctx, sync)
	return args.Error(0)
}

func (m *MockVendorSyncService) DrainDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockPromptService struct {
	mock.Mock
}

func (m *MockPromptService) CreateVersion(ctx context.Context, agentID string, doc *prompt.Document, method models.GenerationMethod, parentID, summary string) (*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, doc, method, parentID, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptService) SetCurrent(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptService) Restore(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptService) SaveAndActivate(ctx context.Context, agentID, baseVersionID string, doc *prompt.Document, method models.GenerationMethod, summary string) (*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, baseVersionID, doc, method, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptService) Current(ctx context.Context, agentID string) (*models.PromptVersion, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptService) Get(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PromptVersion), args.Error(1)
}

func (m *MockPromptService) List(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error) {
	args := m.Called(ctx, agentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PromptVersion), args.Error(1)
}

type MockPageFetcher struct {
	mock.Mock
}

func (m *MockPageFetcher) Fetch(ctx context.Context, url string) (*ports.FetchedPage, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.FetchedPage), args.Error(1)
}

var (
	_ ports.AgentRepository         = (*MockAgentRepository)(nil)
	_ ports.PromptVersionRepository = (*MockPromptVersionRepository)(nil)
	_ ports.VendorSyncRepository    = (*MockVendorSyncRepository)(nil)
	_ ports.CallRepository          = (*MockCallRepository)(nil)
	_ ports.ABTestRepository        = (*MockABTestRepository)(nil)
	_ ports.VoiceVendor             = (*MockVoiceVendor)(nil)
	_ ports.VendorSyncService       = (*MockVendorSyncService)(nil)
	_ ports.PromptService           = (*MockPromptService)(nil)
	_ ports.PageFetcher             = (*MockPageFetcher)(nil)
	_ ports.TransactionManager      = (*mockTxManager)(nil)
	_ ports.IDGenerator             = (*mockIDGenerator)(nil)
)

func linkedAgent(currentPromptID string) *models.Agent {
	agent := models.NewAgent("agt_1", "user_1", "Bright Smiles Dental", "Ava")
	agent.VendorAgentID = "vendor_agent_1"
	agent.VendorLLMID = "vendor_llm_1"
	agent.CurrentPromptID = currentPromptID
	return agent
}
