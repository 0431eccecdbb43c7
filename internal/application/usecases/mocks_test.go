package usecases

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// ============================================================================
// In-memory repositories shared across tests
// ============================================================================

type mockAgentRepo struct {
	mu     sync.Mutex
	agents map[string]*models.Agent
}

func newMockAgentRepo(agents ...*models.Agent) *mockAgentRepo {
	m := &mockAgentRepo{agents: make(map[string]*models.Agent)}
	for _, a := range agents {
		m.agents[a.ID] = a
	}
	return m
}

func (m *mockAgentRepo) Create(ctx context.Context, agent *models.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *agent
	m.agents[agent.ID] = &copied
	return nil
}

func (m *mockAgentRepo) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.agents[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, domain.ErrAgentNotFound
}

func (m *mockAgentRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.Agent, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAgentRepo) GetByVendorAgentID(ctx context.Context, vendorAgentID string) (*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.VendorAgentID == vendorAgentID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrAgentNotFound
}

func (m *mockAgentRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error) {
	return nil, nil
}

func (m *mockAgentRepo) ListAutoAnalyze(ctx context.Context) ([]*models.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Agent
	for _, a := range m.agents {
		if a.AutoAnalyze {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAgentRepo) CompareAndSetCurrentPrompt(ctx context.Context, agentID, expected, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok || a.CurrentPromptID != expected {
		return domain.ErrConcurrentUpdate
	}
	a.CurrentPromptID = versionID
	return nil
}

func (m *mockAgentRepo) current(agentID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents[agentID].CurrentPromptID
}

type mockCallRepo struct {
	mu    sync.Mutex
	calls []*models.Call
	since time.Time
	limit int
}

func (m *mockCallRepo) Upsert(ctx context.Context, call *models.Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return nil
}

func (m *mockCallRepo) GetByVendorCallID(ctx context.Context, vendorCallID string) (*models.Call, error) {
	return nil, domain.ErrCallNotFound
}

func (m *mockCallRepo) ListRecent(ctx context.Context, agentID string, limit int) ([]*models.Call, error) {
	return nil, nil
}

func (m *mockCallRepo) ListForAnalysis(ctx context.Context, agentID string, since time.Time, limit int) ([]*models.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	m.limit = limit

	var out []*models.Call
	for _, c := range m.calls {
		if c.AgentID != agentID || c.Status != models.CallStatusCompleted || c.Transcript == "" {
			continue
		}
		if c.StartedAt != nil && c.StartedAt.Before(since) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt != nil && out[j].StartedAt != nil && out[i].StartedAt.After(*out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type mockAnalysisRepo struct {
	mu          sync.Mutex
	analyses    map[string]*models.BatchAnalysis
	evaluations []*models.CallEvaluation
	createErr   error
}

func newMockAnalysisRepo() *mockAnalysisRepo {
	return &mockAnalysisRepo{analyses: make(map[string]*models.BatchAnalysis)}
}

func (m *mockAnalysisRepo) Create(ctx context.Context, analysis *models.BatchAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.analyses[analysis.ID] = analysis
	return nil
}

func (m *mockAnalysisRepo) CreateEvaluation(ctx context.Context, evaluation *models.CallEvaluation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evaluations = append(m.evaluations, evaluation)
	return nil
}

func (m *mockAnalysisRepo) GetByID(ctx context.Context, id string) (*models.BatchAnalysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.analyses[id]; ok {
		return a, nil
	}
	return nil, domain.ErrAnalysisNotFound
}

func (m *mockAnalysisRepo) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.BatchAnalysis, error) {
	return nil, nil
}

type mockOptimizationRepo struct {
	mu   sync.Mutex
	opts map[string]*models.Optimization
}

func newMockOptimizationRepo(opts ...*models.Optimization) *mockOptimizationRepo {
	m := &mockOptimizationRepo{opts: make(map[string]*models.Optimization)}
	for _, o := range opts {
		m.opts[o.ID] = o
	}
	return m
}

func (m *mockOptimizationRepo) Create(ctx context.Context, opt *models.Optimization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *opt
	m.opts[opt.ID] = &copied
	return nil
}

func (m *mockOptimizationRepo) GetByID(ctx context.Context, id string) (*models.Optimization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.opts[id]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, domain.ErrOptimizationNotFound
}

func (m *mockOptimizationRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.Optimization, error) {
	return m.GetByID(ctx, id)
}

func (m *mockOptimizationRepo) Update(ctx context.Context, opt *models.Optimization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.opts[opt.ID]; !ok {
		return domain.ErrOptimizationNotFound
	}
	copied := *opt
	m.opts[opt.ID] = &copied
	return nil
}

func (m *mockOptimizationRepo) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Optimization, error) {
	return nil, nil
}

func (m *mockOptimizationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.opts)
}

type mockABTestRepo struct {
	mu    sync.Mutex
	tests map[string]*models.ABTest
}

func newMockABTestRepo(tests ...*models.ABTest) *mockABTestRepo {
	m := &mockABTestRepo{tests: make(map[string]*models.ABTest)}
	for _, t := range tests {
		m.tests[t.ID] = t
	}
	return m
}

func (m *mockABTestRepo) Create(ctx context.Context, test *models.ABTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *test
	m.tests[test.ID] = &copied
	return nil
}

func (m *mockABTestRepo) GetByID(ctx context.Context, id string) (*models.ABTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tests[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.ErrABTestNotFound
}

func (m *mockABTestRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.ABTest, error) {
	return m.GetByID(ctx, id)
}

func (m *mockABTestRepo) GetRunningByAgent(ctx context.Context, agentID string) (*models.ABTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tests {
		if t.AgentID == agentID && t.IsRunning() {
			copied := *t
			return &copied, nil
		}
	}
	return nil, domain.ErrABTestNotFound
}

func (m *mockABTestRepo) Update(ctx context.Context, test *models.ABTest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *test
	m.tests[test.ID] = &copied
	return nil
}

func (m *mockABTestRepo) ListExpired(ctx context.Context, now time.Time) ([]*models.ABTest, error) {
	return nil, nil
}

func (m *mockABTestRepo) ArmStats(ctx context.Context, testID string) ([]*models.ABArmStats, error) {
	return nil, nil
}

func (m *mockABTestRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tests)
}

// ============================================================================
// Service and infrastructure mocks
// ============================================================================

// mockPromptService keeps versions in memory and repoints the agent repo.
type mockPromptService struct {
	mu       sync.Mutex
	agents   *mockAgentRepo
	versions map[string]*models.PromptVersion
	created  []*models.PromptVersion
	next     int
}

func newMockPromptService(agents *mockAgentRepo, versions ...*models.PromptVersion) *mockPromptService {
	m := &mockPromptService{agents: agents, versions: make(map[string]*models.PromptVersion)}
	for _, v := range versions {
		m.versions[v.ID] = v
	}
	return m
}

func (m *mockPromptService) CreateVersion(ctx context.Context, agentID string, doc *prompt.Document, method models.GenerationMethod, parentID, summary string) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	v := models.NewPromptVersion(fmt.Sprintf("pv_new%d", m.next), agentID, doc, method, parentID, summary)
	v.VersionNumber = len(m.versions) + 1
	m.versions[v.ID] = v
	m.created = append(m.created, v)
	return v, nil
}

func (m *mockPromptService) SetCurrent(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockPromptService) Restore(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockPromptService) SaveAndActivate(ctx context.Context, agentID, baseVersionID string, doc *prompt.Document, method models.GenerationMethod, summary string) (*models.PromptVersion, error) {
	return nil, fmt.Errorf("not implemented")
}

func (m *mockPromptService) Current(ctx context.Context, agentID string) (*models.PromptVersion, error) {
	id := m.agents.current(agentID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.versions[id]; ok {
		return v, nil
	}
	return nil, domain.ErrPromptNotFound
}

func (m *mockPromptService) Get(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.versions[versionID]; ok && v.AgentID == agentID {
		return v, nil
	}
	return nil, domain.ErrPromptVersionNotFound
}

func (m *mockPromptService) List(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error) {
	return nil, nil
}

// mockActivator performs the compare-and-swap against the agent repo.
type mockActivator struct {
	agents *mockAgentRepo
	calls  int
}

func (m *mockActivator) Activate(ctx context.Context, agentID, expectedCurrentID, versionID string) (*models.VendorSync, error) {
	m.calls++
	if err := m.agents.CompareAndSetCurrentPrompt(ctx, agentID, expectedCurrentID, versionID); err != nil {
		return nil, err
	}
	return models.NewVendorSync(fmt.Sprintf("vs_%d", m.calls), agentID, versionID), nil
}

type mockVendorSyncService struct {
	mu        sync.Mutex
	delivered []*models.VendorSync
}

func (m *mockVendorSyncService) Enqueue(ctx context.Context, agentID, versionID string) (*models.VendorSync, error) {
	return models.NewVendorSync("vs_enqueued", agentID, versionID), nil
}

func (m *mockVendorSyncService) DeliverBestEffort(ctx context.Context, sync *models.VendorSync) {
	if sync == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered = append(m.delivered, sync)
}

func (m *mockVendorSyncService) Deliver(ctx context.Context, sync *models.VendorSync) error {
	m.DeliverBestEffort(ctx, sync)
	return nil
}

func (m *mockVendorSyncService) DrainDue(ctx context.Context) (int, error) {
	return 0, nil
}

// mockLLM returns queued responses in order and records every request.
type mockLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []ports.LLMRequest
}

func (m *mockLLM) Complete(ctx context.Context, req ports.LLMRequest) (*ports.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	if i >= len(m.responses) {
		return nil, fmt.Errorf("%w: no response queued", domain.ErrLLMRequestFailed)
	}
	return &ports.LLMResponse{Content: m.responses[i], Model: "test-model"}, nil
}

func (m *mockLLM) Name() string         { return "mock" }
func (m *mockLLM) DefaultModel() string { return "test-model" }

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

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

var (
	_ ports.AgentRepository        = (*mockAgentRepo)(nil)
	_ ports.CallRepository         = (*mockCallRepo)(nil)
	_ ports.AnalysisRepository     = (*mockAnalysisRepo)(nil)
	_ ports.OptimizationRepository = (*mockOptimizationRepo)(nil)
	_ ports.ABTestRepository       = (*mockABTestRepo)(nil)
	_ ports.PromptService          = (*mockPromptService)(nil)
	_ ports.PromptActivator        = (*mockActivator)(nil)
	_ ports.VendorSyncService      = (*mockVendorSyncService)(nil)
	_ ports.LLMProvider            = (*mockLLM)(nil)
	_ ports.TransactionManager     = (*mockTxManager)(nil)
	_ ports.IDGenerator            = (*mockIDGenerator)(nil)
)

func testAgent(currentPromptID string) *models.Agent {
	a := models.NewAgent("agt_1", "user_1", "Bright Smiles Dental", "Ava")
	a.CurrentPromptID = currentPromptID
	a.VendorAgentID = "vendor_agent_1"
	a.VendorLLMID = "vendor_llm_1"
	return a
}

func completedCall(id string, startedAt time.Time, transcript string) *models.Call {
	return &models.Call{
		ID:           id,
		AgentID:      "agt_1",
		VendorCallID: "v_" + id,
		Status:       models.CallStatusCompleted,
		StartedAt:    &startedAt,
		Transcript:   transcript,
	}
}
