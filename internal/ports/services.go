package ports

import (
	"context"

	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// LLMRequest is a single-turn completion request
type LLMRequest struct {
	Model     string `json:"model,omitempty"`
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// LLMResponse represents a response from the LLM
type LLMResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

// LLMProvider sends a request to a hosted model.
// Billing failures are reported as domain.ErrCreditsExhausted and every
// other upstream failure as domain.ErrLLMRequestFailed.
type LLMProvider interface {
	Complete(ctx context.Context, req LLMRequest) (*LLMResponse, error)
	Name() string
	DefaultModel() string
}

// VoiceVendor is the conversational-voice API that runs the agents
type VoiceVendor interface {
	// UpdatePrompt loads the compiled prompt into the agent's vendor LLM and
	// points the vendor agent at our webhook.
	UpdatePrompt(ctx context.Context, agent *models.Agent, compiledPrompt string) error
	ListCalls(ctx context.Context, vendorAgentID string, limit int) ([]models.VendorCall, error)
}

// FetchedPage is a web page reduced to its readable content
type FetchedPage struct {
	URL      string `json:"url"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// PageFetcher downloads a page and extracts its main content as markdown
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedPage, error)
}

// CreateAgentInput carries onboarding data for a new agent
type CreateAgentInput struct {
	UserID        string        `json:"-"`
	PhoneNumber   string        `json:"phone_number,omitempty"`
	VendorAgentID string        `json:"vendor_agent_id,omitempty"`
	VendorLLMID   string        `json:"vendor_llm_id,omitempty"`
	AutoAnalyze   bool          `json:"auto_analyze"`
	Fields        prompt.Fields `json:"prompt"`
}

// AgentService manages agents scoped to their owners
type AgentService interface {
	Create(ctx context.Context, input *CreateAgentInput) (*models.Agent, *models.PromptVersion, error)
	// Get returns domain.ErrAgentNotFound for agents owned by another user.
	Get(ctx context.Context, userID, agentID string) (*models.Agent, error)
	List(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error)
}

// PromptService is the version store for compiled prompts
type PromptService interface {
	CreateVersion(ctx context.Context, agentID string, doc *prompt.Document, method models.GenerationMethod, parentID, summary string) (*models.PromptVersion, error)
	SetCurrent(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error)
	Restore(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error)
	// SaveAndActivate stores doc as a new version and makes it current,
	// provided the agent's current version is still baseVersionID.
	SaveAndActivate(ctx context.Context, agentID, baseVersionID string, doc *prompt.Document, method models.GenerationMethod, summary string) (*models.PromptVersion, error)
	Current(ctx context.Context, agentID string) (*models.PromptVersion, error)
	Get(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error)
	List(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error)
}

// PromptActivator repoints an agent at a version inside the caller's
// transaction. The returned outbox row is delivered by the caller after commit.
type PromptActivator interface {
	Activate(ctx context.Context, agentID, expectedCurrentID, versionID string) (*models.VendorSync, error)
}

// KnowledgeBaseService merges knowledge base items into an agent's prompt
type KnowledgeBaseService interface {
	AddItem(ctx context.Context, agentID string, item prompt.KnowledgeItem) (*models.PromptVersion, prompt.Placement, error)
	AddFromURL(ctx context.Context, agentID, url, name string) (*models.PromptVersion, prompt.Placement, error)
}

// CallService ingests vendor calls
type CallService interface {
	HandleWebhook(ctx context.Context, event *models.WebhookEvent) (*models.Call, error)
	ListRecent(ctx context.Context, agentID string, limit int) ([]*models.Call, error)
	SyncFromVendor(ctx context.Context, agentID string, limit int) (int, error)
}

// VendorSyncService delivers activated prompts to the voice vendor
type VendorSyncService interface {
	// Enqueue writes a pending outbox row; callers run it inside their transaction.
	Enqueue(ctx context.Context, agentID, versionID string) (*models.VendorSync, error)
	// DeliverBestEffort attempts one delivery and only logs failures.
	DeliverBestEffort(ctx context.Context, sync *models.VendorSync)
	// Deliver attempts one delivery and records the outcome on the outbox row.
	Deliver(ctx context.Context, sync *models.VendorSync) error
	DrainDue(ctx context.Context) (delivered int, err error)
}

// AnalysisService reads stored batch analyses
type AnalysisService interface {
	Get(ctx context.Context, id string) (*models.BatchAnalysis, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.BatchAnalysis, error)
}

// OptimizationService reads stored optimizations
type OptimizationService interface {
	Get(ctx context.Context, id string) (*models.Optimization, error)
	ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.Optimization, error)
}

// ABTestService reads A/B tests and watches their schedule
type ABTestService interface {
	Get(ctx context.Context, id string) (*models.ABTest, []*models.ABArmStats, error)
	SweepExpired(ctx context.Context) (int, error)
}
