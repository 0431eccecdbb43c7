package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/adapters/http/middleware"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

func addUserContext(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.UserIDContextKey, userID)
	return req.WithContext(ctx)
}

// setURLParams adds chi URL parameters given as key, value pairs
func setURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	}
	return addUserContext(req, "user_1")
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Success {
		t.Error("error responses must have success=false")
	}
	return resp
}

// mockAgentService holds agents owned by user_1 unless stated otherwise
type mockAgentService struct {
	agents    map[string]*models.Agent
	created   *ports.CreateAgentInput
	createErr error
}

func newMockAgentService(agents ...*models.Agent) *mockAgentService {
	m := &mockAgentService{agents: make(map[string]*models.Agent)}
	for _, a := range agents {
		m.agents[a.ID] = a
	}
	return m
}

func (m *mockAgentService) Create(ctx context.Context, input *ports.CreateAgentInput) (*models.Agent, *models.PromptVersion, error) {
	m.created = input
	if m.createErr != nil {
		return nil, nil, m.createErr
	}
	agent := models.NewAgent("agt_new", input.UserID, input.Fields.BusinessName, input.Fields.AgentName)
	agent.CurrentPromptID = "pv_1"
	return agent, &models.PromptVersion{ID: "pv_1", AgentID: agent.ID, VersionNumber: 1}, nil
}

func (m *mockAgentService) Get(ctx context.Context, userID, agentID string) (*models.Agent, error) {
	agent, ok := m.agents[agentID]
	if !ok || !agent.OwnedBy(userID) {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

func (m *mockAgentService) List(ctx context.Context, userID string, limit, offset int) ([]*models.Agent, error) {
	var out []*models.Agent
	for _, a := range m.agents {
		if a.OwnedBy(userID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func ownedAgent(id, userID, current string) *models.Agent {
	agent := models.NewAgent(id, userID, "Bright Smile Dental", "Ava")
	agent.CurrentPromptID = current
	return agent
}

type mockPromptService struct {
	ports.PromptService
	current     *models.PromptVersion
	versions    []*models.PromptVersion
	saveErr     error
	savedBase   string
	savedDoc    *prompt.Document
	savedMethod models.GenerationMethod
	restored    string
}

func (m *mockPromptService) Current(ctx context.Context, agentID string) (*models.PromptVersion, error) {
	if m.current == nil {
		return nil, domain.ErrPromptNotFound
	}
	return m.current, nil
}

func (m *mockPromptService) SaveAndActivate(ctx context.Context, agentID, baseVersionID string, doc *prompt.Document, method models.GenerationMethod, summary string) (*models.PromptVersion, error) {
	m.savedBase, m.savedDoc, m.savedMethod = baseVersionID, doc, method
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	return models.NewPromptVersion("pv_saved", agentID, doc, method, baseVersionID, summary), nil
}

func (m *mockPromptService) List(ctx context.Context, agentID string, limit int) ([]*models.PromptVersion, error) {
	return m.versions, nil
}

func (m *mockPromptService) Get(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	for _, v := range m.versions {
		if v.ID == versionID && v.AgentID == agentID {
			return v, nil
		}
	}
	return nil, domain.ErrPromptVersionNotFound
}

func (m *mockPromptService) Restore(ctx context.Context, agentID, versionID string) (*models.PromptVersion, error) {
	m.restored = versionID
	return m.Get(ctx, agentID, versionID)
}

type mockKnowledgeBaseService struct {
	item prompt.KnowledgeItem
	url  string
	err  error
}

func (m *mockKnowledgeBaseService) AddItem(ctx context.Context, agentID string, item prompt.KnowledgeItem) (*models.PromptVersion, prompt.Placement, error) {
	m.item = item
	if m.err != nil {
		return nil, "", m.err
	}
	return &models.PromptVersion{ID: "pv_kb", AgentID: agentID}, prompt.PlacedInContentSection, nil
}

func (m *mockKnowledgeBaseService) AddFromURL(ctx context.Context, agentID, url, name string) (*models.PromptVersion, prompt.Placement, error) {
	m.url = url
	if m.err != nil {
		return nil, "", m.err
	}
	return &models.PromptVersion{ID: "pv_url", AgentID: agentID}, prompt.PlacedAtEnd, nil
}
