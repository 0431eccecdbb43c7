package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

const samplePrompt = "## 1. Identity\nYou are Ava.\n\n## 6. Knowledge Base\n\nUse the entries below.\n"

func newPromptsFixture() (*PromptsHandler, *mockPromptService, *mockKnowledgeBaseService) {
	agents := newMockAgentService(ownedAgent("agt_1", "user_1", "pv_2"), ownedAgent("agt_2", "user_2", "pv_7"))
	prompts := &mockPromptService{
		current: models.NewPromptVersion("pv_2", "agt_1", prompt.Parse(samplePrompt), models.GenerationMethodInitial, "", ""),
		versions: []*models.PromptVersion{
			{ID: "pv_2", AgentID: "agt_1", VersionNumber: 2},
			{ID: "pv_1", AgentID: "agt_1", VersionNumber: 1},
		},
	}
	kb := &mockKnowledgeBaseService{}
	return NewPromptsHandler(agents, prompts, kb), prompts, kb
}

func agentRequest(t *testing.T, method, agentID, suffix string, body any) *http.Request {
	t.Helper()
	req := newRequest(t, method, fmt.Sprintf("/api/agents/%s%s", agentID, suffix), body)
	return addUserContext(setURLParams(req, "id", agentID), "user_1")
}

func TestPromptsHandler_GetCurrent(t *testing.T) {
	handler, _, _ := newPromptsFixture()

	rr := httptest.NewRecorder()
	handler.GetCurrent(rr, agentRequest(t, http.MethodGet, "agt_1", "/prompt", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp dto.PromptResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Version.CompiledPrompt != samplePrompt {
		t.Errorf("unexpected prompt %q", resp.Version.CompiledPrompt)
	}
	if len(resp.Sections) != 2 || resp.Sections[1].Kind != prompt.KindKnowledgeBase {
		t.Errorf("unexpected sections %+v", resp.Sections)
	}
}

func TestPromptsHandler_GetCurrent_OtherUsersAgent(t *testing.T) {
	handler, _, _ := newPromptsFixture()

	rr := httptest.NewRecorder()
	handler.GetCurrent(rr, agentRequest(t, http.MethodGet, "agt_2", "/prompt", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestPromptsHandler_Save(t *testing.T) {
	handler, prompts, _ := newPromptsFixture()
	edited := samplePrompt + "\n## 7. Rules\nNever quote prices.\n"

	rr := httptest.NewRecorder()
	handler.Save(rr, agentRequest(t, http.MethodPost, "agt_1", "/prompt", dto.EditPromptRequest{Prompt: edited}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if prompts.savedBase != "pv_2" {
		t.Errorf("base should default to the current version, got %q", prompts.savedBase)
	}
	if prompts.savedMethod != models.GenerationMethodUserEdited {
		t.Errorf("unexpected method %s", prompts.savedMethod)
	}
	if prompts.savedDoc.Render() != edited {
		t.Error("saved document must render to the submitted text")
	}
}

func TestPromptsHandler_Save_Conflict(t *testing.T) {
	handler, prompts, _ := newPromptsFixture()
	prompts.saveErr = domain.ErrConcurrentUpdate

	rr := httptest.NewRecorder()
	handler.Save(rr, agentRequest(t, http.MethodPost, "agt_1", "/prompt", dto.EditPromptRequest{Prompt: "x", BaseVersionID: "pv_1"}))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if prompts.savedBase != "pv_1" {
		t.Errorf("explicit base should be passed through, got %q", prompts.savedBase)
	}
}

func TestPromptsHandler_Save_BlankPrompt(t *testing.T) {
	handler, prompts, _ := newPromptsFixture()

	rr := httptest.NewRecorder()
	handler.Save(rr, agentRequest(t, http.MethodPost, "agt_1", "/prompt", dto.EditPromptRequest{Prompt: "  \n"}))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if prompts.savedDoc != nil {
		t.Error("blank prompt must not be saved")
	}
}

func TestPromptsHandler_Versions(t *testing.T) {
	handler, prompts, _ := newPromptsFixture()

	rr := httptest.NewRecorder()
	handler.ListVersions(rr, agentRequest(t, http.MethodGet, "agt_1", "/prompt/versions", nil))

	var resp dto.PromptVersionListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.CurrentVersionID != "pv_2" || len(resp.Versions) != 2 {
		t.Errorf("unexpected response %+v", resp)
	}

	rr = httptest.NewRecorder()
	handler.Restore(rr, agentRequest(t, http.MethodPost, "agt_1", "/prompt/restore", dto.RestoreVersionRequest{VersionID: "pv_1"}))
	if rr.Code != http.StatusOK || prompts.restored != "pv_1" {
		t.Errorf("restore failed: %d restored=%q", rr.Code, prompts.restored)
	}

	rr = httptest.NewRecorder()
	handler.Restore(rr, agentRequest(t, http.MethodPost, "agt_1", "/prompt/restore", dto.RestoreVersionRequest{VersionID: "pv_other"}))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown version, got %d", rr.Code)
	}
}

func TestPromptsHandler_AddKnowledgeItem(t *testing.T) {
	handler, _, kb := newPromptsFixture()

	rr := httptest.NewRecorder()
	handler.AddKnowledgeItem(rr, agentRequest(t, http.MethodPost, "agt_1", "/kb/add", dto.AddKnowledgeItemRequest{
		Name:    "KB_PRICING",
		Content: "Cleanings are $99.",
	}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if kb.item.Name != "KB_PRICING" {
		t.Errorf("unexpected item %+v", kb.item)
	}
	var resp dto.KnowledgeBaseResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Placement != prompt.PlacedInContentSection {
		t.Errorf("unexpected placement %s", resp.Placement)
	}
}

func TestPromptsHandler_AddKnowledgeItem_Invalid(t *testing.T) {
	handler, _, kb := newPromptsFixture()
	kb.err = domain.ErrKnowledgeItemInvalid

	rr := httptest.NewRecorder()
	handler.AddKnowledgeItem(rr, agentRequest(t, http.MethodPost, "agt_1", "/kb/add", dto.AddKnowledgeItemRequest{}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Code != "invalid_knowledge_item" {
		t.Errorf("unexpected code %q", resp.Code)
	}
}

func TestPromptsHandler_AddKnowledgeURL(t *testing.T) {
	handler, _, kb := newPromptsFixture()

	rr := httptest.NewRecorder()
	handler.AddKnowledgeURL(rr, agentRequest(t, http.MethodPost, "agt_1", "/kb/add-url", dto.AddKnowledgeURLRequest{URL: "https://brightsmile.example/faq"}))

	if rr.Code != http.StatusCreated || kb.url != "https://brightsmile.example/faq" {
		t.Errorf("unexpected result %d url=%q", rr.Code, kb.url)
	}

	rr = httptest.NewRecorder()
	handler.AddKnowledgeURL(rr, agentRequest(t, http.MethodPost, "agt_1", "/kb/add-url", dto.AddKnowledgeURLRequest{}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without url, got %d", rr.Code)
	}
}
