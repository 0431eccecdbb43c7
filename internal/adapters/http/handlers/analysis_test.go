package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voicedesk/voicedesk/internal/adapters/http/dto"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
)

type mockAnalysisService struct {
	analyses map[string]*models.BatchAnalysis
}

func (m *mockAnalysisService) Get(ctx context.Context, id string) (*models.BatchAnalysis, error) {
	a, ok := m.analyses[id]
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	return a, nil
}

func (m *mockAnalysisService) ListByAgent(ctx context.Context, agentID string, limit int) ([]*models.BatchAnalysis, error) {
	var out []*models.BatchAnalysis
	for _, a := range m.analyses {
		if a.AgentID == agentID {
			out = append(out, a)
		}
	}
	return out, nil
}

type mockRunAnalysis struct {
	input *ports.RunBatchAnalysisInput
	err   error
}

func (m *mockRunAnalysis) Execute(ctx context.Context, input *ports.RunBatchAnalysisInput) (*models.BatchAnalysis, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return &models.BatchAnalysis{ID: "ana_1", AgentID: input.AgentID, CallCount: 3}, nil
}

type mockRewrite struct {
	input *ports.GenerateRewriteInput
	err   error
}

func (m *mockRewrite) Execute(ctx context.Context, input *ports.GenerateRewriteInput) (*ports.GenerateRewriteOutput, error) {
	m.input = input
	if m.err != nil {
		return nil, m.err
	}
	return &ports.GenerateRewriteOutput{
		Optimization:    &models.Optimization{ID: "opt_1", AgentID: input.AgentID, Status: models.OptimizationStatusPending},
		ProposedVersion: &models.PromptVersion{ID: "pv_3", AgentID: input.AgentID},
		Skipped:         1,
	}, nil
}

func newAnalysisFixture() (*AnalysisHandler, *mockRunAnalysis, *mockRewrite) {
	agents := newMockAgentService(ownedAgent("agt_1", "user_1", "pv_2"), ownedAgent("agt_2", "user_2", "pv_7"))
	analyses := &mockAnalysisService{analyses: map[string]*models.BatchAnalysis{
		"ana_1":     {ID: "ana_1", AgentID: "agt_1"},
		"ana_other": {ID: "ana_other", AgentID: "agt_2"},
	}}
	run := &mockRunAnalysis{}
	rewrite := &mockRewrite{}
	return NewAnalysisHandler(agents, analyses, run, rewrite), run, rewrite
}

func TestAnalysisHandler_Analyze(t *testing.T) {
	handler, run, _ := newAnalysisFixture()

	rr := httptest.NewRecorder()
	handler.Analyze(rr, agentRequest(t, http.MethodPost, "agt_1", "/ai-manager/analyze", dto.AnalyzeRequest{CallCount: 20, DaysSince: 3}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if run.input.AgentID != "agt_1" || run.input.CallCount != 20 || run.input.DaysSince != 3 {
		t.Errorf("unexpected input %+v", run.input)
	}
}

func TestAnalysisHandler_Analyze_EmptyBodyUsesDefaults(t *testing.T) {
	handler, run, _ := newAnalysisFixture()

	rr := httptest.NewRecorder()
	handler.Analyze(rr, agentRequest(t, http.MethodPost, "agt_1", "/ai-manager/analyze", nil))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if run.input.CallCount != 0 || run.input.DaysSince != 0 {
		t.Errorf("zero counts should be passed for defaults, got %+v", run.input)
	}
}

func TestAnalysisHandler_Analyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKey  string
	}{
		{"no calls", domain.NewDomainError(domain.ErrNoCompletedCalls, "no completed interactive calls in the last 7 days"), http.StatusBadRequest, "no_completed_calls"},
		{"credits", domain.ErrCreditsExhausted, http.StatusPaymentRequired, "credits_exhausted"},
		{"llm failure", domain.ErrLLMRequestFailed, http.StatusBadGateway, "llm_failed"},
		{"malformed", domain.ErrAnalysisMalformed, http.StatusBadGateway, "llm_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, run, _ := newAnalysisFixture()
			run.err = tt.err

			rr := httptest.NewRecorder()
			handler.Analyze(rr, agentRequest(t, http.MethodPost, "agt_1", "/ai-manager/analyze", nil))

			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			if resp := decodeError(t, rr); resp.Code != tt.wantKey {
				t.Errorf("expected code %q, got %q", tt.wantKey, resp.Code)
			}
		})
	}
}

func TestAnalysisHandler_Get_ChecksOwnership(t *testing.T) {
	handler, _, _ := newAnalysisFixture()

	for id, want := range map[string]int{
		"ana_1":       http.StatusOK,
		"ana_other":   http.StatusNotFound,
		"ana_missing": http.StatusNotFound,
	} {
		req := addUserContext(setURLParams(httptest.NewRequest(http.MethodGet, "/api/ai-manager/analyses/"+id, nil), "id", id), "user_1")
		rr := httptest.NewRecorder()
		handler.Get(rr, req)
		if rr.Code != want {
			t.Errorf("%s: expected %d, got %d", id, want, rr.Code)
		}
	}
}

func TestAnalysisHandler_GenerateFix(t *testing.T) {
	handler, _, rewrite := newAnalysisFixture()

	body := dto.GenerateFixRequest{
		AnalysisID: "ana_1",
		Issues: []models.Issue{
			{Issue: "Agent never confirms the appointment time", Severity: models.SeverityHigh, TargetSection: "call_flow"},
		},
	}
	rr := httptest.NewRecorder()
	handler.GenerateFix(rr, agentRequest(t, http.MethodPost, "agt_1", "/ai-manager/generate-fix", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if rewrite.input.AgentID != "agt_1" || rewrite.input.AnalysisID != "ana_1" || len(rewrite.input.Issues) != 1 {
		t.Errorf("unexpected input %+v", rewrite.input)
	}

	var resp dto.GenerateFixResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SuggestionID != "opt_1" || resp.SkippedIssues != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestAnalysisHandler_GenerateFix_NoFixableIssues(t *testing.T) {
	handler, _, rewrite := newAnalysisFixture()
	rewrite.err = domain.ErrNoFixableIssues

	rr := httptest.NewRecorder()
	handler.GenerateFix(rr, agentRequest(t, http.MethodPost, "agt_1", "/ai-manager/generate-fix", dto.GenerateFixRequest{}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Code != "no_fixable_issues" || !strings.Contains(resp.Error, "platform-level") {
		t.Errorf("unexpected error %+v", resp)
	}
}
