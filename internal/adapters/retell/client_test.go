package retell

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voicedesk/voicedesk/internal/adapters/retry"
	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "key_test", "https://voicedesk.example.com/api/webhooks/retell", time.Second)
	c.retryConfig = retry.BackoffConfig{InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, MaxRetries: 1, Multiplier: 1}
	return c
}

func linkedAgent() *models.Agent {
	agent := models.NewAgent("agt_1", "user_1", "Bright Smile Dental", "Ava")
	agent.VendorAgentID = "agent_abc"
	agent.VendorLLMID = "llm_xyz"
	return agent
}

func TestClient_UpdatePrompt(t *testing.T) {
	var paths []string
	var llmBody map[string]string
	var agentBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "Bearer key_test", r.Header.Get("Authorization"))
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/update-retell-llm/llm_xyz":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&llmBody))
		case "/update-agent/agent_abc":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&agentBody))
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).UpdatePrompt(context.Background(), linkedAgent(), "## 1. Identity\nYou are Ava.")
	require.NoError(t, err)

	assert.Equal(t, []string{"/update-retell-llm/llm_xyz", "/update-agent/agent_abc"}, paths)
	assert.Equal(t, "## 1. Identity\nYou are Ava.", llmBody["general_prompt"])
	assert.Equal(t, "https://voicedesk.example.com/api/webhooks/retell", agentBody["webhook_url"])
}

func TestClient_UpdatePrompt_UpstreamFailure(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	err := newTestClient(server.URL).UpdatePrompt(context.Background(), linkedAgent(), "prompt")

	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable), "got %v", err)
	assert.Equal(t, 2, attempts, "5xx responses are retried once")
}

func TestClient_UpdatePrompt_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	err := newTestClient(server.URL).UpdatePrompt(context.Background(), linkedAgent(), "prompt")

	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
	assert.Equal(t, 1, attempts)
}

func TestClient_UpdatePrompt_Unlinked(t *testing.T) {
	agent := models.NewAgent("agt_2", "user_1", "Biz", "Max")
	err := NewClient("http://unused", "k", "", time.Second).UpdatePrompt(context.Background(), agent, "p")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestClient_ListCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/list-calls", r.URL.Path)
		var req listCallsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"agent_abc"}, req.FilterCriteria.AgentID)
		assert.Equal(t, "descending", req.SortOrder)
		assert.Equal(t, 50, req.Limit)

		w.Write([]byte(`[
			{"call_id":"c1","agent_id":"agent_abc","call_status":"ended","start_timestamp":1760000000000,"end_timestamp":1760000090000,"transcript":"Agent: Hi\nUser: Hello","disconnection_reason":"user_hangup"},
			{"call_id":"c2","agent_id":"agent_abc","call_status":"ended","disconnection_reason":"dial_no_answer"}
		]`))
	}))
	defer server.Close()

	calls, err := newTestClient(server.URL).ListCalls(context.Background(), "agent_abc", 50)
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[0].CallID)
	assert.Equal(t, int64(1760000090000), calls[0].EndTimestamp)
	assert.Equal(t, "dial_no_answer", calls[1].DisconnectionReason)
}
