package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iksnae/deep-research/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(internal.ModelConfig{
		BaseURL:     srv.URL + "/v1",
		APIKey:      "sk-test",
		Name:        "kimi-k2-thinking",
		MaxTokens:   1024,
		Temperature: 1.0,
	})
}

const toolCallResponse = `{
  "id": "cmpl-1", "object": "chat.completion", "created": 1, "model": "kimi-k2-thinking",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "",
      "reasoning_content": "I should search.",
      "tool_calls": [
        {"id": "search:0", "type": "function", "function": {"name": "search", "arguments": "{\"queries\":[\"weather today\"]}"}},
        {"id": "", "type": "", "function": {"name": "search", "arguments": "{\"queries\":[]}"}}
      ]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestComplete_ToolCalls(t *testing.T) {
	var body map[string]interface{}
	var auth, path string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallResponse))
	})

	turn, err := client.Complete(context.Background(), Request{
		Transcript: internal.NewTestTranscript(),
		Tools: []internal.ToolSpec{{
			Name:       "search",
			Parameters: map[string]interface{}{"type": "object"},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/chat/completions", path)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "kimi-k2-thinking", body["model"])
	assert.EqualValues(t, 1024, body["max_tokens"])

	messages := body["messages"].([]interface{})
	require.Len(t, messages, 5)
	toolMsg := messages[3].(map[string]interface{})
	assert.Equal(t, "tool", toolMsg["role"])
	assert.Equal(t, "call_1", toolMsg["tool_call_id"])
	assert.NotContains(t, toolMsg, "search_results")
	assistant := messages[2].(map[string]interface{})
	assert.Equal(t, "Look up a forecast first.", assistant["reasoning_content"])

	tools := body["tools"].([]interface{})
	require.Len(t, tools, 1)

	assert.Equal(t, "I should search.", turn.Reasoning)
	require.Len(t, turn.ToolCalls, 2)
	assert.Equal(t, "search:0", turn.ToolCalls[0].ID)
	assert.Equal(t, `{"queries":["weather today"]}`, turn.ToolCalls[0].Function.Arguments)
	assert.True(t, strings.HasPrefix(turn.ToolCalls[1].ID, "call_"))
	assert.Equal(t, internal.ToolTypeFunction, turn.ToolCalls[1].Type)
}

func TestComplete_FinalAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Sunny [^0^]."}}]}`))
	})

	turn, err := client.Complete(context.Background(), Request{Transcript: internal.NewTestTranscript()[:2]})
	require.NoError(t, err)
	assert.Equal(t, "Sunny [^0^].", turn.Content)
	assert.False(t, turn.HasToolCalls())
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantAuth bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Invalid Authentication","type":"invalid_authentication_error"}}`, true},
		{"forbidden non-json", http.StatusForbidden, `forbidden`, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit_reached_error"}}`, false},
		{"server error", http.StatusInternalServerError, `oops`, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.Complete(context.Background(), Request{Transcript: internal.NewTestTranscript()[:2]})
			require.Error(t, err)
			assert.True(t, internal.IsFatal(err))

			var authErr *internal.AuthError
			var modelErr *internal.ModelError
			if tt.wantAuth {
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.status, authErr.StatusCode)
			} else {
				assert.ErrorAs(t, err, &modelErr)
				assert.False(t, errorsAsAuth(err))
			}
		})
	}
}

func errorsAsAuth(err error) bool {
	_, ok := authStatus(err)
	return ok
}

func TestToChatMessages_RejectsUnknownTurn(t *testing.T) {
	_, err := toChatMessages([]internal.Turn{nil})
	assert.Error(t, err)
}
