package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(config.LLMConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "claude-sonnet-4-20250514",
	}, logger.NewNop())
}

func TestToWireRequestRoles(t *testing.T) {
	req := domain.ChatRequest{
		System: "be helpful",
		Messages: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "cancel order 42"},
			{Role: domain.RoleAssistant, Content: "Cancelling.", ToolCalls: []domain.ToolCall{
				{ID: "toolu_1", Name: "cancel_order", Input: json.RawMessage(`{"id":"42"}`)},
			}},
			{Role: domain.RoleToolResult, ToolCallID: "toolu_1", Content: "cancelled", IsError: false},
		},
		Tools: []domain.ToolDefinition{
			{Name: "cancel_order", Description: "d", InputSchema: json.RawMessage(`{"type":"object"}`)},
		},
	}

	wire := toWireRequest(req, true)

	assert.True(t, wire.Stream)
	assert.Equal(t, "be helpful", wire.System)
	assert.Equal(t, defaultMaxTokens, wire.MaxTokens)
	require.Len(t, wire.Messages, 3)

	assert.Equal(t, "user", wire.Messages[0].Role)
	assert.Equal(t, "text", wire.Messages[0].Content[0].Type)

	assert.Equal(t, "assistant", wire.Messages[1].Role)
	require.Len(t, wire.Messages[1].Content, 2)
	assert.Equal(t, "text", wire.Messages[1].Content[0].Type)
	assert.Equal(t, "tool_use", wire.Messages[1].Content[1].Type)
	assert.Equal(t, "toolu_1", wire.Messages[1].Content[1].ID)

	// Tool results travel back as user messages.
	assert.Equal(t, "user", wire.Messages[2].Role)
	require.Len(t, wire.Messages[2].Content, 1)
	assert.Equal(t, "tool_result", wire.Messages[2].Content[0].Type)
	assert.Equal(t, "toolu_1", wire.Messages[2].Content[0].ToolUseID)

	require.Len(t, wire.Tools, 1)
	assert.Equal(t, "cancel_order", wire.Tools[0].Name)
}

func TestFromWireResponse(t *testing.T) {
	resp := wireResponse{
		ID:         "msg_1",
		Model:      "claude-sonnet-4-20250514",
		StopReason: domain.StopToolUse,
		Content: []wireContent{
			{Type: "text", Text: "Looking that up."},
			{Type: "tool_use", ID: "toolu_9", Name: "get_order"},
		},
		Usage: wireUsage{InputTokens: 10, OutputTokens: 20},
	}

	result := fromWireResponse(resp)
	assert.Equal(t, "Looking that up.", result.Text)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "get_order", result.ToolCalls[0].Name)
	// Missing input normalizes to an empty object.
	assert.JSONEq(t, `{}`, string(result.ToolCalls[0].Input))
	assert.Equal(t, domain.StopToolUse, result.StopReason)
	assert.Equal(t, 10, result.Usage.InputTokens)
}

func TestChatDecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, defaultAnthropicVersion, r.Header.Get("anthropic-version"))

		body, _ := io.ReadAll(r.Body)
		var req wireRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "claude-sonnet-4-20250514", req.Model)

		fmt.Fprint(w, `{"id":"msg_1","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn","usage":{"input_tokens":5,"output_tokens":2}}`)
	}))
	defer server.Close()

	result, err := testClient(t, server.URL).Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Text)
	assert.Equal(t, domain.StopEndTurn, result.StopReason)
}

func TestChatRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "17")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
	})
	require.Error(t, err)
	delay, ok := domain.RetryAfterOf(err)
	require.True(t, ok)
	assert.Equal(t, 17*time.Second, delay)
}

func TestChatUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`)
	}))
	defer server.Close()

	_, err := testClient(t, server.URL).Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}},
	})
	require.ErrorIs(t, err, domain.ErrAuthInvalid)
	assert.Contains(t, err.Error(), "bad key")
}

func TestChatStreamToolUseTurn(t *testing.T) {
	frames := []string{
		`event: message_start`,
		`data: {"type":"message_start","message":{"id":"msg_1","usage":{"input_tokens":12,"output_tokens":0}}}`,
		``,
		`data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
		``,
		`data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Let me check"}}`,
		``,
		`data: {"type":"content_block_stop","index":0}`,
		``,
		`data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_order"}}`,
		``,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"id\":"}}`,
		``,
		`data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"42\"}"}}`,
		``,
		`data: {"type":"content_block_stop","index":1}`,
		``,
		`data: {"type":"message_delta","delta":{"type":"message_delta","stop_reason":"tool_use"},"usage":{"output_tokens":30}}`,
		``,
		`data: {"type":"message_stop"}`,
		``,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range frames {
			fmt.Fprint(w, line+"\n")
			flusher.Flush()
		}
	}))
	defer server.Close()

	ch, err := testClient(t, server.URL).ChatStream(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatMessage{{Role: domain.RoleUser, Content: "where is order 42"}},
	})
	require.NoError(t, err)

	var events []domain.StreamEvent
	for evt := range ch {
		events = append(events, evt)
	}

	types := make([]domain.StreamEventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	assert.Equal(t, []domain.StreamEventType{
		domain.EventTextDelta,
		domain.EventToolUseStart,
		domain.EventToolUseInputDelta,
		domain.EventToolUseInputDelta,
		domain.EventToolUseComplete,
		domain.EventTurnComplete,
	}, types)

	assert.Equal(t, "Let me check", events[0].Text)
	assert.Equal(t, "toolu_1", events[1].ToolID)
	assert.Equal(t, "get_order", events[1].ToolName)
	assert.Equal(t, `{"id":`, events[2].PartialJSON)
	assert.Equal(t, `"42"}`, events[3].PartialJSON)

	turn := events[len(events)-1]
	assert.Equal(t, domain.StopToolUse, turn.StopReason)
	require.NotNil(t, turn.Usage)
	assert.Equal(t, 12, turn.Usage.InputTokens)
	assert.Equal(t, 30, turn.Usage.OutputTokens)
}

func TestStreamDecoderMalformedFrame(t *testing.T) {
	dec := &streamDecoder{}
	_, _, err := dec.decode([]byte(`{broken`))
	require.Error(t, err)

	// Decoder stays usable after a bad frame.
	evt, done, err := dec.decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.False(t, done)
	assert.Equal(t, domain.EventPing, evt.Type)
}
