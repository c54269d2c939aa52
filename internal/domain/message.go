package domain

import "time"

// Role constants for chat message roles.
const (
	RoleUser       = "user"
	RoleAssistant  = "assistant"
	RoleToolUse    = "tool_use"
	RoleToolResult = "tool_result"
)

// ChatSession groups an ordered sequence of messages for one operator.
// Created on first message; only the title and updated_at ever change.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatMessage is one append-only entry in a session's conversation.
// tool_use rows carry ToolCalls; tool_result rows carry ToolCallID,
// Content and IsError.
type ChatMessage struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      *Usage     `json:"usage,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Usage tracks token consumption for one LLM interaction.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Stop reasons reported by the LLM at turn end.
const (
	StopEndTurn   = "end_turn"
	StopMaxTokens = "max_tokens"
	StopToolUse   = "tool_use"
)

// ChatResult is a complete (non-streaming) LLM response: the assistant's
// text, any requested tool calls, and turn metadata.
type ChatResult struct {
	ID         string     `json:"id"`
	Model      string     `json:"model"`
	Text       string     `json:"text"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"`
	Usage      Usage      `json:"usage"`
}

// StreamEventType enumerates the typed events decoded from the LLM's
// chunked response stream.
type StreamEventType string

const (
	EventPing              StreamEventType = "ping"
	EventTextDelta         StreamEventType = "text_delta"
	EventToolUseStart      StreamEventType = "tool_use_start"
	EventToolUseInputDelta StreamEventType = "tool_use_input_delta"
	EventToolUseComplete   StreamEventType = "tool_use_complete"
	EventTurnComplete      StreamEventType = "turn_complete"
	EventStreamError       StreamEventType = "stream_error"

	// EventActionPending is emitted by the orchestrator, not the wire
	// decoder: a write tool was parked for approval and the turn is
	// suspended until the action resolves.
	EventActionPending StreamEventType = "action_pending"
)

// StreamEvent is one decoded event from the response stream. Only the
// fields relevant to Type are populated.
type StreamEvent struct {
	Type        StreamEventType `json:"type"`
	Text        string          `json:"text,omitempty"`
	ToolID      string          `json:"tool_id,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
	PartialJSON string          `json:"partial_json,omitempty"`
	StopReason  string          `json:"stop_reason,omitempty"`
	Usage       *Usage          `json:"usage,omitempty"`
	Message     string          `json:"message,omitempty"`
}
