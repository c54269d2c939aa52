package domain

import "context"

// ChatRequest is a provider-neutral request for one LLM turn.
type ChatRequest struct {
	Model     string
	System    string
	MaxTokens int
	Messages  []ChatMessage
	Tools     []ToolDefinition
}

// LLMClient is the Messages API surface consumed by the orchestrator.
// Chat performs a buffered request; ChatStream returns a channel of
// decoded events that closes when the turn ends or ctx is cancelled.
type LLMClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResult, error)
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
}
