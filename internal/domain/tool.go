package domain

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a single tool in the static catalog.
// Definitions are created at process start and never mutated.
type ToolDefinition struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description"`
	InputSchema          json.RawMessage `json:"input_schema"`
	Domain               string          `json:"domain"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
}

// ToolCall represents the LLM's request to invoke a tool.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult is the outcome of executing a tool, fed back to the LLM
// as a tool_result content block.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Store is the e-commerce platform capability consumed by the executor.
// One call per tool name with schema-validated input; the success payload
// is opaque JSON summarized to text by the caller.
type Store interface {
	Call(ctx context.Context, toolName string, input json.RawMessage) (json.RawMessage, error)
}

// EmbeddingProvider computes fixed-dimension embeddings for texts.
// Dimensionality is fixed for the lifetime of a deployed corpus.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// DomainClassifier maps a free-text query to 1-3 tool domains.
type DomainClassifier interface {
	Classify(ctx context.Context, query string) ([]string, error)
}

// ToolExample is one retrieval-corpus entry: an example query known to be
// answerable by a tool. Pre-seeded examples have IsLearned false; examples
// recorded from confirmed successful tool use have IsLearned true.
type ToolExample struct {
	ID         string    `json:"id"`
	ToolName   string    `json:"tool_name"`
	Domain     string    `json:"domain"`
	Query      string    `json:"example_query"`
	Embedding  []float32 `json:"-"`
	IsLearned  bool      `json:"is_learned"`
	UsageCount int       `json:"usage_count"`
}

// ScoredTool pairs a tool name with its best similarity score.
type ScoredTool struct {
	ToolName   string  `json:"tool_name"`
	Similarity float32 `json:"similarity"`
}

// SelectionResult is the outcome of the tool selection pipeline.
type SelectionResult struct {
	Tools        []string `json:"tools"`
	Domains      []string `json:"domains"`
	UsedFallback bool     `json:"used_fallback"`
}
