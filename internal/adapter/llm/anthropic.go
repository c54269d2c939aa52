package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/tracer"
)

const (
	defaultAnthropicVersion = "2023-06-01"
	defaultMaxTokens        = 4096
)

// Client speaks the Anthropic Messages API: it encodes provider-neutral
// chat requests to the wire format, decodes buffered responses, and
// decodes streamed responses into typed events.
type Client struct {
	model   string
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
	version string
}

// NewClient creates a Messages API client from config.
func NewClient(cfg config.LLMConfig, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &Client{
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  NewHTTPClient(cfg),
		logger:  logger,
		version: defaultAnthropicVersion,
	}
}

// Chat implements domain.LLMClient with a buffered request.
func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	ctx, span := tracer.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(tracer.StringAttr("llm.model", req.Model)),
	)
	defer span.End()

	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(toWireRequest(req, false))
	if err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := doJSONRequest(ctx, c.client, c.baseURL+"/v1/messages", body, c.headers())
	if err != nil {
		tracer.RecordError(span, err)
		return nil, err
	}

	var wireResp wireResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		tracer.RecordError(span, err)
		return nil, fmt.Errorf("%w: unmarshal response: %v", domain.ErrProtocol, err)
	}

	result := fromWireResponse(wireResp)
	span.SetAttributes(
		tracer.IntAttr("llm.input_tokens", result.Usage.InputTokens),
		tracer.IntAttr("llm.output_tokens", result.Usage.OutputTokens),
	)
	tracer.SetOK(span)
	c.logger.Debug("llm chat completed",
		"model", result.Model,
		"stop_reason", result.StopReason,
		"tool_calls", len(result.ToolCalls),
		"output_tokens", result.Usage.OutputTokens,
	)

	return result, nil
}

// ChatStream implements domain.LLMClient with a streaming request.
func (c *Client) ChatStream(ctx context.Context, req domain.ChatRequest) (<-chan domain.StreamEvent, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	body, err := json.Marshal(toWireRequest(req, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpResp, err := doStreamRequest(ctx, c.client, c.baseURL+"/v1/messages", body, c.headers())
	if err != nil {
		return nil, err
	}

	dec := &streamDecoder{}
	return parseSSEStream(ctx, httpResp.Body, dec.decode), nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": c.version,
	}
}

// --- Messages API wire types ---

type wireRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
	MaxTokens int           `json:"max_tokens"`
	Tools     []wireTool    `json:"tools,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type wireResponse struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	Content    []wireContent `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      wireUsage     `json:"usage"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func toWireRequest(req domain.ChatRequest, stream bool) wireRequest {
	out := wireRequest{
		Model:     req.Model,
		System:    req.System,
		MaxTokens: req.MaxTokens,
		Stream:    stream,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultMaxTokens
	}

	for _, m := range req.Messages {
		switch m.Role {
		case domain.RoleToolResult:
			out.Messages = append(out.Messages, wireMessage{
				Role: "user",
				Content: []wireContent{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
					IsError:   m.IsError,
				}},
			})

		case domain.RoleAssistant, domain.RoleToolUse:
			msg := wireMessage{Role: "assistant"}
			if m.Content != "" {
				msg.Content = append(msg.Content, wireContent{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				msg.Content = append(msg.Content, wireContent{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Input,
				})
			}
			out.Messages = append(out.Messages, msg)

		default:
			out.Messages = append(out.Messages, wireMessage{
				Role:    "user",
				Content: []wireContent{{Type: "text", Text: m.Content}},
			})
		}
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	return out
}

func fromWireResponse(resp wireResponse) *domain.ChatResult {
	result := &domain.ChatResult{
		ID:         resp.ID,
		Model:      resp.Model,
		StopReason: resp.StopReason,
		Usage: domain.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			input := block.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}

	return result
}

// --- streaming decode ---

type wireStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock *wireContent    `json:"content_block,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
	Usage        *wireUsage      `json:"usage,omitempty"`
	Message      *wireResponse   `json:"message,omitempty"`
	Error        *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type wireBlockDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

// streamDecoder turns raw Messages API stream frames into typed events.
// It carries the little state the wire format forces on us: the current
// content block, so block_stop can close out a tool call, and the input
// token count reported at message_start.
type streamDecoder struct {
	blockType   string
	blockID     string
	blockName   string
	inputTokens int
}

func (d *streamDecoder) decode(data []byte) (*domain.StreamEvent, bool, error) {
	var evt wireStreamEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, false, fmt.Errorf("malformed stream frame: %w", err)
	}

	switch evt.Type {
	case "ping":
		return &domain.StreamEvent{Type: domain.EventPing}, false, nil

	case "message_start":
		if evt.Message != nil {
			d.inputTokens = evt.Message.Usage.InputTokens
		}
		return nil, false, nil

	case "content_block_start":
		if evt.ContentBlock == nil {
			return nil, false, nil
		}
		d.blockType = evt.ContentBlock.Type
		d.blockID = evt.ContentBlock.ID
		d.blockName = evt.ContentBlock.Name
		if d.blockType == "tool_use" {
			return &domain.StreamEvent{
				Type:     domain.EventToolUseStart,
				ToolID:   d.blockID,
				ToolName: d.blockName,
			}, false, nil
		}
		return nil, false, nil

	case "content_block_delta":
		var delta wireBlockDelta
		if err := json.Unmarshal(evt.Delta, &delta); err != nil {
			return nil, false, fmt.Errorf("malformed block delta: %w", err)
		}
		switch delta.Type {
		case "text_delta":
			return &domain.StreamEvent{Type: domain.EventTextDelta, Text: delta.Text}, false, nil
		case "input_json_delta":
			return &domain.StreamEvent{
				Type:        domain.EventToolUseInputDelta,
				ToolID:      d.blockID,
				PartialJSON: delta.PartialJSON,
			}, false, nil
		}
		return nil, false, nil

	case "content_block_stop":
		if d.blockType == "tool_use" {
			out := &domain.StreamEvent{
				Type:     domain.EventToolUseComplete,
				ToolID:   d.blockID,
				ToolName: d.blockName,
			}
			d.blockType, d.blockID, d.blockName = "", "", ""
			return out, false, nil
		}
		d.blockType = ""
		return nil, false, nil

	case "message_delta":
		out := &domain.StreamEvent{Type: domain.EventTurnComplete}
		if len(evt.Delta) > 0 {
			var delta wireBlockDelta
			if err := json.Unmarshal(evt.Delta, &delta); err == nil {
				out.StopReason = delta.StopReason
			}
		}
		if evt.Usage != nil {
			out.Usage = &domain.Usage{
				InputTokens:  d.inputTokens,
				OutputTokens: evt.Usage.OutputTokens,
			}
		}
		return out, false, nil

	case "message_stop":
		return nil, true, nil

	case "error":
		msg := "stream error"
		if evt.Error != nil {
			msg = fmt.Sprintf("%s: %s", evt.Error.Type, evt.Error.Message)
		}
		return &domain.StreamEvent{Type: domain.EventStreamError, Message: msg}, false, nil

	default:
		return nil, false, nil
	}
}

// Compile-time interface check.
var _ domain.LLMClient = (*Client)(nil)
