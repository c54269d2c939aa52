package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/storechat/admin-agent/internal/catalog"
	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/tracer"
)

// Executor validates tool inputs against their catalog schemas and
// dispatches valid calls to the store. Validation and execution
// failures become is_error tool results rather than hard errors, so the
// LLM can see them and retry with corrected input.
type Executor struct {
	store   domain.Store
	schemas map[string]*jsonschema.Schema
	logger  *slog.Logger
}

// NewExecutor compiles every catalog schema up front, so a malformed
// schema fails at startup instead of on first use.
func NewExecutor(store domain.Store, logger *slog.Logger) (*Executor, error) {
	schemas := make(map[string]*jsonschema.Schema)
	for _, tool := range catalog.All() {
		compiler := jsonschema.NewCompiler()
		url := tool.Name + ".schema.json"
		if err := compiler.AddResource(url, bytes.NewReader(tool.InputSchema)); err != nil {
			return nil, fmt.Errorf("executor: add schema for %s: %w", tool.Name, err)
		}
		sch, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("executor: compile schema for %s: %w", tool.Name, err)
		}
		schemas[tool.Name] = sch
	}
	return &Executor{store: store, schemas: schemas, logger: logger}, nil
}

// Execute runs one tool call end to end. Only an unknown tool name is a
// hard error; everything downstream is reported inside the result.
func (e *Executor) Execute(ctx context.Context, call domain.ToolCall) (domain.ToolResult, error) {
	ctx, span := tracer.StartSpan(ctx, "executor.execute")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("tool", call.Name))

	sch, ok := e.schemas[call.Name]
	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrToolNotFound, call.Name)
		tracer.RecordError(span, err)
		return domain.ToolResult{}, err
	}

	if msg, ok := validateInput(sch, call.Input); !ok {
		e.logger.Warn("tool input rejected", "tool", call.Name, "reason", msg)
		return errorResult(call.ID, fmt.Sprintf("invalid input for %s: %s", call.Name, msg)), nil
	}

	payload, err := e.store.Call(ctx, call.Name, call.Input)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		tracer.RecordError(span, err)
		return errorResult(call.ID, fmt.Sprintf("%s failed: %s", call.Name, err)), nil
	}

	tracer.SetOK(span)
	return domain.ToolResult{ToolCallID: call.ID, Content: string(payload)}, nil
}

func validateInput(sch *jsonschema.Schema, input json.RawMessage) (string, bool) {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	var v any
	if err := json.Unmarshal(input, &v); err != nil {
		return fmt.Sprintf("not valid JSON: %s", err), false
	}
	if err := sch.Validate(v); err != nil {
		return err.Error(), false
	}
	return "", true
}

func errorResult(callID, msg string) domain.ToolResult {
	return domain.ToolResult{ToolCallID: callID, Content: msg, IsError: true}
}
