package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/storechat/admin-agent/internal/catalog"
	"github.com/storechat/admin-agent/internal/domain"
	"github.com/storechat/admin-agent/internal/infra/config"
	"github.com/storechat/admin-agent/internal/infra/tracer"
)

// maxToolIterations caps the tool-use loop for one inbound message.
const maxToolIterations = 10

const maxTitleLen = 50

// pendingApprovalNote is the placeholder tool_result persisted for a
// parked write. It keeps every tool_use block paired in the transcript
// while the approval is outstanding and is replaced at resolution.
const pendingApprovalNote = "awaiting operator approval"

const systemPrompt = `You are an AI assistant for an e-commerce store admin. You help the operator look up orders, customers, products, inventory and finances, and you can perform changes on their behalf.

Rules:
- Use the provided tools to answer questions; do not invent data.
- Destructive or state-changing actions require human approval. When a tool call is parked for approval, tell the operator and wait.
- Be concise. Summarize tool output instead of repeating raw JSON.
- Amounts include their currency. Dates are ISO 8601.`

// SessionStore is the conversation persistence surface the
// orchestrator needs.
type SessionStore interface {
	CreateSession(ctx context.Context, s domain.ChatSession) error
	GetSession(ctx context.Context, id string) (domain.ChatSession, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]domain.ChatSession, error)
	SetTitle(ctx context.Context, id, title string) error
	Touch(ctx context.Context, id string, at time.Time) error
	AppendMessage(ctx context.Context, m domain.ChatMessage) error
	UpdateToolResult(ctx context.Context, sessionID, toolCallID, content string, isError bool) error
	ListMessages(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

// toolSelector narrows the catalog per query and learns from use.
type toolSelector interface {
	Select(ctx context.Context, query string) (domain.SelectionResult, error)
	RecordSuccess(ctx context.Context, toolName, query string) error
}

// actionQueue is the confirmation-queue surface the orchestrator needs.
type actionQueue interface {
	Enqueue(ctx context.Context, p EnqueueParams) (domain.PendingAction, error)
	ListPending(ctx context.Context, sessionID string) ([]domain.PendingAction, error)
}

// ListPending exposes the store's pending listing on the queue.
func (q *Queue) ListPending(ctx context.Context, sessionID string) ([]domain.PendingAction, error) {
	return q.actions.ListPending(ctx, sessionID)
}

// Orchestrator drives one chat turn: select tools, stream the LLM
// response, execute read tools inline, park write tools for approval,
// and feed results back until the model stops asking for tools.
type Orchestrator struct {
	llm       domain.LLMClient
	selector  toolSelector
	executor  toolRunner
	queue     actionQueue
	sessions  SessionStore
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewOrchestrator creates a chat orchestrator.
func NewOrchestrator(llm domain.LLMClient, selector toolSelector, executor toolRunner, queue actionQueue, sessions SessionStore, cfg config.LLMConfig, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		llm:       llm,
		selector:  selector,
		executor:  executor,
		queue:     queue,
		sessions:  sessions,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

// ChatParams is one inbound operator message.
type ChatParams struct {
	SessionID string // empty starts a new session
	UserID    string
	UserName  string
	Content   string
}

// Chat handles an inbound message and returns the session ID plus a
// stream of events. The channel closes when the turn completes,
// suspends on a pending approval, or fails.
func (o *Orchestrator) Chat(ctx context.Context, p ChatParams) (string, <-chan domain.StreamEvent, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.chat")
	defer span.End()

	session, err := o.ensureSession(ctx, p)
	if err != nil {
		tracer.RecordError(span, err)
		return "", nil, err
	}
	span.SetAttributes(tracer.StringAttr("session_id", session.ID))

	now := time.Now().UTC()
	err = o.sessions.AppendMessage(ctx, domain.ChatMessage{
		ID:        ulid.Make().String(),
		SessionID: session.ID,
		Role:      domain.RoleUser,
		Content:   p.Content,
		CreatedAt: now,
	})
	if err != nil {
		tracer.RecordError(span, err)
		return "", nil, fmt.Errorf("chat: append user message: %w", err)
	}

	selection, err := o.selector.Select(ctx, p.Content)
	if err != nil {
		tracer.RecordError(span, err)
		return "", nil, fmt.Errorf("chat: %w", err)
	}
	o.logger.Info("tools selected",
		"session_id", session.ID, "tools", len(selection.Tools),
		"domains", selection.Domains, "fallback", selection.UsedFallback)

	out := make(chan domain.StreamEvent, 16)
	go func() {
		defer close(out)
		o.runLoop(ctx, session.ID, p, selection, out)
	}()

	tracer.SetOK(span)
	return session.ID, out, nil
}

func (o *Orchestrator) ensureSession(ctx context.Context, p ChatParams) (domain.ChatSession, error) {
	if p.SessionID != "" {
		return o.sessions.GetSession(ctx, p.SessionID)
	}
	now := time.Now().UTC()
	session := domain.ChatSession{
		ID:        ulid.Make().String(),
		UserID:    p.UserID,
		Title:     deriveTitle(p.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.sessions.CreateSession(ctx, session); err != nil {
		return domain.ChatSession{}, fmt.Errorf("chat: create session: %w", err)
	}
	return session, nil
}

func (o *Orchestrator) runLoop(ctx context.Context, sessionID string, p ChatParams, selection domain.SelectionResult, out chan<- domain.StreamEvent) {
	tools := catalog.FilterByNames(selection.Tools)

	for iter := 0; iter < maxToolIterations; iter++ {
		history, err := o.sessions.ListMessages(ctx, sessionID)
		if err != nil {
			o.emitError(out, fmt.Sprintf("load history: %s", err))
			return
		}

		events, err := o.llm.ChatStream(ctx, domain.ChatRequest{
			Model:     o.model,
			System:    systemPrompt,
			MaxTokens: o.maxTokens,
			Messages:  history,
			Tools:     tools,
		})
		if err != nil {
			o.emitError(out, fmt.Sprintf("llm request: %s", err))
			return
		}

		acc := &streamAccumulator{}
		for ev := range events {
			out <- ev
			acc.apply(ev)
			if ev.Type == domain.EventStreamError {
				// One undecodable frame; the stream carries on.
				o.logger.Warn("stream frame error",
					"session_id", sessionID, "error", ev.Message)
			}
		}
		if acc.stopReason == "" {
			// Stream died before turn_complete; nothing durable to keep.
			o.logger.Error("stream ended without completing the turn", "session_id", sessionID)
			return
		}

		if err := o.persistAssistantTurn(ctx, sessionID, acc); err != nil {
			o.emitError(out, fmt.Sprintf("persist turn: %s", err))
			return
		}

		if acc.stopReason != domain.StopToolUse {
			return
		}

		suspended, err := o.processToolCalls(ctx, sessionID, p, acc.calls(), out)
		if err != nil {
			o.emitError(out, err.Error())
			return
		}
		if suspended {
			return
		}
	}

	o.logger.Warn("tool-use loop hit iteration cap", "session_id", sessionID)
	o.emitError(out, domain.ErrMaxIterations.Error())
}

// processToolCalls executes read tools inline and parks write tools on
// the confirmation queue. Returns suspended=true when at least one call
// awaits approval; the loop then stops until Resume.
func (o *Orchestrator) processToolCalls(ctx context.Context, sessionID string, p ChatParams, calls []domain.ToolCall, out chan<- domain.StreamEvent) (bool, error) {
	suspended := false
	for _, call := range calls {
		if catalog.RequiresConfirmation(call.Name) {
			action, err := o.queue.Enqueue(ctx, EnqueueParams{
				SessionID:     sessionID,
				RequesterID:   p.UserID,
				RequesterName: p.UserName,
				Call:          call,
			})
			if err != nil {
				return false, fmt.Errorf("enqueue %s: %w", call.Name, err)
			}
			o.emit(out, domain.StreamEvent{
				Type:     domain.EventActionPending,
				ToolID:   call.ID,
				ToolName: call.Name,
				Message:  action.ID,
			})
			// Pair the tool_use immediately so the transcript stays
			// well-formed if more messages arrive before resolution.
			placeholder := domain.ToolResult{ToolCallID: call.ID, Content: pendingApprovalNote}
			if err := o.appendToolResult(ctx, sessionID, call.ID, placeholder); err != nil {
				return false, err
			}
			suspended = true
			continue
		}

		result, err := o.executor.Execute(ctx, call)
		if err != nil {
			result = domain.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
		}
		if err := o.appendToolResult(ctx, sessionID, call.ID, result); err != nil {
			return false, err
		}
		if !result.IsError {
			if err := o.selector.RecordSuccess(ctx, call.Name, p.Content); err != nil {
				o.logger.Warn("failed to record learned example", "tool", call.Name, "error", err)
			}
		}
	}
	return suspended, nil
}

// Resume feeds a resolved action's outcome back into its session and,
// once no approvals remain pending, continues the tool-use loop with
// buffered LLM turns. Wired as the queue's resumer.
func (o *Orchestrator) Resume(ctx context.Context, action domain.PendingAction) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.resume")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("action_id", action.ID),
		tracer.StringAttr("status", string(action.Status)),
	)

	result, ok := outcomeResult(action)
	if !ok {
		return
	}
	err := o.sessions.UpdateToolResult(ctx, action.SessionID, result.ToolCallID, result.Content, result.IsError)
	if errors.Is(err, domain.ErrNotFound) {
		err = o.appendToolResult(ctx, action.SessionID, result.ToolCallID, result)
	}
	if err != nil {
		o.logger.Error("resume: failed to record tool result",
			"action_id", action.ID, "error", err)
		tracer.RecordError(span, err)
		return
	}

	if action.Status == domain.ActionExecuted {
		if query := o.lastUserQuery(ctx, action.SessionID); query != "" {
			if err := o.selector.RecordSuccess(ctx, action.ToolName, query); err != nil {
				o.logger.Warn("failed to record learned example", "tool", action.ToolName, "error", err)
			}
		}
	}

	pending, err := o.queue.ListPending(ctx, action.SessionID)
	if err != nil {
		o.logger.Error("resume: failed to list pending actions", "error", err)
		return
	}
	if len(pending) > 0 {
		o.logger.Info("resume deferred, approvals still pending",
			"session_id", action.SessionID, "pending", len(pending))
		return
	}

	if err := o.continueLoop(ctx, action.SessionID); err != nil {
		o.logger.Error("resume: continuation failed",
			"session_id", action.SessionID, "error", err)
		tracer.RecordError(span, err)
		return
	}
	tracer.SetOK(span)
}

// continueLoop runs buffered turns after a resumption. There is no live
// stream to feed, so outputs land in the session transcript only.
func (o *Orchestrator) continueLoop(ctx context.Context, sessionID string) error {
	session, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	p := ChatParams{SessionID: sessionID, UserID: session.UserID}
	if query := o.lastUserQuery(ctx, sessionID); query != "" {
		p.Content = query
	}

	tools := o.selectTools(ctx, p.Content)

	for iter := 0; iter < maxToolIterations; iter++ {
		history, err := o.sessions.ListMessages(ctx, sessionID)
		if err != nil {
			return err
		}

		res, err := o.llm.Chat(ctx, domain.ChatRequest{
			Model:     o.model,
			System:    systemPrompt,
			MaxTokens: o.maxTokens,
			Messages:  history,
			Tools:     tools,
		})
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		err = o.sessions.AppendMessage(ctx, domain.ChatMessage{
			ID:         ulid.Make().String(),
			SessionID:  sessionID,
			Role:       domain.RoleAssistant,
			Content:    res.Text,
			ToolCalls:  res.ToolCalls,
			StopReason: res.StopReason,
			Usage:      &res.Usage,
			CreatedAt:  now,
		})
		if err != nil {
			return err
		}
		_ = o.sessions.Touch(ctx, sessionID, now)

		if res.StopReason != domain.StopToolUse {
			return nil
		}
		suspended, err := o.processToolCalls(ctx, sessionID, p, res.ToolCalls, nil)
		if err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}
	return domain.ErrMaxIterations
}

// selectTools re-runs shortlist selection for a continuation turn. The
// full catalog is the last resort when there is no query to select on
// or selection itself is down.
func (o *Orchestrator) selectTools(ctx context.Context, query string) []domain.ToolDefinition {
	if query == "" {
		return catalog.All()
	}
	selection, err := o.selector.Select(ctx, query)
	if err != nil {
		o.logger.Warn("continuation tool selection failed, using full catalog", "error", err)
		return catalog.All()
	}
	tools := catalog.FilterByNames(selection.Tools)
	if len(tools) == 0 {
		return catalog.All()
	}
	return tools
}

// outcomeResult translates a terminal action into the tool_result fed
// back to the model. The result references the originating tool_use id
// so the resumed history pairs up on the wire.
func outcomeResult(action domain.PendingAction) (domain.ToolResult, bool) {
	callID := action.ToolCallID
	if callID == "" {
		callID = action.ID
	}
	switch action.Status {
	case domain.ActionExecuted:
		return domain.ToolResult{ToolCallID: callID, Content: action.Result}, true
	case domain.ActionFailed:
		return domain.ToolResult{ToolCallID: callID, Content: "execution failed: " + action.ErrorMessage, IsError: true}, true
	case domain.ActionRejected:
		by := action.ResolvedBy
		if by == "" {
			by = "an operator"
		}
		return domain.ToolResult{ToolCallID: callID, Content: "action rejected by " + by, IsError: true}, true
	case domain.ActionExpired:
		return domain.ToolResult{ToolCallID: callID, Content: "approval request expired before anyone responded", IsError: true}, true
	}
	return domain.ToolResult{}, false
}

func (o *Orchestrator) persistAssistantTurn(ctx context.Context, sessionID string, acc *streamAccumulator) error {
	now := time.Now().UTC()
	msg := domain.ChatMessage{
		ID:         ulid.Make().String(),
		SessionID:  sessionID,
		Role:       domain.RoleAssistant,
		Content:    acc.text.String(),
		ToolCalls:  acc.calls(),
		StopReason: acc.stopReason,
		Usage:      acc.usage,
		CreatedAt:  now,
	}
	if err := o.sessions.AppendMessage(ctx, msg); err != nil {
		return err
	}
	return o.sessions.Touch(ctx, sessionID, now)
}

func (o *Orchestrator) appendToolResult(ctx context.Context, sessionID, callID string, result domain.ToolResult) error {
	return o.sessions.AppendMessage(ctx, domain.ChatMessage{
		ID:         ulid.Make().String(),
		SessionID:  sessionID,
		Role:       domain.RoleToolResult,
		Content:    result.Content,
		ToolCallID: callID,
		IsError:    result.IsError,
		CreatedAt:  time.Now().UTC(),
	})
}

func (o *Orchestrator) lastUserQuery(ctx context.Context, sessionID string) string {
	history, err := o.sessions.ListMessages(ctx, sessionID)
	if err != nil {
		return ""
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == domain.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

func (o *Orchestrator) emit(out chan<- domain.StreamEvent, ev domain.StreamEvent) {
	if out != nil {
		out <- ev
	}
}

func (o *Orchestrator) emitError(out chan<- domain.StreamEvent, msg string) {
	o.emit(out, domain.StreamEvent{Type: domain.EventStreamError, Message: msg})
}

// deriveTitle trims the first message to a short session title, broken
// at a word boundary.
func deriveTitle(content string) string {
	title := strings.TrimSpace(content)
	if len(title) <= maxTitleLen {
		return title
	}
	cut := title[:maxTitleLen]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}

// streamAccumulator folds decoded stream events into the assistant
// message being built: text deltas concatenate, tool input deltas
// reassemble per call, and the final usage arrives with turn_complete.
type streamAccumulator struct {
	text       strings.Builder
	stopReason string
	usage      *domain.Usage

	order  []string
	inputs map[string]*toolCallDraft
}

type toolCallDraft struct {
	name  string
	input strings.Builder
}

func (a *streamAccumulator) apply(ev domain.StreamEvent) {
	switch ev.Type {
	case domain.EventTextDelta:
		a.text.WriteString(ev.Text)
	case domain.EventToolUseStart:
		if a.inputs == nil {
			a.inputs = map[string]*toolCallDraft{}
		}
		a.order = append(a.order, ev.ToolID)
		a.inputs[ev.ToolID] = &toolCallDraft{name: ev.ToolName}
	case domain.EventToolUseInputDelta:
		if draft, ok := a.inputs[ev.ToolID]; ok {
			draft.input.WriteString(ev.PartialJSON)
		}
	case domain.EventTurnComplete:
		a.stopReason = ev.StopReason
		a.usage = ev.Usage
	}
}

// calls returns the reassembled tool calls in arrival order. Empty
// input reassembles to {}.
func (a *streamAccumulator) calls() []domain.ToolCall {
	out := make([]domain.ToolCall, 0, len(a.order))
	for _, id := range a.order {
		draft := a.inputs[id]
		input := draft.input.String()
		if strings.TrimSpace(input) == "" {
			input = "{}"
		}
		out = append(out, domain.ToolCall{
			ID:    id,
			Name:  draft.name,
			Input: json.RawMessage(input),
		})
	}
	return out
}
